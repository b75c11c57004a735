package dsp

import (
	"math"
	"testing"

	"github.com/rawblock/ecg-auth-engine/pkg/models"
)

func TestEnumerateFeatures_FixedDimensionality(t *testing.T) {
	sampleRate := 500.0
	tmpl, peaks := templateFromSyntheticECG(t, sampleRate, 75)
	bundle := ExtractFeatures(tmpl, peaks, sampleRate)

	got := len(EnumerateFeatures(bundle))
	want := 16 + 6 + (7 + 5) + 8
	if got != want {
		t.Fatalf("expected enumeration length %d, got %d", want, got)
	}
}

func TestEnumerateFeatures_OrderIsStableAcrossCalls(t *testing.T) {
	sampleRate := 500.0
	tmpl, peaks := templateFromSyntheticECG(t, sampleRate, 75)
	bundle := ExtractFeatures(tmpl, peaks, sampleRate)

	a := EnumerateFeatures(bundle)
	b := EnumerateFeatures(bundle)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected identical enumeration across repeated calls at index %d: %f != %f", i, a[i], b[i])
		}
	}
}

func TestSanitize_ReplacesNaNAndInf(t *testing.T) {
	x := []float64{1, math.NaN(), math.Inf(1), math.Inf(-1), 2}
	out := sanitize(x)
	want := []float64{1, 0, 0, 0, 2}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, out)
		}
	}
}

func TestMinMaxNormalize_ConstantVectorMapsToZero(t *testing.T) {
	x := []float64{7, 7, 7}
	out := minMaxNormalize(x)
	for _, v := range out {
		if v != 0 {
			t.Fatalf("expected all zeros for a constant vector, got %v", out)
		}
	}
}

func TestMinMaxNormalize_ScalesIntoUnitRange(t *testing.T) {
	x := []float64{-5, 0, 5, 10}
	out := minMaxNormalize(x)
	if out[0] != 0 || out[len(out)-1] != 1 {
		t.Fatalf("expected endpoints 0 and 1, got %v", out)
	}
}

func TestDiscretize_ClipsOutOfRangeValues(t *testing.T) {
	x := []float64{-1, 0, 0.5, 1, 2}
	out := discretize(x)
	want := []byte{0, 0, 128, 255, 255}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, out)
		}
	}
}

func TestComposeSignature_IsDeterministic(t *testing.T) {
	sampleRate := 500.0
	tmpl, peaks := templateFromSyntheticECG(t, sampleRate, 75)
	bundle := ExtractFeatures(tmpl, peaks, sampleRate)

	a := ComposeSignature(bundle)
	b := ComposeSignature(bundle)
	if a.HashHex != b.HashHex {
		t.Fatalf("expected identical hash for identical feature bundles: %s != %s", a.HashHex, b.HashHex)
	}
}

func TestComposeSignature_DifferentBundlesProduceDifferentHashes(t *testing.T) {
	sampleRate := 500.0
	tmplA, peaksA := templateFromSyntheticECG(t, sampleRate, 75)
	tmplB, peaksB := templateFromSyntheticECG(t, sampleRate, 110)

	sigA := ComposeSignature(ExtractFeatures(tmplA, peaksA, sampleRate))
	sigB := ComposeSignature(ExtractFeatures(tmplB, peaksB, sampleRate))
	if sigA.HashHex == sigB.HashHex {
		t.Fatalf("expected distinct heart rates to produce distinct signatures")
	}
}

func TestComposeSignature_EmptyBundleDoesNotPanic(t *testing.T) {
	sig := ComposeSignature(models.FeatureBundle{})
	if sig.HashHex == "" {
		t.Fatalf("expected a valid hash even for a degenerate all-zero bundle")
	}
}
