package dsp

import (
	"math"
	"testing"

	"github.com/rawblock/ecg-auth-engine/pkg/models"
)

func templateFromSyntheticECG(t *testing.T, sampleRate, bpm float64) (models.Template, models.RPeakSet) {
	t.Helper()
	raw := syntheticECG(5000, sampleRate, bpm)
	preprocessed, quality := Preprocess(raw, sampleRate)
	if !quality.Acceptable {
		t.Fatalf("expected acceptable quality for synthetic fixture, score=%d", quality.Score)
	}
	peaks := DetectRPeaks(preprocessed, sampleRate)
	if peaks.Count() < MinPeaksRequired {
		t.Fatalf("expected enough peaks in fixture, got %d", peaks.Count())
	}
	tmpl, err := BuildTemplate(preprocessed, peaks, sampleRate)
	if err != nil {
		t.Fatalf("unexpected error building template: %v", err)
	}
	return tmpl, peaks
}

func TestExtractFeatures_ProducesNonDegenerateBundle(t *testing.T) {
	sampleRate := 500.0
	tmpl, peaks := templateFromSyntheticECG(t, sampleRate, 75)

	bundle := ExtractFeatures(tmpl, peaks, sampleRate)
	if bundle.Morphological.RAmplitude == 0 {
		t.Fatalf("expected a nonzero R amplitude on a templated QRS complex")
	}
	if bundle.HRV.HeartRateBpm < 50 || bundle.HRV.HeartRateBpm > 100 {
		t.Fatalf("expected heart rate near 75bpm, got %f", bundle.HRV.HeartRateBpm)
	}
}

func TestExtractHRV_FewerThanTwoPeaksReturnsZeroValue(t *testing.T) {
	hrv := extractHRV(models.RPeakSet{Indices: []int{10}}, 500)
	if hrv != (models.HRVFeatures{}) {
		t.Fatalf("expected zero-value HRVFeatures for a single peak, got %+v", hrv)
	}
}

func TestArgmaxWindow_FindsMaximumWithinBounds(t *testing.T) {
	x := []float64{0, 1, 5, 2, -3, 9, 0}
	idx := argmaxWindow(x, 0, 4)
	if idx != 2 {
		t.Fatalf("expected index 2 (value 5) within [0,4], got %d", idx)
	}
}

func TestArgminWindow_FindsMinimumWithinBounds(t *testing.T) {
	x := []float64{0, 1, 5, 2, -3, 9, 0}
	idx := argminWindow(x, 0, 6)
	if idx != 4 {
		t.Fatalf("expected index 4 (value -3), got %d", idx)
	}
}

func TestClampWindow_ClampsToSliceBounds(t *testing.T) {
	lo, hi := clampWindow(-5, 100, 10)
	if lo != 0 || hi != 9 {
		t.Fatalf("expected clamp to [0,9], got [%d,%d]", lo, hi)
	}
}

func TestHistogramEntropy_ConstantSignalHasZeroEntropy(t *testing.T) {
	x := make([]float64, 100)
	for i := range x {
		x[i] = 3.0
	}
	if e := histogramEntropy(x, entropyBins); e != 0 {
		t.Fatalf("expected zero entropy for a constant signal, got %f", e)
	}
}

func TestExtractFrequency_EmptyVectorReturnsZeroValue(t *testing.T) {
	f := extractFrequency(nil, 500)
	if f != (models.FrequencyFeatures{}) {
		t.Fatalf("expected zero-value FrequencyFeatures for empty input, got %+v", f)
	}
}

func TestExtractStatistical_RangeMatchesMaxMinusMin(t *testing.T) {
	x := []float64{-2, -1, 0, 1, 2, 3}
	s := extractStatistical(x)
	if math.Abs(s.Range-(s.Max-s.Min)) > 1e-9 {
		t.Fatalf("expected range == max-min, got range=%f max=%f min=%f", s.Range, s.Max, s.Min)
	}
}
