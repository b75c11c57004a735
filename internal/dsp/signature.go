package dsp

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"math"

	"github.com/rawblock/ecg-auth-engine/pkg/models"
)

// Per-group weights applied before normalization, reflecting each feature
// group's relative discriminative weight in the composed signature:
// morphology is the most individual-specific, HRV the least (it drifts with
// activity and stress), frequency and statistical descriptors in between.
const (
	morphologicalWeight = 1.5
	hrvWeight            = 1.0
	frequencyWeight      = 0.8
	statisticalWeight    = 0.7
)

// EnumerateFeatures flattens a FeatureBundle into a fixed-order, weighted
// raw vector. The order and the set of fields enumerated are a public
// contract, matching the original implementation's morph_vector/hrv_vector/
// freq_vector/stat_vector field lists exactly: 16 morphological fields, 6
// HRV fields, 7 frequency scalars followed by its five top coefficients,
// then 8 statistical fields (D = 42). Several fields that MorphologicalFeatures,
// HRVFeatures and StatisticalFeatures also compute (e.g. QRIntervalMs/
// RSIntervalMs alongside the combined QRSDurMs, or HeartRateBpm, Var, Max,
// Min, Range) are derived/diagnostic only and are deliberately excluded
// here — they exist for callers inspecting a FeatureBundle directly, not
// for the signature. Any caller comparing two vectors (e.g. the matcher)
// can rely on index i always meaning the same feature.
func EnumerateFeatures(b models.FeatureBundle) []float64 {
	m := b.Morphological
	h := b.HRV
	f := b.Frequency
	s := b.Statistical

	var out []float64

	morph := []float64{
		m.RAmplitude, m.QAmplitude, m.SAmplitude, m.PAmplitude, m.TAmplitude,
		m.QRSDurMs, m.PRIntervalMs, m.QTIntervalMs, m.STIntervalMs,
		m.PRRatio, m.TRRatio, m.RUpSlope, m.RDownSlope,
		m.QRSAreaAbs, m.PAreaAbs, m.TAreaAbs,
	}
	for _, v := range morph {
		out = append(out, v*morphologicalWeight)
	}

	hrv := []float64{
		h.MeanRRMs, h.StdRRMs, h.SDNNMs, h.RMSSDMs, h.PNN50, h.CV,
	}
	for _, v := range hrv {
		out = append(out, v*hrvWeight)
	}

	freq := []float64{
		f.LowBandPower, f.MidBandPower, f.HighBandPower, f.LFHFRatio,
		f.SpectralCentroid, f.SpectralSpread, f.DominantFreqHz,
	}
	for _, v := range freq {
		out = append(out, v*frequencyWeight)
	}
	for _, v := range f.TopCoefficients {
		out = append(out, v*frequencyWeight)
	}

	stats := []float64{
		s.Mean, s.Std, s.Skewness, s.ExcessKurtosis,
		s.Energy, s.RMS, s.ZeroCrossingRate, s.Entropy,
	}
	for _, v := range stats {
		out = append(out, v*statisticalWeight)
	}

	return out
}

// ComposeSignature sanitizes, min-max normalizes, and discretizes a feature
// bundle's enumerated vector, then hashes the discretized form.
func ComposeSignature(b models.FeatureBundle) models.SignatureRecord {
	raw := EnumerateFeatures(b)
	sanitized := sanitize(raw)
	normalized := minMaxNormalize(sanitized)
	discretized := discretize(normalized)

	sum := sha256.Sum256(discretized)
	return models.SignatureRecord{
		RawVector:        sanitized,
		NormalizedVector: normalized,
		Discretized:      discretized,
		HashHex:          hex.EncodeToString(sum[:]),
		HashB64:          base64.StdEncoding.EncodeToString(sum[:]),
	}
}

// sanitize replaces NaN and +/-Inf with 0 so a single degenerate feature
// cannot poison normalization or the hash with an unrepresentable value.
func sanitize(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[i] = 0
			continue
		}
		out[i] = v
	}
	return out
}

// minMaxNormalize scales x into [0, 1]. A constant vector (max == min) maps
// to all zeros rather than dividing by zero.
func minMaxNormalize(x []float64) []float64 {
	if len(x) == 0 {
		return nil
	}
	maxV, minV := x[0], x[0]
	for _, v := range x {
		if v > maxV {
			maxV = v
		}
		if v < minV {
			minV = v
		}
	}
	span := maxV - minV
	out := make([]float64, len(x))
	if span == 0 {
		return out
	}
	for i, v := range x {
		out[i] = (v - minV) / span
	}
	return out
}

// discretize maps each normalized value in [0, 1] to a byte in [0, 255].
func discretize(x []float64) []byte {
	out := make([]byte, len(x))
	for i, v := range x {
		scaled := v * 255
		if scaled < 0 {
			scaled = 0
		}
		if scaled > 255 {
			scaled = 255
		}
		out[i] = byte(math.Round(scaled))
	}
	return out
}
