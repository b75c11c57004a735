package dsp

import (
	"math"

	"github.com/rawblock/ecg-auth-engine/pkg/models"
)

const (
	rpeakBandLoHz = 5.0
	rpeakBandHiHz = 15.0
)

// DetectRPeaks implements the Pan-Tompkins QRS detector: band-pass,
// derivative, square, integrate, adaptive-threshold, refractory-enforce,
// refine. It fails soft — an empty RPeakSet, never an error — so the
// caller can distinguish "no peaks found" from a hard failure elsewhere in
// the pipeline.
func DetectRPeaks(preprocessed []float64, sampleRate float64) models.RPeakSet {
	if len(preprocessed) == 0 {
		return models.RPeakSet{}
	}

	band := bandpassFiltfilt(preprocessed, rpeakBandLoHz, rpeakBandHiHz, sampleRate)
	deriv := derivativeFilter(band, sampleRate)
	squared := square(deriv)
	envelope := movingAverage(squared, int(0.15*sampleRate))

	minDistance := int(0.2 * sampleRate)
	maxFilterWindow := int(0.2 * sampleRate)

	threshold := mean(envelope) + 0.5*math.Sqrt(variance(envelope))
	candidates := localMaxima(envelope, maxFilterWindow, threshold)
	if len(candidates) == 0 {
		threshold = mean(envelope)
		candidates = localMaxima(envelope, maxFilterWindow, threshold)
	}

	kept := enforceRefractory(candidates, minDistance)
	// Refinement can pull two kept peaks closer together, so the refractory
	// gap is enforced once more on the relocated indices.
	refined := enforceRefractory(refine(kept, preprocessed, int(0.05*sampleRate)), minDistance)

	return models.RPeakSet{
		Indices:   refined,
		MeanHRBpm: meanHeartRate(refined, sampleRate),
		Envelope:  envelope,
	}
}

// derivativeFilter convolves x with the Pan-Tompkins derivative kernel
// [1, 2, 0, -2, -1]*(fs/8) in 'same' mode (output length equals input
// length, kernel centered on each sample).
func derivativeFilter(x []float64, sampleRate float64) []float64 {
	kernel := []float64{1, 2, 0, -2, -1}
	scale := sampleRate / 8
	half := len(kernel) / 2
	out := make([]float64, len(x))
	for i := range x {
		sum := 0.0
		for k, kv := range kernel {
			j := i + k - half
			if j >= 0 && j < len(x) {
				sum += kv * x[j]
			}
		}
		out[i] = sum * scale
	}
	return out
}

func square(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v * v
	}
	return out
}

// movingAverage integrates x with a moving-average window of the given
// length (at least 1 sample).
func movingAverage(x []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(x))
	var sum float64
	for i := range x {
		sum += x[i]
		if i >= window {
			sum -= x[i-window]
		}
		n := window
		if i+1 < window {
			n = i + 1
		}
		out[i] = sum / float64(n)
	}
	return out
}

// localMaxima returns indices that are both the maximum within a sliding
// window of the given full size (window/2 samples either side, matching a
// maximum_filter1d of that size) and strictly above threshold.
func localMaxima(x []float64, window int, threshold float64) []int {
	if window < 1 {
		window = 1
	}
	half := window / 2
	var out []int
	for i, v := range x {
		if v <= threshold {
			continue
		}
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi >= len(x) {
			hi = len(x) - 1
		}
		isMax := true
		for j := lo; j <= hi; j++ {
			if x[j] > v {
				isMax = false
				break
			}
		}
		if isMax {
			out = append(out, i)
		}
	}
	return dedupAdjacent(out)
}

// dedupAdjacent collapses runs of consecutive indices (a plateau of equal
// local maxima) into their first member.
func dedupAdjacent(idx []int) []int {
	if len(idx) == 0 {
		return idx
	}
	out := []int{idx[0]}
	for i := 1; i < len(idx); i++ {
		if idx[i] != idx[i-1]+1 {
			out = append(out, idx[i])
		}
	}
	return out
}

// enforceRefractory keeps the first candidate and each subsequent one
// whose gap to the last kept peak is at least minDistance samples.
func enforceRefractory(candidates []int, minDistance int) []int {
	if len(candidates) == 0 {
		return nil
	}
	kept := []int{candidates[0]}
	for _, c := range candidates[1:] {
		if c-kept[len(kept)-1] >= minDistance {
			kept = append(kept, c)
		}
	}
	return kept
}

// refine relocates each kept index to the local maximum of the original
// preprocessed signal within +/- window samples.
func refine(kept []int, signal []float64, window int) []int {
	out := make([]int, len(kept))
	for i, idx := range kept {
		lo := idx - window
		if lo < 0 {
			lo = 0
		}
		hi := idx + window
		if hi >= len(signal) {
			hi = len(signal) - 1
		}
		best := idx
		bestVal := signal[idx]
		for j := lo; j <= hi; j++ {
			if signal[j] > bestVal {
				bestVal = signal[j]
				best = j
			}
		}
		out[i] = best
	}
	return out
}

func meanHeartRate(peaks []int, sampleRate float64) float64 {
	if len(peaks) < 2 {
		return 0
	}
	intervals := make([]float64, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		intervals[i-1] = float64(peaks[i]-peaks[i-1]) / sampleRate
	}
	meanInterval := mean(intervals)
	if meanInterval == 0 {
		return 0
	}
	return 60 / meanInterval
}
