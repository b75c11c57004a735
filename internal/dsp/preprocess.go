package dsp

import (
	"math"

	"github.com/rawblock/ecg-auth-engine/pkg/models"
)

const (
	baselineCutoffHz = 0.5
	denoiseCutoffHz  = 45.0
	notchFreqHz      = 60.0
	notchQ           = 30.0
)

// Preprocess band-limits a raw ADC waveform to roughly 0.5-45 Hz with a
// 60 Hz powerline notch, all stages zero-phase, and scores the quality of
// the raw window (before filtering, so a constant or clipped input is seen
// as such). It never rejects a signal itself — that decision belongs to
// the caller, per the specification.
func Preprocess(raw []int, sampleRate float64) ([]float64, models.QualityReport) {
	x := make([]float64, len(raw))
	for i, v := range raw {
		x[i] = float64(v)
	}
	quality := scoreQuality(x)

	x = highpassFiltfilt(x, baselineCutoffHz, sampleRate)
	x = lowpassFiltfilt(x, denoiseCutoffHz, sampleRate)

	nyquist := sampleRate / 2
	if notchFreqHz < nyquist {
		x = notchFilter(x, notchFreqHz, notchQ, sampleRate)
	}

	return x, quality
}

// scoreQuality implements the deduction rules from the specification: an
// SNR-based penalty, a saturation penalty, and a flatness penalty, all
// subtracted from a starting score of 100.
func scoreQuality(x []float64) models.QualityReport {
	report := models.QualityReport{Score: 100}

	snr := estimateSNR(x)
	report.SNRDb = snr
	switch {
	case snr < 5:
		report.Score -= 40
	case snr < 10:
		report.Score -= 20
	case snr < 15:
		report.Score -= 10
	}

	if isSaturated(x) {
		report.Saturated = true
		report.Score -= 30
	}
	if isFlat(x) {
		report.Flat = true
		report.Score -= 50
	}

	if report.Score < 0 {
		report.Score = 0
	}
	report.Acceptable = report.Score >= 60
	return report
}

// estimateSNR returns 10*log10(var(x) / (var(diff(x))/2)), treating the
// ratio as 0 dB when the noise-power denominator is zero.
func estimateSNR(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	signalVar := variance(x)
	d := diff(x)
	noiseVar := variance(d) / 2
	if noiseVar == 0 {
		return 0
	}
	return 10 * math.Log10(signalVar/noiseVar)
}

// isSaturated reports whether more than 1% of samples exceed 99% of the
// signal's max value, or fall below 99% of its min value. The two checks
// are independent and one-sided, so an asymmetric clip (e.g. a rail-to-rail
// ADC pinned high but never low) is still caught.
func isSaturated(x []float64) bool {
	if len(x) == 0 {
		return false
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

	var nearMax, nearMin int
	for _, v := range x {
		if v > maxV*0.99 {
			nearMax++
		}
		if v < minV*0.99 {
			nearMin++
		}
	}
	n := float64(len(x))
	const threshold = 0.01
	return float64(nearMax)/n > threshold || float64(nearMin)/n > threshold
}

// isFlat reports whether std(x)/mean(|x|) < 0.01.
func isFlat(x []float64) bool {
	if len(x) == 0 {
		return true
	}
	std := math.Sqrt(variance(x))
	meanAbs := 0.0
	for _, v := range x {
		meanAbs += math.Abs(v)
	}
	meanAbs /= float64(len(x))
	if meanAbs == 0 {
		return true
	}
	return std/meanAbs < 0.01
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

func variance(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	m := mean(x)
	sum := 0.0
	for _, v := range x {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(x))
}

// popSkewness and popExcessKurtosis are the population (not Bessel-corrected)
// third and fourth standardized moments: mean and variance above are already
// population statistics, and the feature extractor's HRV/statistical groups
// must stay on the same convention throughout rather than mixing in gonum's
// sample (n-1) estimators.
func popSkewness(x []float64) float64 {
	std := math.Sqrt(variance(x))
	if std == 0 {
		return 0
	}
	m := mean(x)
	sum := 0.0
	for _, v := range x {
		d := (v - m) / std
		sum += d * d * d
	}
	return sum / float64(len(x))
}

func popExcessKurtosis(x []float64) float64 {
	std := math.Sqrt(variance(x))
	if std == 0 {
		return 0
	}
	m := mean(x)
	sum := 0.0
	for _, v := range x {
		d := (v - m) / std
		sum += d * d * d * d
	}
	return sum/float64(len(x)) - 3
}

func diff(x []float64) []float64 {
	if len(x) < 2 {
		return nil
	}
	out := make([]float64, len(x)-1)
	for i := 1; i < len(x); i++ {
		out[i-1] = x[i] - x[i-1]
	}
	return out
}
