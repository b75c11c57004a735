package dsp

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/rawblock/ecg-auth-engine/pkg/models"
)

const (
	rPositionFrac  = 0.38
	rSeedWindow    = 20
	entropyBins    = 50
	rrMinMs        = 300.0
	rrMaxMs        = 2000.0
)

// ExtractFeatures derives the fixed-dimensionality FeatureBundle from a
// template beat, the R-peaks used to build it, and the sample rate. Any
// group that cannot be computed (too few peaks for HRV, a degenerate
// template for morphology) is filled with its documented zero value so the
// bundle's shape never changes.
func ExtractFeatures(template models.Template, peaks models.RPeakSet, sampleRate float64) models.FeatureBundle {
	return models.FeatureBundle{
		Morphological: extractMorphological(template.Vector, sampleRate),
		HRV:           extractHRV(peaks, sampleRate),
		Frequency:     extractFrequency(template.Vector, sampleRate),
		Statistical:   extractStatistical(template.Vector),
	}
}

type landmarks struct {
	pOnset, pPeak, pOffset int
	qOnset, rPeak, sEnd    int
	tOnset, tPeak, tOffset int
	valid                  bool
}

// findLandmarks performs the morphological search described in the
// specification: seed the R-peak near rPositionFrac*L, bracket Q/S around
// it, then search for P before Q and T after S.
func findLandmarks(x []float64, sampleRate float64) landmarks {
	n := len(x)
	if n == 0 {
		return landmarks{}
	}

	seed := int(rPositionFrac * float64(n))
	rIdx := argmaxWindow(x, seed-rSeedWindow, seed+rSeedWindow)

	qWinStart := rIdx - int(0.1*sampleRate)
	qOnset := argminWindow(x, qWinStart, rIdx-1)

	sWinEnd := rIdx + int(0.1*sampleRate)
	sEnd := argminWindow(x, rIdx+1, sWinEnd)

	pWinStart := qOnset - int(0.15*sampleRate)
	pPeak := argmaxWindow(x, pWinStart, qOnset-1)
	pOnset := argminWindow(x, pWinStart, pPeak-1)
	pOffset := argminWindow(x, pPeak+1, qOnset-1)

	tWinStart := sEnd + int(0.02*sampleRate)
	tWinEnd := sEnd + int(0.4*sampleRate)
	tPeak := argmaxWindow(x, tWinStart, tWinEnd)
	tOnset := argminWindow(x, tWinStart, tPeak-1)
	tOffset := nearestBaselineAfter(x, tPeak, tWinEnd)

	return landmarks{
		pOnset: pOnset, pPeak: pPeak, pOffset: pOffset,
		qOnset: qOnset, rPeak: rIdx, sEnd: sEnd,
		tOnset: tOnset, tPeak: tPeak, tOffset: tOffset,
		valid: true,
	}
}

func argmaxWindow(x []float64, lo, hi int) int {
	lo, hi = clampWindow(lo, hi, len(x))
	best := lo
	for i := lo; i <= hi; i++ {
		if x[i] > x[best] {
			best = i
		}
	}
	return best
}

func argminWindow(x []float64, lo, hi int) int {
	lo, hi = clampWindow(lo, hi, len(x))
	best := lo
	for i := lo; i <= hi; i++ {
		if x[i] < x[best] {
			best = i
		}
	}
	return best
}

func clampWindow(lo, hi, n int) (int, int) {
	if lo < 0 {
		lo = 0
	}
	if hi >= n {
		hi = n - 1
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// nearestBaselineAfter returns the index in (from, to] whose value has the
// smallest magnitude (closest to the isoelectric baseline of 0 in a
// Z-score-normalized beat).
func nearestBaselineAfter(x []float64, from, to int) int {
	lo, hi := clampWindow(from+1, to, len(x))
	best := lo
	for i := lo; i <= hi; i++ {
		if math.Abs(x[i]) < math.Abs(x[best]) {
			best = i
		}
	}
	return best
}

func extractMorphological(x []float64, sampleRate float64) models.MorphologicalFeatures {
	if len(x) == 0 {
		return models.MorphologicalFeatures{}
	}
	lm := findLandmarks(x, sampleRate)

	msPerSample := 1000.0 / sampleRate
	f := models.MorphologicalFeatures{
		PAmplitude: x[lm.pPeak],
		QAmplitude: x[lm.qOnset],
		RAmplitude: x[lm.rPeak],
		SAmplitude: x[lm.sEnd],
		TAmplitude: x[lm.tPeak],

		PRIntervalMs: float64(lm.rPeak-lm.pOnset) * msPerSample,
		QRIntervalMs: float64(lm.rPeak-lm.qOnset) * msPerSample,
		RSIntervalMs: float64(lm.sEnd-lm.rPeak) * msPerSample,
		QTIntervalMs: float64(lm.tOffset-lm.qOnset) * msPerSample,
		STIntervalMs: float64(lm.tOnset-lm.sEnd) * msPerSample,
		PDurationMs:  float64(lm.pOffset-lm.pOnset) * msPerSample,
		TDurationMs:  float64(lm.tOffset-lm.tPeak) * msPerSample,

		QRSAreaAbs: trapezoidalAbsArea(x, lm.qOnset, lm.sEnd),
		PAreaAbs:   trapezoidalAbsArea(x, lm.pOnset, lm.pOffset),
		TAreaAbs:   trapezoidalAbsArea(x, lm.tPeak, lm.tOffset),
	}
	f.QRSDurMs = f.QRIntervalMs + f.RSIntervalMs

	if f.RAmplitude != 0 {
		f.PRRatio = f.PAmplitude / f.RAmplitude
		f.TRRatio = f.TAmplitude / f.RAmplitude
	}

	f.RUpSlope = slope(x, lm.qOnset, lm.rPeak)
	f.RDownSlope = slope(x, lm.rPeak, lm.sEnd)

	return f
}

// trapezoidalAbsArea integrates |x| over [lo, hi] using the trapezoidal
// rule, one unit of sample spacing per step.
func trapezoidalAbsArea(x []float64, lo, hi int) float64 {
	lo, hi = clampWindow(lo, hi, len(x))
	if hi <= lo {
		return 0
	}
	area := 0.0
	for i := lo; i < hi; i++ {
		area += (math.Abs(x[i]) + math.Abs(x[i+1])) / 2
	}
	return area
}

func slope(x []float64, from, to int) float64 {
	if to == from {
		return 0
	}
	return (x[to] - x[from]) / float64(to-from+1)
}

func extractHRV(peaks models.RPeakSet, sampleRate float64) models.HRVFeatures {
	if peaks.Count() < 2 {
		return models.HRVFeatures{}
	}

	var rr []float64
	for i := 1; i < len(peaks.Indices); i++ {
		ms := float64(peaks.Indices[i]-peaks.Indices[i-1]) / sampleRate * 1000
		if ms >= rrMinMs && ms <= rrMaxMs {
			rr = append(rr, ms)
		}
	}
	if len(rr) < 2 {
		return models.HRVFeatures{}
	}

	m := mean(rr)
	sd := math.Sqrt(variance(rr))

	var diffs []float64
	var nn50, nn20 int
	for i := 1; i < len(rr); i++ {
		d := rr[i] - rr[i-1]
		diffs = append(diffs, d*d)
		if math.Abs(d) > 50 {
			nn50++
		}
		if math.Abs(d) > 20 {
			nn20++
		}
	}

	rmssd := 0.0
	if len(diffs) > 0 {
		rmssd = math.Sqrt(mean(diffs))
	}

	cv := 0.0
	if m != 0 {
		cv = sd / m
	}

	heartRate := 0.0
	if m != 0 {
		heartRate = 60000 / m
	}

	return models.HRVFeatures{
		MeanRRMs:     m,
		StdRRMs:      sd,
		HeartRateBpm: heartRate,
		SDNNMs:       sd,
		RMSSDMs:      rmssd,
		PNN50:        float64(nn50) / float64(len(diffs)) * 100,
		PNN20:        float64(nn20) / float64(len(diffs)) * 100,
		CV:           cv,
	}
}

func extractFrequency(x []float64, sampleRate float64) models.FrequencyFeatures {
	if len(x) == 0 {
		return models.FrequencyFeatures{}
	}

	fft := fourier.NewFFT(len(x))
	coeffs := fft.Coefficients(nil, x)

	freqStep := sampleRate / float64(len(x))
	mags := make([]float64, len(coeffs))
	totalPower := 0.0
	for i, c := range coeffs {
		re, im := real(c), imag(c)
		mag := math.Sqrt(re*re + im*im)
		mags[i] = mag
		totalPower += mag * mag
	}

	var lowPower, midPower, highPower float64
	var centroidNum, centroidDen float64
	for i, mag := range mags {
		freq := float64(i) * freqStep
		power := mag * mag
		switch {
		case freq < 5:
			lowPower += power
		case freq < 15:
			midPower += power
		case freq < 40:
			highPower += power
		}
		centroidNum += freq * mag
		centroidDen += mag
	}

	if totalPower == 0 {
		totalPower = 1
	}

	centroid := 0.0
	if centroidDen != 0 {
		centroid = centroidNum / centroidDen
	}

	spread := 0.0
	if centroidDen != 0 {
		var spreadNum float64
		for i, mag := range mags {
			freq := float64(i) * freqStep
			d := freq - centroid
			spreadNum += d * d * mag
		}
		spread = math.Sqrt(spreadNum / centroidDen)
	}

	dominantIdx := 0
	for i, mag := range mags {
		if mag > mags[dominantIdx] {
			dominantIdx = i
		}
	}
	dominantFreq := float64(dominantIdx) * freqStep

	lfhf := 0.0
	if highPower != 0 {
		lfhf = midPower / highPower
	}

	var top [5]float64
	sorted := append([]float64(nil), mags...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	maxMag := 0.0
	if len(sorted) > 0 {
		maxMag = sorted[0]
	}
	for i := 0; i < 5 && i < len(sorted); i++ {
		if maxMag != 0 {
			top[i] = sorted[i] / maxMag
		}
	}

	return models.FrequencyFeatures{
		LowBandPower:     lowPower / totalPower,
		MidBandPower:     midPower / totalPower,
		HighBandPower:    highPower / totalPower,
		LFHFRatio:        lfhf,
		SpectralCentroid: centroid,
		SpectralSpread:   spread,
		DominantFreqHz:   dominantFreq,
		TopCoefficients:  top,
	}
}

func extractStatistical(x []float64) models.StatisticalFeatures {
	if len(x) == 0 {
		return models.StatisticalFeatures{}
	}

	m := mean(x)
	v := variance(x)
	sd := math.Sqrt(v)
	maxV, minV := x[0], x[0]
	energy := 0.0
	zeroCrossings := 0
	for i, val := range x {
		if val > maxV {
			maxV = val
		}
		if val < minV {
			minV = val
		}
		energy += val * val
		if i > 0 && ((x[i-1] < 0 && val >= 0) || (x[i-1] >= 0 && val < 0)) {
			zeroCrossings++
		}
	}

	return models.StatisticalFeatures{
		Mean:             m,
		Std:              sd,
		Var:              v,
		Max:              maxV,
		Min:              minV,
		Range:            maxV - minV,
		Skewness:         popSkewness(x),
		ExcessKurtosis:   popExcessKurtosis(x),
		Energy:           energy,
		RMS:              math.Sqrt(energy / float64(len(x))),
		ZeroCrossingRate: float64(zeroCrossings) / float64(len(x)),
		Entropy:          histogramEntropy(x, entropyBins),
	}
}

// histogramEntropy bins x into nBins equal-width buckets between its min
// and max and returns the Shannon entropy (natural log) of the resulting
// distribution.
func histogramEntropy(x []float64, nBins int) float64 {
	if len(x) == 0 {
		return 0
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
	if span == 0 {
		return 0
	}

	counts := make([]int, nBins)
	for _, v := range x {
		bin := int((v - minV) / span * float64(nBins))
		if bin >= nBins {
			bin = nBins - 1
		}
		if bin < 0 {
			bin = 0
		}
		counts[bin]++
	}

	total := float64(len(x))
	entropy := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		entropy -= p * math.Log(p)
	}
	return entropy
}
