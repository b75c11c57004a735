package dsp

import (
	"fmt"
	"math"
	"sort"

	"github.com/rawblock/ecg-auth-engine/pkg/models"
)

// BeatLength is the fixed resampled length (L in the specification) every
// beat and template is normalized to.
const BeatLength = 300

const (
	beatPreSeconds  = 0.25
	beatPostSeconds = 0.40
	outlierMinBeats = 3
	outlierZThresh  = 2.0
)

// ErrNoValidBeats is returned by BuildTemplate when every extracted beat
// was discarded (boundary-crossing, or rejected as an outlier) and none
// survive to form a template.
var ErrNoValidBeats = fmt.Errorf("no valid beats survived extraction and outlier rejection")

// BuildTemplate extracts a beat around each R-peak, normalizes and
// resamples it, rejects statistical outliers, and forms the template as a
// weighted average of survivors.
func BuildTemplate(preprocessed []float64, peaks models.RPeakSet, sampleRate float64) (models.Template, error) {
	pre := int(beatPreSeconds * sampleRate)
	post := int(beatPostSeconds * sampleRate)

	var beats [][]float64
	for _, p := range peaks.Indices {
		start := p - pre
		end := p + post
		if start < 0 || end > len(preprocessed) {
			continue
		}
		beat := append([]float64(nil), preprocessed[start:end]...)
		beat = zScoreNormalize(beat)
		beat = resampleLinear(beat, BeatLength)
		beats = append(beats, beat)
	}

	if len(beats) == 0 {
		return models.Template{}, ErrNoValidBeats
	}

	survivors, distances := rejectOutliers(beats)
	if len(survivors) == 0 {
		return models.Template{}, ErrNoValidBeats
	}

	vector := weightedAverage(survivors, distances)
	return models.Template{
		Vector:        vector,
		BeatsSeen:     len(beats),
		BeatsSurvived: len(survivors),
	}, nil
}

// zScoreNormalize subtracts the mean and divides by the standard deviation;
// when std is 0 it only subtracts the mean.
func zScoreNormalize(x []float64) []float64 {
	m := mean(x)
	std := math.Sqrt(variance(x))
	out := make([]float64, len(x))
	for i, v := range x {
		if std == 0 {
			out[i] = v - m
		} else {
			out[i] = (v - m) / std
		}
	}
	return out
}

// resampleLinear resamples x to length n via linear interpolation over the
// normalized domain [0, 1].
func resampleLinear(x []float64, n int) []float64 {
	if len(x) == 0 {
		return make([]float64, n)
	}
	if len(x) == 1 {
		out := make([]float64, n)
		for i := range out {
			out[i] = x[0]
		}
		return out
	}
	out := make([]float64, n)
	lastIdx := float64(len(x) - 1)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n-1)
		pos := t * lastIdx
		lo := int(math.Floor(pos))
		hi := lo + 1
		if hi > int(lastIdx) {
			hi = int(lastIdx)
			lo = hi
		}
		frac := pos - float64(lo)
		out[i] = x[lo]*(1-frac) + x[hi]*frac
	}
	return out
}

// rmse computes the root-mean-square error between two equal-length vectors.
func rmse(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(a)))
}

func elementwiseMedian(beats [][]float64) []float64 {
	if len(beats) == 0 {
		return nil
	}
	n := len(beats[0])
	out := make([]float64, n)
	col := make([]float64, len(beats))
	for i := 0; i < n; i++ {
		for b := range beats {
			col[b] = beats[b][i]
		}
		out[i] = median(col)
	}
	return out
}

func median(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// rejectOutliers computes each beat's RMSE to the elementwise median beat,
// then drops any beat whose modified Z-score on that distance exceeds
// outlierZThresh. With fewer than outlierMinBeats beats, or a zero MAD, no
// beat is dropped. It returns the surviving beats alongside their distances
// (needed by the caller to weight the template average).
func rejectOutliers(beats [][]float64) (survivors [][]float64, distances []float64) {
	if len(beats) < outlierMinBeats {
		allDistances := make([]float64, len(beats))
		med := elementwiseMedian(beats)
		for i, b := range beats {
			allDistances[i] = rmse(b, med)
		}
		return beats, allDistances
	}

	med := elementwiseMedian(beats)
	d := make([]float64, len(beats))
	for i, b := range beats {
		d[i] = rmse(b, med)
	}

	medD := median(d)
	absDev := make([]float64, len(d))
	for i, v := range d {
		absDev[i] = math.Abs(v - medD)
	}
	mad := median(absDev)

	if mad == 0 {
		return beats, d
	}

	for i, v := range d {
		modZ := 0.6745 * (v - medD) / mad
		if modZ <= outlierZThresh {
			survivors = append(survivors, beats[i])
			distances = append(distances, d[i])
		}
	}
	return survivors, distances
}

// weightedAverage combines survivors with weights proportional to
// 1/(distance+1e-8), normalized to sum to 1.
func weightedAverage(beats [][]float64, distances []float64) []float64 {
	if len(beats) == 1 {
		return append([]float64(nil), beats[0]...)
	}

	weights := make([]float64, len(beats))
	var total float64
	for i, d := range distances {
		w := 1 / (d + 1e-8)
		weights[i] = w
		total += w
	}
	if total == 0 {
		total = 1
	}

	n := len(beats[0])
	out := make([]float64, n)
	for i, beat := range beats {
		w := weights[i] / total
		for j, v := range beat {
			out[j] += w * v
		}
	}
	return out
}
