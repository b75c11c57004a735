package dsp

import (
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// nyquistClamp keeps a cutoff frequency within (0.01, 0.9) of Nyquist so the
// bilinear-transformed biquad coefficients stay numerically well-behaved at
// the extremes, per the specification's clamp on the high-pass stage.
func nyquistClamp(cutoffHz, sampleRate float64) float64 {
	nyquist := sampleRate / 2
	norm := cutoffHz / nyquist
	if norm < 0.01 {
		norm = 0.01
	}
	if norm > 0.9 {
		norm = 0.9
	}
	return norm * nyquist
}

// cascade is a chain of biquad sections processed in series, used to build
// filters of order higher than 2 out of algo-dsp's single 2nd-order
// sections (e.g. the 4th-order low-pass is two cascaded low-pass biquads).
// It holds coefficients rather than live sections so a fresh, zero-state
// chain of sections can be built for each forward or backward pass.
type cascade struct {
	coeffs []biquad.Coefficients
}

func newCascade(coeffs ...biquad.Coefficients) *cascade {
	return &cascade{coeffs: coeffs}
}

// process runs x through a freshly-initialized chain of sections, so
// repeated calls never carry state between them.
func (c *cascade) process(x []float64) []float64 {
	sections := make([]*biquad.Section, len(c.coeffs))
	for i, co := range c.coeffs {
		sections[i] = biquad.NewSection(co)
	}
	out := make([]float64, len(x))
	for i, v := range x {
		for _, s := range sections {
			v = s.ProcessSample(v)
		}
		out[i] = v
	}
	return out
}

// filtfilt applies cascade c to x forward, then again on the reversed
// result, and reverses back — a zero-phase (non-causal) filter that
// preserves the timing of landmarks such as the R-peak. algo-dsp only
// exposes single-direction biquads, so this forward-backward composition
// is this repository's own code, not a library call.
func filtfilt(c *cascade, x []float64) []float64 {
	forward := c.process(x)
	reversed := reverse(forward)
	backward := c.process(reversed)
	return reverse(backward)
}

func reverse(x []float64) []float64 {
	out := make([]float64, len(x))
	n := len(x)
	for i, v := range x {
		out[n-1-i] = v
	}
	return out
}

// highpassFiltfilt applies a 2nd-order zero-phase Butterworth-style
// high-pass at cutoffHz.
func highpassFiltfilt(x []float64, cutoffHz, sampleRate float64) []float64 {
	cutoffHz = nyquistClamp(cutoffHz, sampleRate)
	c := newCascade(design.Highpass(cutoffHz, butterworthQ, sampleRate))
	return filtfilt(c, x)
}

// lowpassFiltfilt applies a 4th-order zero-phase Butterworth-style
// low-pass at cutoffHz, built from two cascaded 2nd-order sections.
func lowpassFiltfilt(x []float64, cutoffHz, sampleRate float64) []float64 {
	cutoffHz = nyquistClamp(cutoffHz, sampleRate)
	c := newCascade(
		design.Lowpass(cutoffHz, butterworthQ, sampleRate),
		design.Lowpass(cutoffHz, butterworthQ, sampleRate),
	)
	return filtfilt(c, x)
}

// bandpassFiltfilt applies a 2nd-order zero-phase bandpass filter centered
// between loHz and hiHz.
func bandpassFiltfilt(x []float64, loHz, hiHz, sampleRate float64) []float64 {
	center := (loHz + hiHz) / 2
	bandwidth := hiHz - loHz
	if bandwidth <= 0 {
		bandwidth = 1
	}
	q := center / bandwidth
	c := newCascade(design.Bandpass(center, q, sampleRate))
	return filtfilt(c, x)
}

// notchFilter applies a biquad notch at freqHz with the given Q, run
// zero-phase through filtfilt like every other stage of the chain.
func notchFilter(x []float64, freqHz, q, sampleRate float64) []float64 {
	c := newCascade(design.Notch(freqHz, q, sampleRate))
	return filtfilt(c, x)
}

// butterworthQ is the per-section Q that approximates a maximally-flat
// Butterworth response when cascading 2nd-order sections (0.7071 ~= 1/sqrt(2)).
const butterworthQ = 0.70710678
