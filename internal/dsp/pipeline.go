package dsp

import (
	"github.com/rawblock/ecg-auth-engine/pkg/models"
)

// Status tags the outcome of a pipeline Run, so callers (the matcher, the
// transport layer) can react to exactly where a window failed without
// parsing an error string.
type Status string

const (
	StatusSuccess              Status = "success"
	StatusLowQuality           Status = "low_quality"
	StatusInsufficientPeaks    Status = "insufficient_peaks"
	StatusBeatProcessingFailed Status = "beat_processing_failed"
	// StatusSignatureFailed is part of the documented status vocabulary but
	// unreachable from Run: ComposeSignature is total over any FeatureBundle
	// (sanitize/normalize/discretize all have defined behavior at every
	// degenerate input). It is reserved for callers that wrap signature
	// composition with additional validation of their own.
	StatusSignatureFailed Status = "signature_failed"
)

// MinPeaksRequired is the fewest R-peaks a window must yield before the
// beat processor is even attempted.
const MinPeaksRequired = 3

// Result bundles everything a single pipeline run produced, including the
// intermediate stages, so a caller that wants to log or inspect the
// preprocessed signal or R-peak set doesn't need to re-run earlier stages.
type Result struct {
	Status    Status
	Quality   models.QualityReport
	Peaks     models.RPeakSet
	Template  models.Template
	Features  models.FeatureBundle
	Signature models.SignatureRecord
}

// Run chains Preprocess, DetectRPeaks, BuildTemplate, ExtractFeatures and
// ComposeSignature over a raw ADC window, stopping at the first stage that
// cannot produce a usable result and reporting why via Status.
func Run(raw []int, sampleRate float64) Result {
	preprocessed, quality := Preprocess(raw, sampleRate)
	if !quality.Acceptable {
		return Result{Status: StatusLowQuality, Quality: quality}
	}

	peaks := DetectRPeaks(preprocessed, sampleRate)
	if peaks.Count() < MinPeaksRequired {
		return Result{Status: StatusInsufficientPeaks, Quality: quality, Peaks: peaks}
	}

	template, err := BuildTemplate(preprocessed, peaks, sampleRate)
	if err != nil {
		return Result{Status: StatusBeatProcessingFailed, Quality: quality, Peaks: peaks}
	}

	features := ExtractFeatures(template, peaks, sampleRate)
	signature := ComposeSignature(features)

	return Result{
		Status:    StatusSuccess,
		Quality:   quality,
		Peaks:     peaks,
		Template:  template,
		Features:  features,
		Signature: signature,
	}
}
