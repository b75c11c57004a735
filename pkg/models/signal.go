// Package models holds the data types shared across the ECG pipeline,
// the auth matcher, and the store: raw/preprocessed signals, beats and
// templates, feature bundles, signatures, and the persisted user record.
package models

// QualityReport summarizes the preprocessor's assessment of a signal window.
// Acceptable is true iff Score >= 60; callers, not the preprocessor, decide
// whether to reject a low-quality window.
type QualityReport struct {
	SNRDb      float64 `json:"snrDb"`
	Saturated  bool    `json:"saturated"`
	Flat       bool    `json:"flat"`
	Score      int     `json:"score"`
	Acceptable bool    `json:"acceptable"`
}

// RPeakSet is a strictly increasing sequence of sample indices into a
// preprocessed signal, each the location of a detected R-peak. Consecutive
// indices are guaranteed to differ by at least 0.2*SampleRate samples.
type RPeakSet struct {
	Indices    []int   `json:"indices"`
	MeanHRBpm  float64 `json:"meanHrBpm"`
	Envelope   []float64 `json:"-"` // detection envelope, not persisted
}

// Count returns the number of detected peaks.
func (r RPeakSet) Count() int {
	return len(r.Indices)
}

// Template is a fixed-length (BeatLength), Z-score-normalized representative
// beat formed by weighted averaging of surviving beats in a session.
type Template struct {
	Vector        []float64 `json:"vector"`
	BeatsSeen     int       `json:"beatsSeen"`
	BeatsSurvived int       `json:"beatsSurvived"`
}

// FeatureBundle is the fixed-dimensionality record produced by the feature
// extractor. Any group that could not be computed (e.g. HRV with fewer than
// two peaks) is filled with its documented zero value rather than omitted,
// so the dimensionality never changes between calls.
type FeatureBundle struct {
	Morphological MorphologicalFeatures `json:"morphological"`
	HRV           HRVFeatures           `json:"hrv"`
	Frequency     FrequencyFeatures     `json:"frequency"`
	Statistical   StatisticalFeatures   `json:"statistical"`
}

// MorphologicalFeatures describes the P-QRS-T landmark geometry of the
// template beat. Amplitudes are in the template's Z-score units; intervals
// and durations are in milliseconds.
type MorphologicalFeatures struct {
	PAmplitude   float64 `json:"pAmplitude"`
	QAmplitude   float64 `json:"qAmplitude"`
	RAmplitude   float64 `json:"rAmplitude"`
	SAmplitude   float64 `json:"sAmplitude"`
	TAmplitude   float64 `json:"tAmplitude"`
	PRIntervalMs float64 `json:"prIntervalMs"`
	QRIntervalMs float64 `json:"qrIntervalMs"`
	RSIntervalMs float64 `json:"rsIntervalMs"`
	QRSDurMs     float64 `json:"qrsDurationMs"`
	QTIntervalMs float64 `json:"qtIntervalMs"`
	STIntervalMs float64 `json:"stIntervalMs"`
	PDurationMs  float64 `json:"pDurationMs"`
	TDurationMs  float64 `json:"tDurationMs"`
	QRSAreaAbs   float64 `json:"qrsAreaAbs"`
	PAreaAbs     float64 `json:"pAreaAbs"`
	TAreaAbs     float64 `json:"tAreaAbs"`
	PRRatio      float64 `json:"prRatio"`
	TRRatio      float64 `json:"trRatio"`
	RUpSlope     float64 `json:"rUpSlope"`
	RDownSlope   float64 `json:"rDownSlope"`
}

// HRVFeatures are standard time-domain heart-rate-variability metrics over
// consecutive RR intervals, all in milliseconds except HeartRateBpm, CV and
// the percentage-like pNN metrics. The zero value is the defined sentinel
// used when fewer than two valid RR intervals are available.
type HRVFeatures struct {
	MeanRRMs    float64 `json:"meanRrMs"`
	StdRRMs     float64 `json:"stdRrMs"`
	HeartRateBpm float64 `json:"heartRateBpm"`
	SDNNMs      float64 `json:"sdnnMs"`
	RMSSDMs     float64 `json:"rmssdMs"`
	PNN50       float64 `json:"pnn50"`
	PNN20       float64 `json:"pnn20"`
	CV          float64 `json:"cv"`
}

// FrequencyFeatures are spectral descriptors of the template beat.
// TopCoefficients holds the five largest FFT magnitudes, each divided by
// the maximum magnitude so the scale is stable across templates.
type FrequencyFeatures struct {
	LowBandPower   float64    `json:"lowBandPower"`   // 0-5 Hz relative power
	MidBandPower   float64    `json:"midBandPower"`   // 5-15 Hz relative power
	HighBandPower  float64    `json:"highBandPower"`  // 15-40 Hz relative power
	LFHFRatio      float64    `json:"lfHfRatio"`
	SpectralCentroid float64 `json:"spectralCentroid"`
	SpectralSpread float64   `json:"spectralSpread"`
	DominantFreqHz float64   `json:"dominantFreqHz"`
	TopCoefficients [5]float64 `json:"topCoefficients"`
}

// StatisticalFeatures are generic distributional descriptors of the
// template beat's amplitude values.
type StatisticalFeatures struct {
	Mean             float64 `json:"mean"`
	Std              float64 `json:"std"`
	Var              float64 `json:"var"`
	Max              float64 `json:"max"`
	Min              float64 `json:"min"`
	Range            float64 `json:"range"`
	Skewness         float64 `json:"skewness"`
	ExcessKurtosis   float64 `json:"excessKurtosis"`
	Energy           float64 `json:"energy"`
	RMS              float64 `json:"rms"`
	ZeroCrossingRate float64 `json:"zeroCrossingRate"`
	Entropy          float64 `json:"entropy"`
}

// SignatureRecord is the fixed-dimension feature vector and its derived
// forms produced by the signature composer. D (len(RawVector)) is constant
// across every record produced by a given build of the enumeration in
// dsp.EnumerateFeatures.
type SignatureRecord struct {
	RawVector        []float64 `json:"rawVector"`
	NormalizedVector []float64 `json:"normalizedVector"`
	Discretized      []byte    `json:"discretized"`
	HashHex          string    `json:"hashHex"`
	HashB64          string    `json:"hashB64"`
}
