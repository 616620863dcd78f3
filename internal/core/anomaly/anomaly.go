package anomaly

import "math"

const (
	// MinSamples is the smallest window that can produce a flag.
	MinSamples = 7

	// StddevMultiplier is how many population standard deviations above the
	// mean the latest value must exceed.
	StddevMultiplier = 2.0
)

// Series is a daily series pre-aggregated over the active window.
type Series struct {
	SampleCount int
	Mean        float64
	Stddev      float64
	Latest      float64
}

// Detect reports whether Latest is a spike relative to the window. It returns
// false below MinSamples, with zero variance, or when any statistic is not finite.
func Detect(s Series) bool {
	if s.SampleCount < MinSamples {
		return false
	}
	if !finite(s.Mean) || !finite(s.Stddev) || !finite(s.Latest) {
		return false
	}
	if s.Stddev <= 0 {
		return false
	}
	return s.Latest > s.Mean+StddevMultiplier*s.Stddev
}

// Flags holds the independent spike checks of a report.
type Flags struct {
	SessionsSpike      bool `json:"sessions_spike"`
	SubmissionsSpike   bool `json:"submissions_spike"`
	PipelineValueSpike bool `json:"pipeline_value_spike"`
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
