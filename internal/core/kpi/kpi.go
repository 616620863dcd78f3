package kpi

import (
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/numeric"
)

// Engagement is the period aggregate of the primary engagement source.
type Engagement struct {
	Sessions      float64
	PageViews     float64
	BounceRate    float64
	AvgTimeOnPage float64
}

// Conversion is the period aggregate of form submissions.
type Conversion struct {
	TotalSubmissions      float64
	TotalPipelineValueUSD float64
}

// Search is the search-performance aggregate.
type Search struct {
	OrganicClicks float64
	Impressions   float64
	AvgPosition   float64
}

// FunnelFallback carries page views from the funnel event source. It is only
// consulted when the engagement source reports no activity at all.
type FunnelFallback struct {
	PageViews float64
}

// Inputs groups the decoded aggregates for one period.
type Inputs struct {
	Engagement Engagement
	Conversion Conversion
	Search     Search
	Fallback   *FunnelFallback
}

// UsesFallback reports whether Build will approximate engagement from the
// funnel source for these inputs.
func (in Inputs) UsesFallback() bool {
	if in.Fallback == nil {
		return false
	}
	return numeric.NonNegative(in.Engagement.Sessions) == 0 &&
		numeric.NonNegative(in.Engagement.PageViews) == 0 &&
		numeric.NonNegative(in.Fallback.PageViews) > 0
}

// Set is the derived KPI record for one period. Every field is finite and
// non-negative; BounceRate and OrganicCTR are within [0,1].
type Set struct {
	Sessions              float64 `json:"sessions"`
	PageViews             float64 `json:"page_views"`
	BounceRate            float64 `json:"bounce_rate"`
	AvgTimeOnPageSeconds  float64 `json:"avg_time_on_page_seconds"`
	TotalSubmissions      float64 `json:"total_submissions"`
	TotalPipelineValueUSD float64 `json:"total_pipeline_value_usd"`
	OrganicClicks         float64 `json:"organic_clicks"`
	Impressions           float64 `json:"impressions"`
	AvgPosition           float64 `json:"avg_position"`
	OrganicCTR            float64 `json:"organic_ctr"`
	RevenuePerSession     float64 `json:"revenue_per_session"`
	RevenuePerClick       float64 `json:"revenue_per_click"`
	SubmissionsPerSession float64 `json:"submissions_per_session"`
	SubmissionsPerClick   float64 `json:"submissions_per_click"`
}

// Field is a named KPI value.
type Field struct {
	Name  string
	Value float64
}

// Fields returns every KPI in a stable order, keyed by its JSON name.
func (s Set) Fields() []Field {
	return []Field{
		{"sessions", s.Sessions},
		{"page_views", s.PageViews},
		{"bounce_rate", s.BounceRate},
		{"avg_time_on_page_seconds", s.AvgTimeOnPageSeconds},
		{"total_submissions", s.TotalSubmissions},
		{"total_pipeline_value_usd", s.TotalPipelineValueUSD},
		{"organic_clicks", s.OrganicClicks},
		{"impressions", s.Impressions},
		{"avg_position", s.AvgPosition},
		{"organic_ctr", s.OrganicCTR},
		{"revenue_per_session", s.RevenuePerSession},
		{"revenue_per_click", s.RevenuePerClick},
		{"submissions_per_session", s.SubmissionsPerSession},
		{"submissions_per_click", s.SubmissionsPerClick},
	}
}

// Build derives the KPI set. Counts are floored at zero, rates are clamped,
// and ratios go through SafeDivide, so the result stays in domain for any input.
func Build(in Inputs) Set {
	sessions := numeric.NonNegative(in.Engagement.Sessions)
	pageViews := numeric.NonNegative(in.Engagement.PageViews)
	if in.UsesFallback() {
		pageViews = numeric.NonNegative(in.Fallback.PageViews)
		sessions = pageViews
	}

	submissions := numeric.NonNegative(in.Conversion.TotalSubmissions)
	pipeline := numeric.NonNegative(in.Conversion.TotalPipelineValueUSD)
	clicks := numeric.NonNegative(in.Search.OrganicClicks)
	impressions := numeric.NonNegative(in.Search.Impressions)

	return Set{
		Sessions:              sessions,
		PageViews:             pageViews,
		BounceRate:            numeric.Clamp(in.Engagement.BounceRate, 0, 1),
		AvgTimeOnPageSeconds:  numeric.NonNegative(in.Engagement.AvgTimeOnPage),
		TotalSubmissions:      submissions,
		TotalPipelineValueUSD: pipeline,
		OrganicClicks:         clicks,
		Impressions:           impressions,
		AvgPosition:           numeric.NonNegative(in.Search.AvgPosition),
		OrganicCTR:            numeric.Clamp(numeric.SafeDivide(clicks, impressions), 0, 1),
		RevenuePerSession:     numeric.SafeDivide(pipeline, sessions),
		RevenuePerClick:       numeric.SafeDivide(pipeline, clicks),
		SubmissionsPerSession: numeric.SafeDivide(submissions, sessions),
		SubmissionsPerClick:   numeric.SafeDivide(submissions, clicks),
	}
}

// ComparisonEntry is one KPI across the current and previous period.
// DeltaPct is a fraction (0.25 == +25%) and is 0 when Previous is 0.
type ComparisonEntry struct {
	Current  float64 `json:"current"`
	Previous float64 `json:"previous"`
	DeltaPct float64 `json:"delta_pct"`
}

// Compare pairs every field of cur with the same field of prev.
func Compare(cur, prev Set) map[string]ComparisonEntry {
	prevFields := prev.Fields()
	out := make(map[string]ComparisonEntry, len(prevFields))
	for i, f := range cur.Fields() {
		p := prevFields[i].Value
		out[f.Name] = ComparisonEntry{
			Current:  f.Value,
			Previous: p,
			DeltaPct: numeric.SafeDivide(f.Value-p, p),
		}
	}
	return out
}
