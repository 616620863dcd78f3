package report

import (
	"time"

	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/anomaly"
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/kpi"
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/period"
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/taxonomy"
)

// Report is the immutable result of one BuildReport call. Listings are never
// nil so they serialize as [].
type Report struct {
	Period           PeriodInfo                     `json:"period"`
	ComparisonPeriod period.TimeWindow              `json:"comparison_period"`
	KPIs             kpi.Set                        `json:"kpis"`
	PreviousKPIs     kpi.Set                        `json:"previous_kpis"`
	Comparisons      map[string]kpi.ComparisonEntry `json:"comparisons"`
	Pages            []PageRecord                   `json:"pages"`
	Sources          []SourceRecord                 `json:"sources"`
	Channels         []ChannelRecord                `json:"channels"`
	SEOQueries       []SEOQueryRecord               `json:"seo_queries"`
	Breakdowns       Breakdowns                     `json:"breakdowns"`
	Timeseries       *Timeseries                    `json:"timeseries,omitempty"`
	Anomalies        anomaly.Flags                  `json:"anomalies"`
	Meta             Metadata                       `json:"meta"`
}

// PeriodInfo describes the current window.
type PeriodInfo struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	Granularity string `json:"granularity"`
	Preset      string `json:"preset"`
}

// PageRecord is the per-URL rollup across engagement, search, funnel and
// conversion sources. Any of them may be absent for a URL.
type PageRecord struct {
	URL              string  `json:"url"`
	Sessions         float64 `json:"sessions"`
	PageViews        float64 `json:"page_views"`
	BounceRate       float64 `json:"bounce_rate"`
	OrganicClicks    float64 `json:"organic_clicks"`
	Impressions      float64 `json:"impressions"`
	AvgPosition      float64 `json:"avg_position"`
	FunnelViews      float64 `json:"funnel_views"`
	Submissions      float64 `json:"submissions"`
	PipelineValueUSD float64 `json:"pipeline_value_usd"`
	ConversionRate   float64 `json:"conversion_rate"`
	RevenuePerClick  float64 `json:"revenue_per_click"`
}

// SourceRecord is the rollup of one raw source label.
type SourceRecord struct {
	Source            string           `json:"source"`
	Channel           taxonomy.Channel `json:"channel"`
	Sessions          float64          `json:"sessions"`
	PageViews         float64          `json:"page_views"`
	Submissions       float64          `json:"submissions"`
	PipelineValueUSD  float64          `json:"pipeline_value_usd"`
	RevenuePerSession float64          `json:"revenue_per_session"`
}

// ChannelRecord aggregates sources by canonical channel.
type ChannelRecord struct {
	Channel           taxonomy.Channel `json:"channel"`
	Sources           int              `json:"sources"`
	Sessions          float64          `json:"sessions"`
	PageViews         float64          `json:"page_views"`
	Submissions       float64          `json:"submissions"`
	PipelineValueUSD  float64          `json:"pipeline_value_usd"`
	RevenuePerSession float64          `json:"revenue_per_session"`
}

// SEOQueryRecord is the lifetime rollup of one search query.
type SEOQueryRecord struct {
	Query       string  `json:"query"`
	Clicks      float64 `json:"clicks"`
	Impressions float64 `json:"impressions"`
	CTR         float64 `json:"ctr"`
	AvgPosition float64 `json:"avg_position"`
}

// BreakdownRecord is one slice of a dimension breakdown.
type BreakdownRecord struct {
	Key       string  `json:"key"`
	Sessions  float64 `json:"sessions"`
	PageViews float64 `json:"page_views"`
	Share     float64 `json:"share"`
}

type Breakdowns struct {
	Devices    []BreakdownRecord `json:"devices"`
	Countries  []BreakdownRecord `json:"countries"`
	Categories []BreakdownRecord `json:"categories"`
}

// Point is one day of a dense daily series.
type Point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Timeseries holds one point per day of the current window for each series.
type Timeseries struct {
	Sessions         []Point `json:"sessions"`
	PageViews        []Point `json:"page_views"`
	Submissions      []Point `json:"submissions"`
	PipelineValueUSD []Point `json:"pipeline_value_usd"`
	FunnelViews      []Point `json:"funnel_views"`
}

// Freshness holds the last observed date per raw source, nil when unobserved.
type Freshness struct {
	Engagement  *string `json:"engagement"`
	Conversions *string `json:"conversions"`
	Search      *string `json:"search"`
	Funnel      *string `json:"funnel"`
}

// Metadata is generated once per report.
// RowCounts covers pages and sources only; the remaining listings are
// counted in ListingCounts.
type Metadata struct {
	ReportID      string         `json:"report_id"`
	GeneratedAt   time.Time      `json:"generated_at"`
	ExecutionMs   int64          `json:"execution_ms"`
	RowCounts     map[string]int `json:"row_counts"`
	ListingCounts map[string]int `json:"listing_counts"`
	DataFreshness Freshness      `json:"data_freshness"`
	Caveats       []string       `json:"caveats"`
}

// Caveats attached to Metadata when a result is known to be approximate.
const (
	CaveatSessionsApproximated         = "sessions_approximated_from_funnel"
	CaveatPreviousSessionsApproximated = "previous_sessions_approximated_from_funnel"
)
