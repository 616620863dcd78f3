package storage

import (
	"context"
	"errors"
)

var (
	// ErrUnknownQuery is returned when a query id is not in the Catalog.
	ErrUnknownQuery = errors.New("unknown query")

	// ErrMissingDateRange is returned when a dated query is executed without params.
	ErrMissingDateRange = errors.New("dated query requires a date range")
)

// QueryID names one read-only query known to the executor.
type QueryID string

// Period aggregates.
const (
	QueryEngagementSummary QueryID = "engagement_summary"
	QueryConversionSummary QueryID = "conversion_summary"
	QueryFunnelFallback    QueryID = "funnel_fallback"
	QuerySearchSummary     QueryID = "search_summary"
)

// Listings and metadata.
const (
	QueryPageJoin          QueryID = "page_join"
	QuerySourceRollup      QueryID = "source_rollup"
	QueryFreshness         QueryID = "freshness"
	QuerySEOQueries        QueryID = "seo_queries"
	QueryDeviceBreakdown   QueryID = "device_breakdown"
	QueryCountryBreakdown  QueryID = "country_breakdown"
	QueryCategoryBreakdown QueryID = "category_breakdown"
)

// Anomaly series, pre-aggregated to sample_count/mean/stddev/latest.
const (
	QueryAnomalySessions      QueryID = "anomaly_sessions"
	QueryAnomalySubmissions   QueryID = "anomaly_submissions"
	QueryAnomalyPipelineValue QueryID = "anomaly_pipeline_value"
)

// Daily series, one row per observed day.
const (
	QueryTimeseriesSessions      QueryID = "ts_sessions"
	QueryTimeseriesPageViews     QueryID = "ts_page_views"
	QueryTimeseriesSubmissions   QueryID = "ts_submissions"
	QueryTimeseriesPipelineValue QueryID = "ts_pipeline_value"
	QueryTimeseriesFunnelViews   QueryID = "ts_funnel_views"
)

// QuerySpec describes how a query is parameterized.
// Lifetime queries (Dated == false) read views without a date column and
// ignore any range passed to them.
type QuerySpec struct {
	ID    QueryID
	Dated bool
}

// Catalog lists every query the engine may issue.
var Catalog = map[QueryID]QuerySpec{
	QueryEngagementSummary:       {ID: QueryEngagementSummary, Dated: true},
	QueryConversionSummary:       {ID: QueryConversionSummary, Dated: true},
	QueryFunnelFallback:          {ID: QueryFunnelFallback, Dated: true},
	QuerySearchSummary:           {ID: QuerySearchSummary},
	QueryPageJoin:                {ID: QueryPageJoin, Dated: true},
	QuerySourceRollup:            {ID: QuerySourceRollup, Dated: true},
	QueryFreshness:               {ID: QueryFreshness},
	QuerySEOQueries:              {ID: QuerySEOQueries},
	QueryDeviceBreakdown:         {ID: QueryDeviceBreakdown, Dated: true},
	QueryCountryBreakdown:        {ID: QueryCountryBreakdown, Dated: true},
	QueryCategoryBreakdown:       {ID: QueryCategoryBreakdown, Dated: true},
	QueryAnomalySessions:         {ID: QueryAnomalySessions, Dated: true},
	QueryAnomalySubmissions:      {ID: QueryAnomalySubmissions, Dated: true},
	QueryAnomalyPipelineValue:    {ID: QueryAnomalyPipelineValue, Dated: true},
	QueryTimeseriesSessions:      {ID: QueryTimeseriesSessions, Dated: true},
	QueryTimeseriesPageViews:     {ID: QueryTimeseriesPageViews, Dated: true},
	QueryTimeseriesSubmissions:   {ID: QueryTimeseriesSubmissions, Dated: true},
	QueryTimeseriesPipelineValue: {ID: QueryTimeseriesPipelineValue, Dated: true},
	QueryTimeseriesFunnelViews:   {ID: QueryTimeseriesFunnelViews, Dated: true},
}

// Lookup returns the spec registered for id.
func Lookup(id QueryID) (QuerySpec, bool) {
	spec, ok := Catalog[id]
	return spec, ok
}

// DateRange is the parameter set of a dated query, both bounds inclusive
// and formatted YYYY-MM-DD.
type DateRange struct {
	StartDate string
	EndDate   string
}

// Args returns the positional query arguments, start then end.
func (r DateRange) Args() []interface{} {
	return []interface{}{r.StartDate, r.EndDate}
}

// Row is a loosely-typed result row keyed by column name. Values are never
// trusted and must go through the numeric package before use.
type Row map[string]interface{}

// QueryExecutor runs catalogued read-only queries. Implementations must be
// safe for concurrent use and return an empty slice, not an error, when no
// rows match.
type QueryExecutor interface {
	Execute(ctx context.Context, id QueryID, params *DateRange) ([]Row, error)
}
