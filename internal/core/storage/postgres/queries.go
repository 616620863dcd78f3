package postgres

import "github.com/nsd23387/nsd-platform-shell-sub005/internal/core/storage"

// Read-only report queries. Dated queries take $1 (start) and $2 (end) as
// inclusive YYYY-MM-DD strings. Timestamp columns are bucketed by their UTC date.
// Weighted columns (bounce_weighted, time_weighted, position_weighted) are sums
// of value * weight; the caller divides by the weight after normalization.

const (
	queryEngagementSummary = `
		SELECT
			SUM(sessions)                            AS sessions,
			SUM(page_views)                          AS page_views,
			SUM(bounce_rate * sessions)              AS bounce_weighted,
			SUM(avg_time_on_page_seconds * page_views) AS time_weighted
		FROM engagement_daily
		WHERE day BETWEEN $1::date AND $2::date
	`

	queryConversionSummary = `
		SELECT
			COUNT(*)                AS total_submissions,
			SUM(pipeline_value_usd) AS total_pipeline_value_usd
		FROM form_submissions
		WHERE (submitted_at AT TIME ZONE 'UTC')::date BETWEEN $1::date AND $2::date
	`

	queryFunnelFallback = `
		SELECT COUNT(*) AS page_views
		FROM funnel_events
		WHERE event_name = 'page_view'
		  AND (occurred_at AT TIME ZONE 'UTC')::date BETWEEN $1::date AND $2::date
	`

	// querySearchSummary has no date filter: the search import is a lifetime
	// snapshot without a per-day column.
	querySearchSummary = `
		SELECT
			SUM(clicks)                      AS organic_clicks,
			SUM(impressions)                 AS impressions,
			SUM(avg_position * impressions)  AS position_weighted
		FROM search_performance
	`

	// queryPageJoin returns one row per (source, page_url). The caller merges
	// the sources by URL; any of them may be missing for a given page.
	queryPageJoin = `
		SELECT 'engagement' AS source, page_url,
			SUM(sessions) AS sessions, SUM(page_views) AS page_views,
			SUM(bounce_rate * sessions) AS bounce_weighted,
			NULL::bigint AS clicks, NULL::bigint AS impressions, NULL::numeric AS position_weighted,
			NULL::bigint AS funnel_views, NULL::bigint AS submissions, NULL::numeric AS pipeline_value_usd
		FROM engagement_daily
		WHERE day BETWEEN $1::date AND $2::date
		GROUP BY page_url
		UNION ALL
		SELECT 'search', page_url,
			NULL, NULL, NULL,
			SUM(clicks), SUM(impressions), SUM(avg_position * impressions),
			NULL, NULL, NULL
		FROM search_performance
		GROUP BY page_url
		UNION ALL
		SELECT 'funnel', page_url,
			NULL, NULL, NULL,
			NULL, NULL, NULL,
			COUNT(*), NULL, NULL
		FROM funnel_events
		WHERE event_name = 'page_view'
		  AND (occurred_at AT TIME ZONE 'UTC')::date BETWEEN $1::date AND $2::date
		GROUP BY page_url
		UNION ALL
		SELECT 'conversion', page_url,
			NULL, NULL, NULL,
			NULL, NULL, NULL,
			NULL, COUNT(*), SUM(pipeline_value_usd)
		FROM form_submissions
		WHERE (submitted_at AT TIME ZONE 'UTC')::date BETWEEN $1::date AND $2::date
		GROUP BY page_url
	`

	querySourceRollup = `
		WITH e AS (
			SELECT source_label, SUM(sessions) AS sessions, SUM(page_views) AS page_views
			FROM engagement_daily
			WHERE day BETWEEN $1::date AND $2::date
			GROUP BY source_label
		), c AS (
			SELECT source_label, COUNT(*) AS submissions, SUM(pipeline_value_usd) AS pipeline_value_usd
			FROM form_submissions
			WHERE (submitted_at AT TIME ZONE 'UTC')::date BETWEEN $1::date AND $2::date
			GROUP BY source_label
		)
		SELECT
			COALESCE(e.source_label, c.source_label) AS source_label,
			e.sessions, e.page_views, c.submissions, c.pipeline_value_usd
		FROM e
		FULL OUTER JOIN c ON c.source_label = e.source_label
	`

	queryFreshness = `
		SELECT
			(SELECT MAX(day) FROM engagement_daily)                                   AS engagement,
			(SELECT MAX((submitted_at AT TIME ZONE 'UTC')::date) FROM form_submissions) AS conversions,
			(SELECT MAX((imported_at AT TIME ZONE 'UTC')::date) FROM search_performance) AS search,
			(SELECT MAX((occurred_at AT TIME ZONE 'UTC')::date) FROM funnel_events)   AS funnel
	`

	querySEOQueries = `
		SELECT
			query,
			SUM(clicks)                     AS clicks,
			SUM(impressions)                AS impressions,
			SUM(avg_position * impressions) AS position_weighted
		FROM search_performance
		GROUP BY query
	`

	queryDeviceBreakdown = `
		SELECT device_category AS key, SUM(sessions) AS sessions, SUM(page_views) AS page_views
		FROM engagement_daily
		WHERE day BETWEEN $1::date AND $2::date
		GROUP BY device_category
	`

	queryCountryBreakdown = `
		SELECT country AS key, SUM(sessions) AS sessions, SUM(page_views) AS page_views
		FROM engagement_daily
		WHERE day BETWEEN $1::date AND $2::date
		GROUP BY country
	`

	queryCategoryBreakdown = `
		SELECT content_category AS key, SUM(sessions) AS sessions, SUM(page_views) AS page_views
		FROM engagement_daily
		WHERE day BETWEEN $1::date AND $2::date
		GROUP BY content_category
	`

	queryAnomalySessions = `
		WITH daily AS (
			SELECT day, SUM(sessions) AS v
			FROM engagement_daily
			WHERE day BETWEEN $1::date AND $2::date
			GROUP BY day
		)
		SELECT
			COUNT(*)        AS sample_count,
			AVG(v)          AS mean,
			STDDEV_POP(v)   AS stddev,
			(SELECT v FROM daily ORDER BY day DESC LIMIT 1) AS latest
		FROM daily
	`

	queryAnomalySubmissions = `
		WITH daily AS (
			SELECT (submitted_at AT TIME ZONE 'UTC')::date AS day, COUNT(*) AS v
			FROM form_submissions
			WHERE (submitted_at AT TIME ZONE 'UTC')::date BETWEEN $1::date AND $2::date
			GROUP BY 1
		)
		SELECT
			COUNT(*)        AS sample_count,
			AVG(v)          AS mean,
			STDDEV_POP(v)   AS stddev,
			(SELECT v FROM daily ORDER BY day DESC LIMIT 1) AS latest
		FROM daily
	`

	queryAnomalyPipelineValue = `
		WITH daily AS (
			SELECT (submitted_at AT TIME ZONE 'UTC')::date AS day, SUM(pipeline_value_usd) AS v
			FROM form_submissions
			WHERE (submitted_at AT TIME ZONE 'UTC')::date BETWEEN $1::date AND $2::date
			GROUP BY 1
		)
		SELECT
			COUNT(*)        AS sample_count,
			AVG(v)          AS mean,
			STDDEV_POP(v)   AS stddev,
			(SELECT v FROM daily ORDER BY day DESC LIMIT 1) AS latest
		FROM daily
	`

	queryTimeseriesSessions = `
		SELECT day, SUM(sessions) AS value
		FROM engagement_daily
		WHERE day BETWEEN $1::date AND $2::date
		GROUP BY day
		ORDER BY day
	`

	queryTimeseriesPageViews = `
		SELECT day, SUM(page_views) AS value
		FROM engagement_daily
		WHERE day BETWEEN $1::date AND $2::date
		GROUP BY day
		ORDER BY day
	`

	queryTimeseriesSubmissions = `
		SELECT (submitted_at AT TIME ZONE 'UTC')::date AS day, COUNT(*) AS value
		FROM form_submissions
		WHERE (submitted_at AT TIME ZONE 'UTC')::date BETWEEN $1::date AND $2::date
		GROUP BY 1
		ORDER BY 1
	`

	queryTimeseriesPipelineValue = `
		SELECT (submitted_at AT TIME ZONE 'UTC')::date AS day, SUM(pipeline_value_usd) AS value
		FROM form_submissions
		WHERE (submitted_at AT TIME ZONE 'UTC')::date BETWEEN $1::date AND $2::date
		GROUP BY 1
		ORDER BY 1
	`

	queryTimeseriesFunnelViews = `
		SELECT (occurred_at AT TIME ZONE 'UTC')::date AS day, COUNT(*) AS value
		FROM funnel_events
		WHERE event_name = 'page_view'
		  AND (occurred_at AT TIME ZONE 'UTC')::date BETWEEN $1::date AND $2::date
		GROUP BY 1
		ORDER BY 1
	`
)

// queryText maps every catalogued id to its SQL. NewAdapter fails if an id
// in storage.Catalog has no entry here.
var queryText = map[storage.QueryID]string{
	storage.QueryEngagementSummary:       queryEngagementSummary,
	storage.QueryConversionSummary:       queryConversionSummary,
	storage.QueryFunnelFallback:          queryFunnelFallback,
	storage.QuerySearchSummary:           querySearchSummary,
	storage.QueryPageJoin:                queryPageJoin,
	storage.QuerySourceRollup:            querySourceRollup,
	storage.QueryFreshness:               queryFreshness,
	storage.QuerySEOQueries:              querySEOQueries,
	storage.QueryDeviceBreakdown:         queryDeviceBreakdown,
	storage.QueryCountryBreakdown:        queryCountryBreakdown,
	storage.QueryCategoryBreakdown:       queryCategoryBreakdown,
	storage.QueryAnomalySessions:         queryAnomalySessions,
	storage.QueryAnomalySubmissions:      queryAnomalySubmissions,
	storage.QueryAnomalyPipelineValue:    queryAnomalyPipelineValue,
	storage.QueryTimeseriesSessions:      queryTimeseriesSessions,
	storage.QueryTimeseriesPageViews:     queryTimeseriesPageViews,
	storage.QueryTimeseriesSubmissions:   queryTimeseriesSubmissions,
	storage.QueryTimeseriesPipelineValue: queryTimeseriesPipelineValue,
	storage.QueryTimeseriesFunnelViews:   queryTimeseriesFunnelViews,
}

// requiredTables are checked at startup.
var requiredTables = []string{"engagement_daily", "form_submissions", "search_performance", "funnel_events"}

const queryTableExists = `
	SELECT EXISTS (
		SELECT FROM information_schema.tables
		WHERE table_name = $1
	)
`
