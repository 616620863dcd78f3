package report

import (
	"math"
	"strings"

	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/anomaly"
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/kpi"
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/numeric"
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/period"
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/storage"
)

// Decoders turn storage rows into typed aggregates. They are the only code in
// this package that reads storage.Row values; every value goes through the
// numeric package. Aggregate decoders sum across rows so an executor that
// returns per-partition rows still yields one total.

const unsetLabel = "(not set)"

// count reads a count-type column, flooring malformed and negative values at 0.
func count(row storage.Row, col string) float64 {
	return numeric.NonNegative(numeric.ToNumber(row[col]))
}

func decodeEngagement(rows []storage.Row) kpi.Engagement {
	var sessions, pageViews, bounceWeighted, timeWeighted float64
	for _, row := range rows {
		sessions += count(row, "sessions")
		pageViews += count(row, "page_views")
		bounceWeighted += count(row, "bounce_weighted")
		timeWeighted += count(row, "time_weighted")
	}
	return kpi.Engagement{
		Sessions:      sessions,
		PageViews:     pageViews,
		BounceRate:    numeric.WeightedAverage(bounceWeighted, sessions),
		AvgTimeOnPage: numeric.WeightedAverage(timeWeighted, pageViews),
	}
}

func decodeConversion(rows []storage.Row) kpi.Conversion {
	var c kpi.Conversion
	for _, row := range rows {
		c.TotalSubmissions += count(row, "total_submissions")
		c.TotalPipelineValueUSD += count(row, "total_pipeline_value_usd")
	}
	return c
}

func decodeSearch(rows []storage.Row) kpi.Search {
	var clicks, impressions, positionWeighted float64
	for _, row := range rows {
		clicks += count(row, "organic_clicks")
		impressions += count(row, "impressions")
		positionWeighted += count(row, "position_weighted")
	}
	return kpi.Search{
		OrganicClicks: clicks,
		Impressions:   impressions,
		AvgPosition:   numeric.WeightedAverage(positionWeighted, impressions),
	}
}

func decodeFallback(rows []storage.Row) *kpi.FunnelFallback {
	fb := &kpi.FunnelFallback{}
	for _, row := range rows {
		fb.PageViews += count(row, "page_views")
	}
	return fb
}

// decodeSeries reads the single pre-aggregated anomaly row. No rows means an
// empty window.
func decodeSeries(rows []storage.Row) anomaly.Series {
	if len(rows) == 0 {
		return anomaly.Series{}
	}
	row := rows[0]
	return anomaly.Series{
		SampleCount: sampleCount(row),
		Mean:        numeric.ToNumber(row["mean"]),
		Stddev:      numeric.ToNumber(row["stddev"]),
		Latest:      numeric.ToNumber(row["latest"]),
	}
}

// sampleCount caps the day count so the int conversion stays defined for
// absurd values.
func sampleCount(row storage.Row) int {
	return int(math.Min(count(row, "sample_count"), math.MaxInt32))
}

func decodeFreshness(rows []storage.Row) Freshness {
	if len(rows) == 0 {
		return Freshness{}
	}
	row := rows[0]
	return Freshness{
		Engagement:  dateString(row["engagement"]),
		Conversions: dateString(row["conversions"]),
		Search:      dateString(row["search"]),
		Funnel:      dateString(row["funnel"]),
	}
}

func dateString(v interface{}) *string {
	d := numeric.ToDate(v)
	if d == nil {
		return nil
	}
	s := d.Format(period.DateLayout)
	return &s
}

// decodeDaily sums a (day, value) series by calendar day. Rows with an
// unparseable day are dropped.
func decodeDaily(rows []storage.Row) map[string]float64 {
	out := make(map[string]float64, len(rows))
	for _, row := range rows {
		day := numeric.ToDate(row["day"])
		if day == nil {
			continue
		}
		out[day.Format(period.DateLayout)] += count(row, "value")
	}
	return out
}

// label reads a free-text key column. Blank values collapse to unsetLabel
// when fallback is true and to "" otherwise.
func label(row storage.Row, col string, fallback bool) string {
	s := strings.TrimSpace(numeric.ToString(row[col]))
	if s == "" && fallback {
		return unsetLabel
	}
	return s
}
