package report

import (
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/period"
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/storage"
)

// denseSeries emits one point per day of w, in order, taking values from
// daily and zero-filling days with no rows. Days outside w are ignored.
func denseSeries(w period.TimeWindow, daily map[string]float64) []Point {
	points := make([]Point, 0, w.Days())
	for day := w.Start; !day.After(w.End); day = day.AddDate(0, 0, 1) {
		key := day.Format(period.DateLayout)
		points = append(points, Point{Date: key, Value: daily[key]})
	}
	return points
}

func buildTimeseries(w period.TimeWindow, sessions, pageViews, submissions, pipeline, funnelViews []storage.Row) *Timeseries {
	return &Timeseries{
		Sessions:         denseSeries(w, decodeDaily(sessions)),
		PageViews:        denseSeries(w, decodeDaily(pageViews)),
		Submissions:      denseSeries(w, decodeDaily(submissions)),
		PipelineValueUSD: denseSeries(w, decodeDaily(pipeline)),
		FunnelViews:      denseSeries(w, decodeDaily(funnelViews)),
	}
}
