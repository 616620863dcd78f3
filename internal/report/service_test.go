package report

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/period"
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/storage"
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/taxonomy"
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/observability"
)

var (
	fixedNow = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

	febRange = period.Selection{Start: "2026-02-01", End: "2026-02-28"}
)

type executorCall struct {
	id     storage.QueryID
	params *storage.DateRange
}

// fakeExecutor serves canned rows per query id. Reads whose start date equals
// previousStart are served from previous instead of rows.
type fakeExecutor struct {
	mu    sync.Mutex
	calls []executorCall

	rows          map[storage.QueryID][]storage.Row
	previous      map[storage.QueryID][]storage.Row
	previousStart string
	errs          map[storage.QueryID]error
	block         map[storage.QueryID]bool
	ignoreCtx     bool
	// cancelErr replaces ctx.Err() for blocked reads, the way lib/pq reports
	// a statement cancelled on the server.
	cancelErr error
}

func (f *fakeExecutor) Execute(ctx context.Context, id storage.QueryID, params *storage.DateRange) ([]storage.Row, error) {
	f.mu.Lock()
	f.calls = append(f.calls, executorCall{id: id, params: params})
	f.mu.Unlock()

	if !f.ignoreCtx {
		if f.block[id] {
			<-ctx.Done()
			if f.cancelErr != nil {
				return nil, f.cancelErr
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	if params != nil && f.previousStart != "" && params.StartDate == f.previousStart {
		return f.previous[id], nil
	}
	return f.rows[id], nil
}

func (f *fakeExecutor) Calls() []executorCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]executorCall(nil), f.calls...)
}

type recordedReport struct {
	status string
}

type fakeRecorder struct {
	mu       sync.Mutex
	reports  []recordedReport
	inflight int
}

func (r *fakeRecorder) RecordReport(_ context.Context, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, recordedReport{status: status})
}

func (r *fakeRecorder) TrackInflight(context.Context) func() {
	r.mu.Lock()
	r.inflight++
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		r.inflight--
		r.mu.Unlock()
	}
}

func newTestService(exec storage.QueryExecutor, opts Options) *Service {
	s := NewService(exec, taxonomy.NewStaticClassifier(nil), opts)
	s.nowFn = func() time.Time { return fixedNow }
	s.idFn = func() string { return "report-1" }
	return s
}

func TestBuildReport_EmptyDataset(t *testing.T) {
	exec := &fakeExecutor{}
	s := newTestService(exec, Options{})

	rep, err := s.BuildReport(context.Background(), period.Selection{}, false)
	require.NoError(t, err)

	for _, f := range rep.KPIs.Fields() {
		require.Zero(t, f.Value, f.Name)
	}
	for name, c := range rep.Comparisons {
		require.Zero(t, c.DeltaPct, name)
	}
	require.Equal(t, "2026-02-09", rep.Period.Start)
	require.Equal(t, "2026-03-10", rep.Period.End)
	require.Equal(t, period.PresetLast30d, rep.Period.Preset)
	require.Equal(t, "day", rep.Period.Granularity)
	require.Nil(t, rep.Timeseries)
	require.Equal(t, "report-1", rep.Meta.ReportID)
	require.Equal(t, fixedNow, rep.Meta.GeneratedAt)
	require.Nil(t, rep.Meta.DataFreshness.Engagement)

	body, err := json.Marshal(rep)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	for _, key := range []string{"pages", "sources", "channels", "seo_queries"} {
		require.Equal(t, []interface{}{}, decoded[key], key)
	}
	breakdowns := decoded["breakdowns"].(map[string]interface{})
	require.Equal(t, []interface{}{}, breakdowns["devices"])
	require.NotContains(t, decoded, "timeseries")

	meta := decoded["meta"].(map[string]interface{})
	require.Equal(t, map[string]interface{}{"pages": float64(0), "sources": float64(0)}, meta["row_counts"])
	require.Equal(t, []interface{}{}, meta["caveats"])
	require.Equal(t, map[string]interface{}{
		"engagement":  nil,
		"conversions": nil,
		"search":      nil,
		"funnel":      nil,
	}, meta["data_freshness"])
}

func TestBuildReport_DerivedRatios(t *testing.T) {
	exec := &fakeExecutor{rows: map[storage.QueryID][]storage.Row{
		storage.QueryEngagementSummary: {{
			"sessions": int64(1200), "page_views": int64(3400),
			"bounce_weighted": 504.0, "time_weighted": 73.0 * 3400,
		}},
		storage.QueryConversionSummary: {{"total_submissions": int64(85), "total_pipeline_value_usd": "125000.00"}},
		storage.QuerySearchSummary:     {{"organic_clicks": int64(4500), "impressions": int64(90000), "position_weighted": 11.3 * 90000}},
	}}
	s := newTestService(exec, Options{})

	rep, err := s.BuildReport(context.Background(), febRange, false)
	require.NoError(t, err)

	k := rep.KPIs
	require.Equal(t, 1200.0, k.Sessions)
	require.InDelta(t, 0.42, k.BounceRate, 1e-9)
	require.InDelta(t, 73.0, k.AvgTimeOnPageSeconds, 1e-9)
	require.InDelta(t, 104.1667, k.RevenuePerSession, 1e-4)
	require.InDelta(t, 27.7778, k.RevenuePerClick, 1e-4)
	require.InDelta(t, 0.0708, k.SubmissionsPerSession, 1e-4)
	require.InDelta(t, 0.0189, k.SubmissionsPerClick, 1e-4)
	require.InDelta(t, 0.05, k.OrganicCTR, 1e-9)
	require.InDelta(t, 11.3, k.AvgPosition, 1e-9)
}

func TestBuildReport_PeriodParams(t *testing.T) {
	exec := &fakeExecutor{}
	s := newTestService(exec, Options{})

	rep, err := s.BuildReport(context.Background(), febRange, false)
	require.NoError(t, err)
	require.Equal(t, period.PresetCustom, rep.Period.Preset)
	require.Equal(t, "2026-01-04", rep.ComparisonPeriod.StartDate())
	require.Equal(t, "2026-01-31", rep.ComparisonPeriod.EndDate())

	calls := exec.Calls()
	require.Len(t, calls, 17)

	current := storage.DateRange{StartDate: "2026-02-01", EndDate: "2026-02-28"}
	previous := storage.DateRange{StartDate: "2026-01-04", EndDate: "2026-01-31"}

	seen := make(map[storage.QueryID][]storage.DateRange)
	for _, c := range calls {
		spec, ok := storage.Lookup(c.id)
		require.True(t, ok, c.id)
		if !spec.Dated {
			require.Nil(t, c.params, "%s is a lifetime query", c.id)
			seen[c.id] = append(seen[c.id], storage.DateRange{})
			continue
		}
		require.NotNil(t, c.params, c.id)
		seen[c.id] = append(seen[c.id], *c.params)
	}

	for _, id := range []storage.QueryID{storage.QueryEngagementSummary, storage.QueryConversionSummary, storage.QueryFunnelFallback} {
		require.ElementsMatch(t, []storage.DateRange{current, previous}, seen[id], id)
	}
	require.Equal(t, []storage.DateRange{current}, seen[storage.QueryPageJoin])
	require.Equal(t, []storage.DateRange{current}, seen[storage.QueryAnomalySessions])
	require.Len(t, seen[storage.QuerySearchSummary], 1)
	require.Equal(t, []interface{}{"2026-02-01", "2026-02-28"}, current.Args())
}

func TestBuildReport_InvalidSelectionIssuesNoReads(t *testing.T) {
	tests := []struct {
		name string
		sel  period.Selection
	}{
		{name: "inverted range", sel: period.Selection{Start: "2026-03-01", End: "2026-02-01"}},
		{name: "preset with range", sel: period.Selection{Preset: "mtd", Start: "2026-02-01", End: "2026-02-28"}},
		{name: "unknown preset", sel: period.Selection{Preset: "last_year"}},
		{name: "bad date", sel: period.Selection{Start: "02/01/2026", End: "2026-02-28"}},
		{name: "unknown legacy period", sel: period.Selection{Legacy: "14d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{}
			rec := &fakeRecorder{}
			s := newTestService(exec, Options{Recorder: rec})

			rep, err := s.BuildReport(context.Background(), tt.sel, true)
			require.Nil(t, rep)
			require.ErrorIs(t, err, period.ErrInvalidSelection)
			require.Empty(t, exec.Calls())
			require.Equal(t, []recordedReport{{status: observability.StatusBadRequest}}, rec.reports)
			require.Zero(t, rec.inflight)
		})
	}
}

func TestBuildReport_ReadFailureFailsReport(t *testing.T) {
	boom := errors.New("connection reset")
	exec := &fakeExecutor{errs: map[storage.QueryID]error{storage.QueryPageJoin: boom}}
	rec := &fakeRecorder{}
	s := newTestService(exec, Options{Recorder: rec})

	rep, err := s.BuildReport(context.Background(), febRange, false)
	require.Nil(t, rep)
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "pages")
	require.Equal(t, []recordedReport{{status: observability.StatusError}}, rec.reports)
}

func TestBuildReport_Cancellation(t *testing.T) {
	t.Run("cancelled before reads", func(t *testing.T) {
		rec := &fakeRecorder{}
		s := newTestService(&fakeExecutor{}, Options{Recorder: rec})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		rep, err := s.BuildReport(ctx, febRange, false)
		require.Nil(t, rep)
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, []recordedReport{{status: observability.StatusCanceled}}, rec.reports)
	})

	t.Run("executor ignores cancellation", func(t *testing.T) {
		s := newTestService(&fakeExecutor{ignoreCtx: true}, Options{})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		rep, err := s.BuildReport(ctx, febRange, false)
		require.Nil(t, rep)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestBuildReport_QueryTimeout(t *testing.T) {
	exec := &fakeExecutor{block: map[storage.QueryID]bool{storage.QuerySourceRollup: true}}
	rec := &fakeRecorder{}
	s := newTestService(exec, Options{QueryTimeout: 20 * time.Millisecond, Recorder: rec})

	rep, err := s.BuildReport(context.Background(), febRange, false)
	require.Nil(t, rep)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, []recordedReport{{status: observability.StatusTimeout}}, rec.reports)
}

func TestBuildReport_DeadlineWinsOverDriverError(t *testing.T) {
	exec := &fakeExecutor{
		block:     map[storage.QueryID]bool{storage.QueryPageJoin: true},
		cancelErr: errors.New("pq: canceling statement due to user request"),
	}
	rec := &fakeRecorder{}
	s := newTestService(exec, Options{Recorder: rec})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	rep, err := s.BuildReport(ctx, febRange, false)
	require.Nil(t, rep)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Contains(t, err.Error(), "canceling statement")
	require.Equal(t, []recordedReport{{status: observability.StatusTimeout}}, rec.reports)
}

// barrierExecutor holds every read until want reads are in flight at once.
type barrierExecutor struct {
	mu      sync.Mutex
	want    int
	arrived int
	release chan struct{}
}

func newBarrierExecutor(want int) *barrierExecutor {
	return &barrierExecutor{want: want, release: make(chan struct{})}
}

func (b *barrierExecutor) Execute(ctx context.Context, _ storage.QueryID, _ *storage.DateRange) ([]storage.Row, error) {
	b.mu.Lock()
	b.arrived++
	if b.arrived == b.want {
		close(b.release)
	}
	b.mu.Unlock()

	select {
	case <-b.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestBuildReport_ReadsRunConcurrently(t *testing.T) {
	tests := []struct {
		name       string
		timeseries bool
		want       int
	}{
		{name: "report reads", timeseries: false, want: 17},
		{name: "with timeseries", timeseries: true, want: 22},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := newBarrierExecutor(tt.want)
			s := newTestService(exec, Options{})

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			rep, err := s.BuildReport(ctx, febRange, tt.timeseries)
			require.NoError(t, err)
			require.NotNil(t, rep)
			require.Equal(t, tt.want, exec.arrived)
		})
	}
}

func TestBuildReport_Timeseries(t *testing.T) {
	exec := &fakeExecutor{rows: map[storage.QueryID][]storage.Row{
		storage.QueryTimeseriesSessions: {
			{"day": "2026-02-03", "value": int64(12)},
			{"day": time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), "value": int64(7)},
		},
		storage.QueryTimeseriesPipelineValue: {{"day": "2026-02-01", "value": "2500.50"}},
	}}
	s := newTestService(exec, Options{})

	rep, err := s.BuildReport(context.Background(), febRange, true)
	require.NoError(t, err)
	require.Len(t, exec.Calls(), 22)
	require.NotNil(t, rep.Timeseries)

	series := map[string][]Point{
		"sessions":     rep.Timeseries.Sessions,
		"page_views":   rep.Timeseries.PageViews,
		"submissions":  rep.Timeseries.Submissions,
		"pipeline":     rep.Timeseries.PipelineValueUSD,
		"funnel_views": rep.Timeseries.FunnelViews,
	}
	for name, points := range series {
		require.Len(t, points, 28, name)
		require.Equal(t, "2026-02-01", points[0].Date, name)
		require.Equal(t, "2026-02-28", points[27].Date, name)
	}

	require.Equal(t, 12.0, rep.Timeseries.Sessions[2].Value)
	require.Equal(t, 7.0, rep.Timeseries.Sessions[27].Value)
	require.Zero(t, rep.Timeseries.Sessions[0].Value)
	require.Equal(t, 2500.5, rep.Timeseries.PipelineValueUSD[0].Value)
}

func TestBuildReport_FunnelFallbackCaveat(t *testing.T) {
	exec := &fakeExecutor{
		rows: map[storage.QueryID][]storage.Row{
			storage.QueryFunnelFallback:    {{"page_views": int64(50)}},
			storage.QueryConversionSummary: {{"total_submissions": int64(5), "total_pipeline_value_usd": 1000.0}},
		},
		previous: map[storage.QueryID][]storage.Row{
			storage.QueryEngagementSummary: {{"sessions": int64(40), "page_views": int64(80)}},
			storage.QueryFunnelFallback:    {{"page_views": int64(60)}},
		},
		previousStart: "2026-01-04",
	}
	s := newTestService(exec, Options{})

	rep, err := s.BuildReport(context.Background(), febRange, false)
	require.NoError(t, err)
	require.Equal(t, 50.0, rep.KPIs.Sessions)
	require.Equal(t, 50.0, rep.KPIs.PageViews)
	require.InDelta(t, 20.0, rep.KPIs.RevenuePerSession, 1e-9)
	require.Equal(t, 40.0, rep.PreviousKPIs.Sessions)
	require.Equal(t, []string{CaveatSessionsApproximated}, rep.Meta.Caveats)
}

func TestBuildReport_LifetimeSearchSharedAcrossPeriods(t *testing.T) {
	exec := &fakeExecutor{
		rows: map[storage.QueryID][]storage.Row{
			storage.QuerySearchSummary:     {{"organic_clicks": int64(4500), "impressions": int64(90000), "position_weighted": 900000.0}},
			storage.QueryEngagementSummary: {{"sessions": int64(200), "page_views": int64(400)}},
		},
		previous: map[storage.QueryID][]storage.Row{
			storage.QueryEngagementSummary: {{"sessions": int64(100), "page_views": int64(300)}},
		},
		previousStart: "2026-01-04",
	}
	s := newTestService(exec, Options{})

	rep, err := s.BuildReport(context.Background(), febRange, false)
	require.NoError(t, err)

	for _, name := range []string{"organic_clicks", "impressions", "avg_position", "organic_ctr"} {
		c := rep.Comparisons[name]
		require.Equal(t, c.Current, c.Previous, name)
		require.Zero(t, c.DeltaPct, name)
	}
	require.Equal(t, 1.0, rep.Comparisons["sessions"].DeltaPct)
	require.Equal(t, 200.0, rep.Comparisons["sessions"].Current)
	require.Equal(t, 100.0, rep.Comparisons["sessions"].Previous)
}

func TestBuildReport_AnomalyFlags(t *testing.T) {
	exec := &fakeExecutor{rows: map[storage.QueryID][]storage.Row{
		storage.QueryAnomalySessions:      {{"sample_count": int64(28), "mean": 100.0, "stddev": 10.0, "latest": 150.0}},
		storage.QueryAnomalySubmissions:   {{"sample_count": int64(3), "mean": 1.0, "stddev": 0.5, "latest": 50.0}},
		storage.QueryAnomalyPipelineValue: {{"sample_count": int64(28), "mean": 100.0, "stddev": 0.0, "latest": 900.0}},
	}}
	s := newTestService(exec, Options{})

	rep, err := s.BuildReport(context.Background(), febRange, false)
	require.NoError(t, err)
	require.True(t, rep.Anomalies.SessionsSpike)
	require.False(t, rep.Anomalies.SubmissionsSpike)
	require.False(t, rep.Anomalies.PipelineValueSpike)
}

func TestBuildReport_ListingsAndMetadata(t *testing.T) {
	exec := &fakeExecutor{rows: map[storage.QueryID][]storage.Row{
		storage.QuerySourceRollup: {
			{"source_label": "google", "sessions": int64(300), "pipeline_value_usd": 600.0},
			{"source_label": "Bing", "sessions": int64(100)},
			{"source_label": "newsletter", "sessions": int64(50)},
		},
		storage.QueryPageJoin: {
			{"source": "engagement", "page_url": "/a", "sessions": int64(10)},
			{"source": "search", "page_url": "/b", "clicks": int64(4)},
			{"source": "funnel", "page_url": "/c", "funnel_views": int64(2)},
		},
		storage.QueryDeviceBreakdown: {
			{"key": "desktop", "sessions": int64(75)},
			{"key": "mobile", "sessions": int64(25)},
		},
		storage.QueryFreshness: {{"engagement": "2026-03-09", "search": time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}},
	}}
	rec := &fakeRecorder{}
	s := newTestService(exec, Options{MaxListingRows: 2, Recorder: rec})

	rep, err := s.BuildReport(context.Background(), febRange, false)
	require.NoError(t, err)

	require.Len(t, rep.Sources, 2)
	require.Equal(t, "google", rep.Sources[0].Source)
	require.Equal(t, taxonomy.ChannelOrganic, rep.Sources[0].Channel)
	require.InDelta(t, 2.0, rep.Sources[0].RevenuePerSession, 1e-9)

	// Channels come from every source, not the capped listing.
	require.Len(t, rep.Channels, 2)
	require.Equal(t, taxonomy.ChannelOrganic, rep.Channels[0].Channel)
	require.Equal(t, 2, rep.Channels[0].Sources)
	require.Equal(t, 400.0, rep.Channels[0].Sessions)
	require.Equal(t, taxonomy.ChannelEmail, rep.Channels[1].Channel)

	require.Len(t, rep.Pages, 2)
	require.Equal(t, "/a", rep.Pages[0].URL)
	require.Equal(t, "/b", rep.Pages[1].URL)

	require.Equal(t, 0.75, rep.Breakdowns.Devices[0].Share)

	require.Equal(t, map[string]int{"pages": 2, "sources": 2}, rep.Meta.RowCounts)
	require.Equal(t, map[string]int{
		"channels":    2,
		"seo_queries": 0,
		"devices":     2,
		"countries":   0,
		"categories":  0,
	}, rep.Meta.ListingCounts)

	require.NotNil(t, rep.Meta.DataFreshness.Engagement)
	require.Equal(t, "2026-03-09", *rep.Meta.DataFreshness.Engagement)
	require.Equal(t, "2026-03-01", *rep.Meta.DataFreshness.Search)
	require.Nil(t, rep.Meta.DataFreshness.Conversions)

	require.Equal(t, []recordedReport{{status: observability.StatusOK}}, rec.reports)
	require.Zero(t, rec.inflight)
}

func TestBuildReport_Concurrent(t *testing.T) {
	exec := &fakeExecutor{rows: map[storage.QueryID][]storage.Row{
		storage.QueryEngagementSummary: {{"sessions": int64(10)}},
	}}
	s := newTestService(exec, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rep, err := s.BuildReport(context.Background(), febRange, true)
			if assert.NoError(t, err) {
				assert.Equal(t, 10.0, rep.KPIs.Sessions)
			}
		}()
	}
	wg.Wait()
	require.Len(t, exec.Calls(), 8*22)
}
