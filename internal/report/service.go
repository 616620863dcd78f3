package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/anomaly"
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/kpi"
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/period"
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/storage"
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/taxonomy"
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/observability"
)

// Recorder receives one observation per BuildReport call.
type Recorder interface {
	RecordReport(ctx context.Context, status string, duration time.Duration)
	TrackInflight(ctx context.Context) func()
}

type noopRecorder struct{}

func (noopRecorder) RecordReport(context.Context, string, time.Duration) {}
func (noopRecorder) TrackInflight(context.Context) func() { return func() {} }

// Options tunes a Service. Zero values disable the corresponding limit.
type Options struct {
	QueryTimeout   time.Duration // per read
	RequestTimeout time.Duration // whole report, applied by the HTTP handler
	MaxListingRows int
	Recorder       Recorder
}

// Service assembles marketing reports from a storage.QueryExecutor.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	executor       storage.QueryExecutor
	classifier     taxonomy.Classifier
	recorder       Recorder
	queryTimeout   time.Duration
	requestTimeout time.Duration
	maxRows        int
	nowFn          func() time.Time
	idFn           func() string
}

// NewService creates a report service.
func NewService(executor storage.QueryExecutor, classifier taxonomy.Classifier, opts Options) *Service {
	recorder := opts.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if classifier == nil {
		classifier = taxonomy.NewStaticClassifier(nil)
	}
	return &Service{
		executor:       executor,
		classifier:     classifier,
		recorder:       recorder,
		queryTimeout:   opts.QueryTimeout,
		requestTimeout: opts.RequestTimeout,
		maxRows:        opts.MaxListingRows,
		nowFn:          utcNow,
		idFn:           uuid.NewString,
	}
}

func utcNow() time.Time { return time.Now().UTC() }

// rawResults has one slot per read. Each fan-out task writes only its own slot.
type rawResults struct {
	engagement, prevEngagement []storage.Row
	conversion, prevConversion []storage.Row
	fallback, prevFallback     []storage.Row
	search                     []storage.Row

	pages, sources, seo, freshness []storage.Row
	devices, countries, categories []storage.Row
	anomalySessions                []storage.Row
	anomalySubmissions             []storage.Row
	anomalyPipeline                []storage.Row

	tsSessions, tsPageViews, tsSubmissions, tsPipeline, tsFunnel []storage.Row
}

type read struct {
	name   string
	id     storage.QueryID
	params *storage.DateRange
	dest   *[]storage.Row
}

// BuildReport resolves sel, issues every read concurrently and assembles the
// report once all of them have succeeded. Validation errors wrap
// period.ErrInvalidSelection and are returned before any read is issued. Any
// read failure or cancellation of ctx fails the whole report.
func (s *Service) BuildReport(ctx context.Context, sel period.Selection, includeTimeseries bool) (rep *Report, err error) {
	started := s.nowFn()
	done := s.recorder.TrackInflight(ctx)
	defer func() {
		done()
		s.recorder.RecordReport(ctx, statusOf(err), s.nowFn().Sub(started))
	}()

	p, err := period.Resolve(sel, started)
	if err != nil {
		return nil, err
	}

	var raw rawResults
	if err = s.fetch(ctx, s.plan(p, includeTimeseries, &raw)); err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("[Report] Failed to build report",
				"start", p.Current.StartDate(),
				"end", p.Current.EndDate(),
				"error", err)
		}
		return nil, err
	}

	rep = s.assemble(p, &raw, includeTimeseries, started)

	slog.Info("[Report] Built report",
		"report_id", rep.Meta.ReportID,
		"preset", p.Preset,
		"start", rep.Period.Start,
		"end", rep.Period.End,
		"execution_ms", rep.Meta.ExecutionMs,
		"pages", len(rep.Pages),
		"sources", len(rep.Sources))
	return rep, nil
}

// plan lists the reads for p. Previous-period reads use the comparison window
// and do not depend on current-period results.
func (s *Service) plan(p period.Period, includeTimeseries bool, raw *rawResults) []read {
	cur := &storage.DateRange{StartDate: p.Current.StartDate(), EndDate: p.Current.EndDate()}
	prev := &storage.DateRange{StartDate: p.Comparison.StartDate(), EndDate: p.Comparison.EndDate()}

	reads := []read{
		{name: "engagement", id: storage.QueryEngagementSummary, params: cur, dest: &raw.engagement},
		{name: "conversion", id: storage.QueryConversionSummary, params: cur, dest: &raw.conversion},
		{name: "funnel fallback", id: storage.QueryFunnelFallback, params: cur, dest: &raw.fallback},
		{name: "previous engagement", id: storage.QueryEngagementSummary, params: prev, dest: &raw.prevEngagement},
		{name: "previous conversion", id: storage.QueryConversionSummary, params: prev, dest: &raw.prevConversion},
		{name: "previous funnel fallback", id: storage.QueryFunnelFallback, params: prev, dest: &raw.prevFallback},
		{name: "search", id: storage.QuerySearchSummary, dest: &raw.search},
		{name: "pages", id: storage.QueryPageJoin, params: cur, dest: &raw.pages},
		{name: "sources", id: storage.QuerySourceRollup, params: cur, dest: &raw.sources},
		{name: "freshness", id: storage.QueryFreshness, dest: &raw.freshness},
		{name: "seo queries", id: storage.QuerySEOQueries, dest: &raw.seo},
		{name: "devices", id: storage.QueryDeviceBreakdown, params: cur, dest: &raw.devices},
		{name: "countries", id: storage.QueryCountryBreakdown, params: cur, dest: &raw.countries},
		{name: "categories", id: storage.QueryCategoryBreakdown, params: cur, dest: &raw.categories},
		{name: "sessions anomaly", id: storage.QueryAnomalySessions, params: cur, dest: &raw.anomalySessions},
		{name: "submissions anomaly", id: storage.QueryAnomalySubmissions, params: cur, dest: &raw.anomalySubmissions},
		{name: "pipeline anomaly", id: storage.QueryAnomalyPipelineValue, params: cur, dest: &raw.anomalyPipeline},
	}

	if includeTimeseries {
		reads = append(reads,
			read{name: "sessions series", id: storage.QueryTimeseriesSessions, params: cur, dest: &raw.tsSessions},
			read{name: "page views series", id: storage.QueryTimeseriesPageViews, params: cur, dest: &raw.tsPageViews},
			read{name: "submissions series", id: storage.QueryTimeseriesSubmissions, params: cur, dest: &raw.tsSubmissions},
			read{name: "pipeline series", id: storage.QueryTimeseriesPipelineValue, params: cur, dest: &raw.tsPipeline},
			read{name: "funnel views series", id: storage.QueryTimeseriesFunnelViews, params: cur, dest: &raw.tsFunnel},
		)
	}
	return reads
}

// fetch runs reads concurrently and waits for all of them. The first failure
// cancels the remaining reads through the group context.
func (s *Service) fetch(ctx context.Context, reads []read) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, r := range reads {
		g.Go(func() error {
			rows, err := s.execute(gctx, r.id, r.params)
			if err != nil {
				return fmt.Errorf("read %s: %w", r.name, err)
			}
			*r.dest = rows
			return nil
		})
	}

	err := g.Wait()
	// A driver may report a cancelled statement with its own error, and
	// executors that ignore cancellation can still return rows after the
	// caller has gone away. The caller's context decides either way.
	if ctxErr := ctx.Err(); ctxErr != nil {
		if err != nil {
			return fmt.Errorf("%w: %w", ctxErr, err)
		}
		return ctxErr
	}
	return err
}

func (s *Service) execute(ctx context.Context, id storage.QueryID, params *storage.DateRange) ([]storage.Row, error) {
	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}
	return s.executor.Execute(ctx, id, params)
}

func (s *Service) assemble(p period.Period, raw *rawResults, includeTimeseries bool, started time.Time) *Report {
	// Search is a lifetime view, so both periods share it and its deltas are 0.
	search := decodeSearch(raw.search)

	curIn := kpi.Inputs{
		Engagement: decodeEngagement(raw.engagement),
		Conversion: decodeConversion(raw.conversion),
		Search:     search,
		Fallback:   decodeFallback(raw.fallback),
	}
	prevIn := kpi.Inputs{
		Engagement: decodeEngagement(raw.prevEngagement),
		Conversion: decodeConversion(raw.prevConversion),
		Search:     search,
		Fallback:   decodeFallback(raw.prevFallback),
	}
	current := kpi.Build(curIn)
	previous := kpi.Build(prevIn)

	caveats := []string{}
	if curIn.UsesFallback() {
		caveats = append(caveats, CaveatSessionsApproximated)
	}
	if prevIn.UsesFallback() {
		caveats = append(caveats, CaveatPreviousSessionsApproximated)
	}

	allSources := buildSources(raw.sources, s.classifier)
	channels := buildChannels(allSources)
	sources := limit(allSources, s.maxRows)
	pages := limit(buildPages(raw.pages), s.maxRows)
	seo := limit(buildSEOQueries(raw.seo), s.maxRows)
	breakdowns := Breakdowns{
		Devices:    limit(buildBreakdown(raw.devices), s.maxRows),
		Countries:  limit(buildBreakdown(raw.countries), s.maxRows),
		Categories: limit(buildBreakdown(raw.categories), s.maxRows),
	}

	rep := &Report{
		Period: PeriodInfo{
			Start:       p.Current.StartDate(),
			End:         p.Current.EndDate(),
			Granularity: p.Granularity,
			Preset:      p.Preset,
		},
		ComparisonPeriod: p.Comparison,
		KPIs:             current,
		PreviousKPIs:     previous,
		Comparisons:      kpi.Compare(current, previous),
		Pages:            pages,
		Sources:          sources,
		Channels:         channels,
		SEOQueries:       seo,
		Breakdowns:       breakdowns,
		Anomalies: anomaly.Flags{
			SessionsSpike:      anomaly.Detect(decodeSeries(raw.anomalySessions)),
			SubmissionsSpike:   anomaly.Detect(decodeSeries(raw.anomalySubmissions)),
			PipelineValueSpike: anomaly.Detect(decodeSeries(raw.anomalyPipeline)),
		},
		Meta: Metadata{
			ReportID:    s.idFn(),
			GeneratedAt: started,
			RowCounts: map[string]int{
				"pages":   len(pages),
				"sources": len(sources),
			},
			ListingCounts: map[string]int{
				"channels":    len(channels),
				"seo_queries": len(seo),
				"devices":     len(breakdowns.Devices),
				"countries":   len(breakdowns.Countries),
				"categories":  len(breakdowns.Categories),
			},
			DataFreshness: decodeFreshness(raw.freshness),
			Caveats:       caveats,
		},
	}

	if includeTimeseries {
		rep.Timeseries = buildTimeseries(p.Current, raw.tsSessions, raw.tsPageViews, raw.tsSubmissions, raw.tsPipeline, raw.tsFunnel)
	}

	rep.Meta.ExecutionMs = s.nowFn().Sub(started).Milliseconds()
	return rep
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return observability.StatusOK
	case errors.Is(err, period.ErrInvalidSelection):
		return observability.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return observability.StatusCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return observability.StatusTimeout
	default:
		return observability.StatusError
	}
}
