package report

import (
	"sort"
	"strings"

	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/numeric"
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/storage"
	"github.com/nsd23387/nsd-platform-shell-sub005/internal/core/taxonomy"
)

// Source tags of the page_join read.
const (
	pageSourceEngagement = "engagement"
	pageSourceSearch     = "search"
	pageSourceFunnel     = "funnel"
	pageSourceConversion = "conversion"
)

type pageEngagement struct {
	sessions, pageViews, bounceWeighted float64
}

type pageSearch struct {
	clicks, impressions, positionWeighted float64
}

type pageConversion struct {
	submissions, pipeline float64
}

// buildPages merges the tagged page_join rows by URL. Each source is indexed
// separately and looked up per key, so a URL present in only one source still
// produces a record with the others zeroed. Rows without a URL or with an
// unknown tag are skipped.
func buildPages(rows []storage.Row) []PageRecord {
	engagement := make(map[string]pageEngagement)
	search := make(map[string]pageSearch)
	funnel := make(map[string]float64)
	conversion := make(map[string]pageConversion)
	keys := make(map[string]struct{})

	for _, row := range rows {
		url := label(row, "page_url", false)
		if url == "" {
			continue
		}

		switch strings.ToLower(label(row, "source", false)) {
		case pageSourceEngagement:
			e := engagement[url]
			e.sessions += count(row, "sessions")
			e.pageViews += count(row, "page_views")
			e.bounceWeighted += count(row, "bounce_weighted")
			engagement[url] = e
		case pageSourceSearch:
			s := search[url]
			s.clicks += count(row, "clicks")
			s.impressions += count(row, "impressions")
			s.positionWeighted += count(row, "position_weighted")
			search[url] = s
		case pageSourceFunnel:
			funnel[url] += count(row, "funnel_views")
		case pageSourceConversion:
			c := conversion[url]
			c.submissions += count(row, "submissions")
			c.pipeline += count(row, "pipeline_value_usd")
			conversion[url] = c
		default:
			continue
		}
		keys[url] = struct{}{}
	}

	pages := make([]PageRecord, 0, len(keys))
	for url := range keys {
		e := engagement[url]
		s := search[url]
		c := conversion[url]
		pages = append(pages, PageRecord{
			URL:              url,
			Sessions:         e.sessions,
			PageViews:        e.pageViews,
			BounceRate:       numeric.Clamp(numeric.WeightedAverage(e.bounceWeighted, e.sessions), 0, 1),
			OrganicClicks:    s.clicks,
			Impressions:      s.impressions,
			AvgPosition:      numeric.WeightedAverage(s.positionWeighted, s.impressions),
			FunnelViews:      funnel[url],
			Submissions:      c.submissions,
			PipelineValueUSD: c.pipeline,
			ConversionRate:   numeric.Clamp(numeric.SafeDivide(c.submissions, e.sessions), 0, 1),
			RevenuePerClick:  numeric.SafeDivide(c.pipeline, s.clicks),
		})
	}

	sort.Slice(pages, func(i, j int) bool {
		if pages[i].Sessions != pages[j].Sessions {
			return pages[i].Sessions > pages[j].Sessions
		}
		if pages[i].OrganicClicks != pages[j].OrganicClicks {
			return pages[i].OrganicClicks > pages[j].OrganicClicks
		}
		return pages[i].URL < pages[j].URL
	})
	return pages
}

// buildSources rolls source_rollup rows up by trimmed label and classifies
// each label. Blank labels are grouped under unsetLabel.
func buildSources(rows []storage.Row, classifier taxonomy.Classifier) []SourceRecord {
	index := make(map[string]int)
	sources := make([]SourceRecord, 0, len(rows))

	for _, row := range rows {
		name := label(row, "source_label", true)
		i, ok := index[name]
		if !ok {
			i = len(sources)
			index[name] = i
			sources = append(sources, SourceRecord{Source: name, Channel: classifier.Classify(name)})
		}
		sources[i].Sessions += count(row, "sessions")
		sources[i].PageViews += count(row, "page_views")
		sources[i].Submissions += count(row, "submissions")
		sources[i].PipelineValueUSD += count(row, "pipeline_value_usd")
	}

	for i := range sources {
		sources[i].RevenuePerSession = numeric.SafeDivide(sources[i].PipelineValueUSD, sources[i].Sessions)
	}

	sort.Slice(sources, func(i, j int) bool {
		if sources[i].Sessions != sources[j].Sessions {
			return sources[i].Sessions > sources[j].Sessions
		}
		return sources[i].Source < sources[j].Source
	})
	return sources
}

// buildChannels aggregates the full (uncapped) source list by channel. Only
// channels with at least one source appear.
func buildChannels(sources []SourceRecord) []ChannelRecord {
	byChannel := make(map[taxonomy.Channel]*ChannelRecord)
	for _, src := range sources {
		ch, ok := byChannel[src.Channel]
		if !ok {
			ch = &ChannelRecord{Channel: src.Channel}
			byChannel[src.Channel] = ch
		}
		ch.Sources++
		ch.Sessions += src.Sessions
		ch.PageViews += src.PageViews
		ch.Submissions += src.Submissions
		ch.PipelineValueUSD += src.PipelineValueUSD
	}

	channels := make([]ChannelRecord, 0, len(byChannel))
	for _, ch := range taxonomy.Channels {
		rec, ok := byChannel[ch]
		if !ok {
			continue
		}
		rec.RevenuePerSession = numeric.SafeDivide(rec.PipelineValueUSD, rec.Sessions)
		channels = append(channels, *rec)
	}

	sort.SliceStable(channels, func(i, j int) bool {
		return channels[i].Sessions > channels[j].Sessions
	})
	return channels
}

func buildSEOQueries(rows []storage.Row) []SEOQueryRecord {
	type acc struct {
		clicks, impressions, positionWeighted float64
	}
	byQuery := make(map[string]*acc)
	for _, row := range rows {
		q := label(row, "query", false)
		if q == "" {
			continue
		}
		a, ok := byQuery[q]
		if !ok {
			a = &acc{}
			byQuery[q] = a
		}
		a.clicks += count(row, "clicks")
		a.impressions += count(row, "impressions")
		a.positionWeighted += count(row, "position_weighted")
	}

	queries := make([]SEOQueryRecord, 0, len(byQuery))
	for q, a := range byQuery {
		queries = append(queries, SEOQueryRecord{
			Query:       q,
			Clicks:      a.clicks,
			Impressions: a.impressions,
			CTR:         numeric.Clamp(numeric.SafeDivide(a.clicks, a.impressions), 0, 1),
			AvgPosition: numeric.WeightedAverage(a.positionWeighted, a.impressions),
		})
	}

	sort.Slice(queries, func(i, j int) bool {
		if queries[i].Clicks != queries[j].Clicks {
			return queries[i].Clicks > queries[j].Clicks
		}
		if queries[i].Impressions != queries[j].Impressions {
			return queries[i].Impressions > queries[j].Impressions
		}
		return queries[i].Query < queries[j].Query
	})
	return queries
}

// buildBreakdown rolls a (key, sessions, page_views) read up by key. Share is
// each slice's fraction of total sessions across all slices, before capping.
func buildBreakdown(rows []storage.Row) []BreakdownRecord {
	index := make(map[string]int)
	out := make([]BreakdownRecord, 0, len(rows))
	var total float64

	for _, row := range rows {
		key := label(row, "key", true)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, BreakdownRecord{Key: key})
		}
		sessions := count(row, "sessions")
		out[i].Sessions += sessions
		out[i].PageViews += count(row, "page_views")
		total += sessions
	}

	for i := range out {
		out[i].Share = numeric.Clamp(numeric.SafeDivide(out[i].Sessions, total), 0, 1)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Sessions != out[j].Sessions {
			return out[i].Sessions > out[j].Sessions
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// limit truncates a sorted listing to n rows. n <= 0 means no limit.
func limit[T any](rows []T, n int) []T {
	if n <= 0 || len(rows) <= n {
		return rows
	}
	return rows[:n]
}
