package period

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// GranularityDay is the only bucket size reports are produced at.
	GranularityDay = "day"

	// DateLayout is the strict wire format for explicit range bounds.
	DateLayout = "2006-01-02"

	// MaxRangeDays bounds the distance between start and end of an explicit range.
	MaxRangeDays = 3 * 365
)

// Supported presets.
const (
	PresetLast7d  = "last_7d"
	PresetLast30d = "last_30d"
	PresetLast90d = "last_90d"
	PresetMTD     = "mtd"
	PresetQTD     = "qtd"
	PresetYTD     = "ytd"

	// PresetCustom labels a period resolved from an explicit start/end.
	PresetCustom = "custom"
)

// ErrInvalidSelection marks caller input errors that should return HTTP 400.
var ErrInvalidSelection = errors.New("invalid time selection")

var (
	isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

	trailingPresetDays = map[string]int{
		PresetLast7d:  7,
		PresetLast30d: 30,
		PresetLast90d: 90,
	}

	legacyAliases = map[string]string{
		"7d":  PresetLast7d,
		"30d": PresetLast30d,
		"90d": PresetLast90d,
	}

	allowedPresets = []string{PresetLast7d, PresetLast30d, PresetLast90d, PresetMTD, PresetQTD, PresetYTD}
)

// Selection is the raw time-selection input of a report request.
// At most one of Preset, Start/End, or Legacy may be set; an empty Selection
// resolves to the default trailing 30 days.
type Selection struct {
	Preset string
	Start  string
	End    string
	Legacy string
}

// TimeWindow is an inclusive range of UTC calendar days. Start <= End always
// holds for windows returned by Resolve.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// StartDate returns Start formatted as YYYY-MM-DD.
func (w TimeWindow) StartDate() string { return w.Start.Format(DateLayout) }

// EndDate returns End formatted as YYYY-MM-DD.
func (w TimeWindow) EndDate() string { return w.End.Format(DateLayout) }

// Days returns the number of calendar days covered, both ends inclusive.
func (w TimeWindow) Days() int {
	return daysBetween(w.Start, w.End) + 1
}

// Contains reports whether day falls inside the window.
func (w TimeWindow) Contains(day time.Time) bool {
	d := truncateToDay(day)
	return !d.Before(w.Start) && !d.After(w.End)
}

func (w TimeWindow) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}{Start: w.StartDate(), End: w.EndDate()})
}

func (w *TimeWindow) UnmarshalJSON(data []byte) error {
	var raw struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	start, err := time.Parse(DateLayout, raw.Start)
	if err != nil {
		return fmt.Errorf("decode window start: %w", err)
	}
	end, err := time.Parse(DateLayout, raw.End)
	if err != nil {
		return fmt.Errorf("decode window end: %w", err)
	}
	w.Start, w.End = start, end
	return nil
}

// Period is a resolved current window plus its comparison window.
type Period struct {
	Current     TimeWindow
	Comparison  TimeWindow
	Granularity string
	Preset      string
}

// Resolve validates sel and produces the current window and its comparison
// window. now is reduced to its UTC calendar date.
func Resolve(sel Selection, now time.Time) (Period, error) {
	sel = sel.normalized()
	today := truncateToDay(now.UTC())

	hasRange := sel.Start != "" || sel.End != ""
	if sel.Preset != "" && hasRange {
		return Period{}, invalidSelectionf("preset and start/end are mutually exclusive; use one or the other")
	}
	if sel.Legacy != "" && (sel.Preset != "" || hasRange) {
		return Period{}, invalidSelectionf("period cannot be combined with preset or start/end; use one or the other")
	}

	var (
		window TimeWindow
		preset string
		err    error
	)
	switch {
	case hasRange:
		window, err = resolveRange(sel.Start, sel.End)
		preset = PresetCustom
	case sel.Preset != "":
		window, err = resolvePreset(sel.Preset, today)
		preset = sel.Preset
	case sel.Legacy != "":
		alias, ok := legacyAliases[sel.Legacy]
		if !ok {
			return Period{}, invalidSelectionf("invalid period %q (allowed: 7d, 30d, 90d)", sel.Legacy)
		}
		window, err = resolvePreset(alias, today)
		preset = alias
	default:
		window, err = resolvePreset(PresetLast30d, today)
		preset = PresetLast30d
	}
	if err != nil {
		return Period{}, err
	}

	return Period{
		Current:     window,
		Comparison:  ComparisonWindow(window),
		Granularity: GranularityDay,
		Preset:      preset,
	}, nil
}

// ComparisonWindow returns the window of identical length ending the day
// before w starts. The two windows never share a day.
func ComparisonWindow(w TimeWindow) TimeWindow {
	prevEnd := w.Start.AddDate(0, 0, -1)
	prevStart := prevEnd.AddDate(0, 0, -daysBetween(w.Start, w.End))
	return TimeWindow{Start: prevStart, End: prevEnd}
}

func resolvePreset(preset string, today time.Time) (TimeWindow, error) {
	if days, ok := trailingPresetDays[preset]; ok {
		return TimeWindow{Start: today.AddDate(0, 0, -(days - 1)), End: today}, nil
	}

	switch preset {
	case PresetMTD:
		return TimeWindow{Start: time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC), End: today}, nil
	case PresetQTD:
		quarterMonth := time.Month((int(today.Month())-1)/3*3 + 1)
		return TimeWindow{Start: time.Date(today.Year(), quarterMonth, 1, 0, 0, 0, 0, time.UTC), End: today}, nil
	case PresetYTD:
		return TimeWindow{Start: time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), End: today}, nil
	}

	return TimeWindow{}, invalidSelectionf("invalid preset %q (allowed: %s)", preset, strings.Join(allowedPresets, ", "))
}

func resolveRange(startRaw, endRaw string) (TimeWindow, error) {
	if startRaw == "" || endRaw == "" {
		return TimeWindow{}, invalidSelectionf("start and end are both required for a custom range")
	}

	start, err := parseDate("start", startRaw)
	if err != nil {
		return TimeWindow{}, err
	}
	end, err := parseDate("end", endRaw)
	if err != nil {
		return TimeWindow{}, err
	}

	if start.After(end) {
		return TimeWindow{}, invalidSelectionf("start date %s must be on or before end date %s", startRaw, endRaw)
	}
	if daysBetween(start, end) > MaxRangeDays {
		return TimeWindow{}, invalidSelectionf("date range exceeds maximum of %d days", MaxRangeDays)
	}

	return TimeWindow{Start: start, End: end}, nil
}

func parseDate(field, raw string) (time.Time, error) {
	if !isoDatePattern.MatchString(raw) {
		return time.Time{}, invalidSelectionf("invalid %s date %q (expected YYYY-MM-DD)", field, raw)
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, invalidSelectionf("invalid %s date %q (expected YYYY-MM-DD)", field, raw)
	}
	return t, nil
}

func (s Selection) normalized() Selection {
	return Selection{
		Preset: strings.ToLower(strings.TrimSpace(s.Preset)),
		Start:  strings.TrimSpace(s.Start),
		End:    strings.TrimSpace(s.End),
		Legacy: strings.ToLower(strings.TrimSpace(s.Legacy)),
	}
}

func daysBetween(start, end time.Time) int {
	return int(truncateToDay(end).Sub(truncateToDay(start)).Hours() / 24)
}

// truncateToDay truncates a timestamp to 00:00:00 UTC of its calendar day.
func truncateToDay(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func invalidSelectionf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidSelection, fmt.Sprintf(format, args...))
}
