// Package cycle projects future menstrual cycle phases from logged history.
//
// The engine is a pure computation: it reads cycle records and profile values
// and produces a month-by-month phase projection. It never writes to storage.
package cycle

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/AfyaLink/AfyaDial/internal/models"
)

// Source identifies where prediction parameters came from, in precedence order.
type Source string

const (
	// SourceHistory means parameters were derived from logged cycle records.
	SourceHistory Source = "history"
	// SourceProfile means parameters came from user-supplied cycle info.
	SourceProfile Source = "profile"
	// SourceDefault means hardcoded defaults were used.
	SourceDefault Source = "default"
)

const (
	// MinCompletedForStats is how many completed cycles are needed before
	// statistics outrank user-supplied values.
	MinCompletedForStats = 3
	// MaxRecordsForStats caps how many recent completed records feed the mean.
	MaxRecordsForStats = 6
	// MaxProjectedCycles caps the forward walk when collecting cycles for a month.
	MaxProjectedCycles = 12
	// lutealDays fixes ovulation at cycle end minus 14 days.
	lutealDays = 14
	// fertileLeadDays is how many days before ovulation the fertile window opens.
	fertileLeadDays = 5
)

// Params are the resolved prediction parameters for one user.
type Params struct {
	CycleLength  int
	PeriodLength int
	Source       Source
}

// Phase is one segment of a projected cycle.
type Phase struct {
	Name  string
	Start time.Time
	End   time.Time
}

// ProjectedCycle is one future cycle decomposed into phases, chronological order.
type ProjectedCycle struct {
	Start  time.Time
	Phases []Phase
}

// Projection is the result of projecting cycles into one calendar month.
type Projection struct {
	Params     Params
	MonthStart time.Time // first day of the target month
	MonthEnd   time.Time // first day of the following month (exclusive)
	Cycles     []ProjectedCycle
}

// MeanCycleLength returns the arithmetic mean cycle length over up to
// MaxRecordsForStats most recent records carrying a derived cycle length.
// ok is false when fewer than MinCompletedForStats such records exist.
func MeanCycleLength(records []models.CycleRecord) (float64, bool) {
	return meanOf(records, func(r models.CycleRecord) *int { return r.CycleLength })
}

// MeanPeriodLength returns the arithmetic mean period length over up to
// MaxRecordsForStats most recent records carrying one. A period length exists
// as soon as the end date is logged, one record ahead of the derived cycle
// length, so the most recent closed record counts here.
func MeanPeriodLength(records []models.CycleRecord) (float64, bool) {
	return meanOf(records, func(r models.CycleRecord) *int { return r.PeriodLength })
}

func meanOf(records []models.CycleRecord, field func(models.CycleRecord) *int) (float64, bool) {
	var sum, n int
	for _, r := range records {
		v := field(r)
		if v == nil {
			continue
		}
		sum += *v
		n++
		if n == MaxRecordsForStats {
			break
		}
	}
	if n < MinCompletedForStats {
		return 0, false
	}
	return float64(sum) / float64(n), true
}

// DeriveParams resolves prediction parameters with first-match-wins precedence:
// statistics from history, then user-supplied profile values, then defaults.
// records must be ordered most recent start first.
func DeriveParams(records []models.CycleRecord, user *models.User) Params {
	if meanCycle, ok := MeanCycleLength(records); ok {
		p := Params{
			CycleLength:  int(math.Round(meanCycle)),
			PeriodLength: models.DefaultPeriodLength,
			Source:       SourceHistory,
		}
		if meanPeriod, ok := MeanPeriodLength(records); ok {
			p.PeriodLength = int(math.Round(meanPeriod))
		} else if user != nil && user.PeriodLength != nil {
			p.PeriodLength = *user.PeriodLength
		}
		return p
	}
	if user != nil && user.HasProvidedCycleInfo && user.CycleLength != nil {
		p := Params{
			CycleLength:  *user.CycleLength,
			PeriodLength: models.DefaultPeriodLength,
			Source:       SourceProfile,
		}
		if user.PeriodLength != nil {
			p.PeriodLength = *user.PeriodLength
		}
		return p
	}
	return Params{
		CycleLength:  models.DefaultCycleLength,
		PeriodLength: models.DefaultPeriodLength,
		Source:       SourceDefault,
	}
}

// Project collects every predicted cycle overlapping the calendar month at
// monthOffset from today's month, decomposed into phases. records must be
// ordered most recent start first.
func Project(records []models.CycleRecord, user *models.User, monthOffset int, today time.Time) Projection {
	params := DeriveParams(records, user)
	today = models.DateOnly(today)

	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location()).AddDate(0, monthOffset, 0)
	monthEnd := monthStart.AddDate(0, 1, 0)

	// The walk starts at the last known start so the in-progress cycle is
	// collected when it overlaps the target month; with no history at all it
	// starts today.
	base := today
	if len(records) > 0 {
		base = models.DateOnly(records[0].StartDate)
	}

	proj := Projection{Params: params, MonthStart: monthStart, MonthEnd: monthEnd}
	for i := 0; i < MaxProjectedCycles; i++ {
		start := base.AddDate(0, 0, i*params.CycleLength)
		if !start.Before(monthEnd) {
			break
		}
		end := start.AddDate(0, 0, params.CycleLength-1)
		if end.Before(monthStart) {
			continue
		}
		proj.Cycles = append(proj.Cycles, decompose(start, params))
	}
	return proj
}

// decompose splits one cycle into its five phases in chronological order.
func decompose(start time.Time, params Params) ProjectedCycle {
	periodEnd := start.AddDate(0, 0, params.PeriodLength-1)
	ovulation := start.AddDate(0, 0, params.CycleLength-lutealDays)
	cycleEnd := start.AddDate(0, 0, params.CycleLength-1)

	c := ProjectedCycle{Start: start}
	c.Phases = append(c.Phases, Phase{Name: "Period", Start: start, End: periodEnd})

	follicularStart := periodEnd.AddDate(0, 0, 1)
	follicularEnd := ovulation.AddDate(0, 0, -1)
	if !follicularEnd.Before(follicularStart) {
		c.Phases = append(c.Phases, Phase{Name: "Follicular", Start: follicularStart, End: follicularEnd})
	}

	c.Phases = append(c.Phases,
		Phase{Name: "Fertile window", Start: ovulation.AddDate(0, 0, -fertileLeadDays), End: ovulation.AddDate(0, 0, 1)},
		Phase{Name: "Ovulation", Start: ovulation, End: ovulation},
		Phase{Name: "Luteal", Start: ovulation.AddDate(0, 0, 1), End: cycleEnd},
	)
	return c
}

// NextPredictedStart returns the predicted start of the next period: one mean
// cycle after the most recent logged start, or today when no history exists.
func NextPredictedStart(records []models.CycleRecord, user *models.User, today time.Time) time.Time {
	params := DeriveParams(records, user)
	if len(records) > 0 {
		return models.DateOnly(records[0].StartDate).AddDate(0, 0, params.CycleLength)
	}
	return models.DateOnly(today)
}

// PhaseOn names the phase a date falls in, relative to the most recent logged
// start. Dates beyond the current cycle are projected forward in whole cycles.
func PhaseOn(lastStart time.Time, params Params, date time.Time) string {
	lastStart = models.DateOnly(lastStart)
	date = models.DateOnly(date)
	day := models.DaysBetween(lastStart, date)
	if day < 0 {
		return ""
	}
	day %= params.CycleLength
	start := date.AddDate(0, 0, -day)
	for _, p := range decompose(start, params).Phases {
		if p.Name == "Ovulation" {
			continue
		}
		if !date.Before(p.Start) && !date.After(p.End) {
			if sameDay(date, start.AddDate(0, 0, params.CycleLength-lutealDays)) {
				return "Ovulation"
			}
			return p.Name
		}
	}
	return ""
}

func sameDay(a, b time.Time) bool {
	return a.Equal(b)
}

// RenderMonth formats a projection as a USSD display block. Phase dates
// falling outside the target month are still shown, marked with '*'.
func RenderMonth(p Projection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Predictions for %s\n", p.MonthStart.Format("Jan 2006"))
	if len(p.Cycles) == 0 {
		b.WriteString("No predicted cycles this month.\n")
		return b.String()
	}
	marked := false
	for _, c := range p.Cycles {
		fmt.Fprintf(&b, "Cycle from %s:\n", renderDay(c.Start, p, &marked))
		for _, ph := range c.Phases {
			if ph.Start.Equal(ph.End) {
				fmt.Fprintf(&b, "%s: %s\n", ph.Name, renderDay(ph.Start, p, &marked))
				continue
			}
			fmt.Fprintf(&b, "%s: %s-%s\n", ph.Name, renderDay(ph.Start, p, &marked), renderDay(ph.End, p, &marked))
		}
	}
	if marked {
		b.WriteString("*outside this month\n")
	}
	return b.String()
}

// renderDay formats a date, marking it when it lies outside the target month.
func renderDay(d time.Time, p Projection, marked *bool) string {
	s := d.Format("02 Jan")
	if d.Before(p.MonthStart) || !d.Before(p.MonthEnd) {
		*marked = true
		return s + "*"
	}
	return s
}
