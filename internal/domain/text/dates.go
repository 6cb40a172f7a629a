package text

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DatePrecision describes how much of a calendar date a title pinned down.
type DatePrecision string

const (
	PrecisionDay     DatePrecision = "day"
	PrecisionMonth   DatePrecision = "month"
	PrecisionQuarter DatePrecision = "quarter"
	PrecisionYear    DatePrecision = "year"
)

// DateRef is one date mention extracted from a title. Month and Day are zero
// when the precision does not reach them; Quarter is 1-4 only for quarter
// precision.
type DateRef struct {
	Year      int           `json:"year"`
	Month     int           `json:"month,omitempty"`
	Day       int           `json:"day,omitempty"`
	Quarter   int           `json:"quarter,omitempty"`
	Precision DatePrecision `json:"precision"`
	Raw       string        `json:"raw"`
}

// Key returns the normalized settle key: YYYY-MM-DD, YYYY-MM, YYYY-Qn or YYYY.
func (d DateRef) Key() string {
	switch d.Precision {
	case PrecisionDay:
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
	case PrecisionMonth:
		return fmt.Sprintf("%04d-%02d", d.Year, d.Month)
	case PrecisionQuarter:
		return fmt.Sprintf("%04d-Q%d", d.Year, d.Quarter)
	default:
		return fmt.Sprintf("%04d", d.Year)
	}
}

// Time returns the reference as a UTC time at the start of its period.
func (d DateRef) Time() time.Time {
	switch d.Precision {
	case PrecisionDay:
		return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
	case PrecisionMonth:
		return time.Date(d.Year, time.Month(d.Month), 1, 0, 0, 0, 0, time.UTC)
	case PrecisionQuarter:
		return time.Date(d.Year, time.Month((d.Quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(d.Year, 1, 1, 0, 0, 0, 0, time.UTC)
	}
}

var monthNames = map[string]int{
	"january": 1, "jan": 1,
	"february": 2, "feb": 2,
	"march": 3, "mar": 3,
	"april": 4, "apr": 4,
	"may": 5,
	"june": 6, "jun": 6,
	"july": 7, "jul": 7,
	"august": 8, "aug": 8,
	"september": 9, "sep": 9, "sept": 9,
	"october": 10, "oct": 10,
	"november": 11, "nov": 11,
	"december": 12, "dec": 12,
}

var (
	// "Jan 21, 2026", "January 21 2026", "jan 21st 2026"
	reMonthDayYear = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,)?\s+(\d{4})\b`)
	// "21 Jan 2026"
	reDayMonthYear = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+(\d{4})\b`)
	// ISO "2026-01-21"
	reISODate = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	// "March 2026" (no day)
	reMonthYear = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+(\d{4})\b`)
	// "Q1 2026", "2026 Q3"
	reQuarterYear = regexp.MustCompile(`(?i)\bq([1-4])\s*(\d{4})\b`)
	reYearQuarter = regexp.MustCompile(`(?i)\b(\d{4})\s*q([1-4])\b`)
	// bare year
	reYear = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
)

// ExtractDates pulls every date mention from a title, most precise first.
// Spans consumed by a more precise pattern are not re-reported at a coarser
// precision (so "Jan 21, 2026" yields one day ref, not a month and a year).
func ExtractDates(title string) []DateRef {
	var refs []DateRef
	consumed := make([]bool, len(title))

	take := func(lo, hi int) bool {
		for i := lo; i < hi && i < len(consumed); i++ {
			if consumed[i] {
				return false
			}
		}
		for i := lo; i < hi && i < len(consumed); i++ {
			consumed[i] = true
		}
		return true
	}

	for _, m := range reMonthDayYear.FindAllStringSubmatchIndex(title, -1) {
		raw := title[m[0]:m[1]]
		month := monthNames[strings.ToLower(strings.TrimSuffix(title[m[2]:m[3]], "."))]
		day, _ := strconv.Atoi(title[m[4]:m[5]])
		year, _ := strconv.Atoi(title[m[6]:m[7]])
		if month > 0 && validDay(day) && take(m[0], m[1]) {
			refs = append(refs, DateRef{Year: year, Month: month, Day: day, Precision: PrecisionDay, Raw: raw})
		}
	}
	for _, m := range reDayMonthYear.FindAllStringSubmatchIndex(title, -1) {
		raw := title[m[0]:m[1]]
		day, _ := strconv.Atoi(title[m[2]:m[3]])
		month := monthNames[strings.ToLower(strings.TrimSuffix(title[m[4]:m[5]], "."))]
		year, _ := strconv.Atoi(title[m[6]:m[7]])
		if month > 0 && validDay(day) && take(m[0], m[1]) {
			refs = append(refs, DateRef{Year: year, Month: month, Day: day, Precision: PrecisionDay, Raw: raw})
		}
	}
	for _, m := range reISODate.FindAllStringSubmatchIndex(title, -1) {
		raw := title[m[0]:m[1]]
		year, _ := strconv.Atoi(title[m[2]:m[3]])
		month, _ := strconv.Atoi(title[m[4]:m[5]])
		day, _ := strconv.Atoi(title[m[6]:m[7]])
		if month >= 1 && month <= 12 && validDay(day) && take(m[0], m[1]) {
			refs = append(refs, DateRef{Year: year, Month: month, Day: day, Precision: PrecisionDay, Raw: raw})
		}
	}
	for _, m := range reQuarterYear.FindAllStringSubmatchIndex(title, -1) {
		raw := title[m[0]:m[1]]
		q, _ := strconv.Atoi(title[m[2]:m[3]])
		year, _ := strconv.Atoi(title[m[4]:m[5]])
		if take(m[0], m[1]) {
			refs = append(refs, DateRef{Year: year, Quarter: q, Precision: PrecisionQuarter, Raw: raw})
		}
	}
	for _, m := range reYearQuarter.FindAllStringSubmatchIndex(title, -1) {
		raw := title[m[0]:m[1]]
		year, _ := strconv.Atoi(title[m[2]:m[3]])
		q, _ := strconv.Atoi(title[m[4]:m[5]])
		if take(m[0], m[1]) {
			refs = append(refs, DateRef{Year: year, Quarter: q, Precision: PrecisionQuarter, Raw: raw})
		}
	}
	for _, m := range reMonthYear.FindAllStringSubmatchIndex(title, -1) {
		raw := title[m[0]:m[1]]
		month := monthNames[strings.ToLower(strings.TrimSuffix(title[m[2]:m[3]], "."))]
		year, _ := strconv.Atoi(title[m[4]:m[5]])
		if month > 0 && take(m[0], m[1]) {
			refs = append(refs, DateRef{Year: year, Month: month, Precision: PrecisionMonth, Raw: raw})
		}
	}
	for _, m := range reYear.FindAllStringSubmatchIndex(title, -1) {
		raw := title[m[0]:m[1]]
		year, _ := strconv.Atoi(raw)
		if take(m[0], m[1]) {
			refs = append(refs, DateRef{Year: year, Precision: PrecisionYear, Raw: raw})
		}
	}
	return refs
}

// BestDate returns the most precise date mention, preferring day over month
// over quarter over year, earliest mention winning ties.
func BestDate(refs []DateRef) (DateRef, bool) {
	order := map[DatePrecision]int{PrecisionDay: 0, PrecisionMonth: 1, PrecisionQuarter: 2, PrecisionYear: 3}
	best := -1
	for i, r := range refs {
		if best == -1 || order[r.Precision] < order[refs[best].Precision] {
			best = i
		}
	}
	if best == -1 {
		return DateRef{}, false
	}
	return refs[best], true
}

func validDay(d int) bool { return d >= 1 && d <= 31 }
