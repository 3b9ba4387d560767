package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Season is a six month contract window, e.g. "25FW" (Sep 2025 - Feb 2026)
// or "26SS" (Mar 2026 - Aug 2026).
type Season string

var (
	fallWinterMonths   = []int{9, 10, 11, 12, 1, 2}
	springSummerMonths = []int{3, 4, 5, 6, 7, 8}

	seasonPattern = regexp.MustCompile(`^(\d{2})(FW|SS)$`)
)

// ParseSeason normalises and validates a season code.
func ParseSeason(s string) (Season, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if !seasonPattern.MatchString(code) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeason, s)
	}
	return Season(code), nil
}

// SeasonFor returns the season containing the given calendar month.
func SeasonFor(year, month int) (Season, error) {
	if month < 1 || month > 12 {
		return "", fmt.Errorf("%w: month %d", ErrInvalidMonth, month)
	}
	yy := year % 100
	switch {
	case month >= 9:
		return Season(fmt.Sprintf("%02dFW", yy)), nil
	case month <= 2:
		return Season(fmt.Sprintf("%02dFW", (yy+99)%100)), nil
	default:
		return Season(fmt.Sprintf("%02dSS", yy)), nil
	}
}

// Months returns the month numbers of the season in order.
func (s Season) Months() []int {
	if strings.HasSuffix(string(s), "SS") {
		return append([]int(nil), springSummerMonths...)
	}
	return append([]int(nil), fallWinterMonths...)
}

// Contains reports whether month number n belongs to the season.
func (s Season) Contains(n int) bool {
	return s.index(n) >= 0
}

// Year returns the calendar year the season starts in.
func (s Season) Year() int {
	if len(s) < 2 {
		return 0
	}
	yy, _ := strconv.Atoi(string(s)[:2])
	return 2000 + yy
}

// CalendarYear returns the calendar year of month n within the season.
func (s Season) CalendarYear(n int) int {
	if strings.HasSuffix(string(s), "FW") && n <= 2 {
		return s.Year() + 1
	}
	return s.Year()
}

// MonthList returns every month of the season in order.
func (s Season) MonthList() []Month {
	nums := s.Months()
	out := make([]Month, len(nums))
	for i, n := range nums {
		out[i] = Month{Season: s, Number: n}
	}
	return out
}

func (s Season) index(n int) int {
	for i, m := range s.Months() {
		if m == n {
			return i
		}
	}
	return -1
}

func (s Season) String() string { return string(s) }
