package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Month is one assignment month within a season.
type Month struct {
	Season Season
	Number int
}

var (
	koreanMonthPattern = regexp.MustCompile(`^(?:(\d{2,4})\s*년\s*)?(\d{1,2})\s*월?$`)
	isoMonthPattern    = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)
)

// NewMonth validates that n belongs to season.
func NewMonth(season Season, n int) (Month, error) {
	if _, err := ParseSeason(string(season)); err != nil {
		return Month{}, err
	}
	if !season.Contains(n) {
		return Month{}, fmt.Errorf("%w: %d is not part of %s", ErrInvalidMonth, n, season)
	}
	return Month{Season: season, Number: n}, nil
}

// ParseMonth parses a month label. Accepted forms are "9월", "25년 9월", "9",
// "2025-09" and any of those prefixed by a season, as in "25FW/9월".
// When the label carries a year, the season is derived from it and must agree
// with the fallback season if one is given.
func ParseMonth(label string, fallback Season) (Month, error) {
	raw := strings.TrimSpace(label)
	if raw == "" {
		return Month{}, fmt.Errorf("%w: empty month", ErrInvalidMonth)
	}

	season := fallback
	if i := strings.Index(raw, "/"); i > 0 {
		s, err := ParseSeason(raw[:i])
		if err != nil {
			return Month{}, err
		}
		season = s
		raw = strings.TrimSpace(raw[i+1:])
	}

	var year, number int
	if m := isoMonthPattern.FindStringSubmatch(raw); m != nil {
		year, _ = strconv.Atoi(m[1])
		number, _ = strconv.Atoi(m[2])
	} else if m := koreanMonthPattern.FindStringSubmatch(raw); m != nil {
		if m[1] != "" {
			year, _ = strconv.Atoi(m[1])
			if year < 100 {
				year += 2000
			}
		}
		number, _ = strconv.Atoi(m[2])
	} else {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, label)
	}

	if year != 0 {
		derived, err := SeasonFor(year, number)
		if err != nil {
			return Month{}, err
		}
		if season != "" && season != derived {
			return Month{}, fmt.Errorf("%w: %q belongs to %s, not %s", ErrInvalidMonth, label, derived, season)
		}
		season = derived
	}
	if season == "" {
		return Month{}, fmt.Errorf("%w: %q has no season", ErrInvalidMonth, label)
	}
	return NewMonth(season, number)
}

// Label is the display label stored in the tables, e.g. "9월".
func (m Month) Label() string {
	return fmt.Sprintf("%d월", m.Number)
}

func (m Month) String() string {
	return string(m.Season) + "/" + m.Label()
}

// Index is the position of the month within its season, or -1.
func (m Month) Index() int {
	return m.Season.index(m.Number)
}

// Before reports whether m comes earlier than o in the same season.
func (m Month) Before(o Month) bool {
	return m.Season == o.Season && m.Index() < o.Index()
}

// IsZero reports whether the month is unset.
func (m Month) IsZero() bool {
	return m.Season == "" && m.Number == 0
}

// MarshalText renders the month as "25FW/9월"; the zero month is empty.
func (m Month) MarshalText() ([]byte, error) {
	if m.IsZero() {
		return []byte{}, nil
	}
	return []byte(m.String()), nil
}

// UnmarshalText accepts anything ParseMonth accepts that carries a season.
func (m *Month) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*m = Month{}
		return nil
	}
	parsed, err := ParseMonth(string(b), "")
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Start returns the first day of the month in the given location.
func (m Month) Start(loc *time.Location) time.Time {
	return time.Date(m.Season.CalendarYear(m.Number), time.Month(m.Number), 1, 0, 0, 0, 0, loc)
}

// MonthOf returns the season month containing t.
func MonthOf(t time.Time) Month {
	season, _ := SeasonFor(t.Year(), int(t.Month()))
	return Month{Season: season, Number: int(t.Month())}
}
