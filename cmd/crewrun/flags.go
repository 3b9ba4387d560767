package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/sawpanic/crewrun/internal/domain"
)

// monthFlag holds a month label. The season is resolved once config is
// loaded, so "9월" means month 9 of the default season.
type monthFlag struct {
	raw string
}

var _ pflag.Value = (*monthFlag)(nil)

func (m *monthFlag) String() string { return m.raw }

func (m *monthFlag) Type() string { return "month" }

func (m *monthFlag) Set(s string) error {
	s = strings.TrimSpace(s)
	// validate the shape now; "5월" in a fall season fails later in Resolve
	if _, err := domain.ParseMonth(s, "25FW"); err != nil {
		if _, err2 := domain.ParseMonth(s, "26SS"); err2 != nil {
			return err
		}
	}
	m.raw = s
	return nil
}

// IsSet reports whether the flag was given.
func (m *monthFlag) IsSet() bool { return m.raw != "" }

// Resolve returns the month in season.
func (m *monthFlag) Resolve(season domain.Season) (domain.Month, error) {
	return domain.ParseMonth(m.raw, season)
}

// quantityFlag collects repeated BRAND=N values, e.g. --qty MLB=3 --qty DX=2.
type quantityFlag struct {
	values map[string]int
}

var _ pflag.Value = (*quantityFlag)(nil)

func (q *quantityFlag) String() string {
	if len(q.values) == 0 {
		return ""
	}
	names := make([]string, 0, len(q.values))
	for name := range q.values {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + strconv.Itoa(q.values[name])
	}
	return strings.Join(parts, ",")
}

func (q *quantityFlag) Type() string { return "brand=qty" }

func (q *quantityFlag) Set(s string) error {
	if q.values == nil {
		q.values = make(map[string]int)
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, n, ok := strings.Cut(part, "=")
		if !ok {
			return fmt.Errorf("want BRAND=N, got %q", part)
		}
		qty, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil || qty < 0 {
			return fmt.Errorf("quantity for %s must be a non-negative integer, got %q", name, n)
		}
		q.values[strings.ToUpper(strings.TrimSpace(name))] += qty
	}
	return nil
}

// keyArgs parses "ID:BRAND:MONTH" arguments, e.g. "a1:MLB:9월".
func keyArgs(a *app, args []string) ([]domain.Key, error) {
	keys := make([]domain.Key, 0, len(args))
	for _, arg := range args {
		parts := strings.SplitN(arg, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("want ID:BRAND:MONTH, got %q", arg)
		}
		key, err := a.svc.ParseKey(parts[0], parts[1], parts[2])
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
