package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/store"
	"github.com/sawpanic/crewrun/internal/tabular"
)

// Mode selects how an upload meets the existing execution table.
type Mode string

const (
	// ModeMerge upserts uploaded rows by key and keeps the rest.
	ModeMerge Mode = "merge"
	// ModeReplace makes the upload the whole execution table.
	ModeReplace Mode = "replace"
)

// ParseMode accepts "merge" (or "update") and "replace".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "merge", "update":
		return ModeMerge, nil
	case "replace":
		return ModeReplace, nil
	}
	return "", fmt.Errorf("unknown upload mode %q (want merge or replace)", s)
}

// Record is one uploaded execution row. Nil fields were not supplied.
type Record struct {
	Row    int
	Key    domain.Key
	Name   string
	Count  *int
	Status *domain.Status
	URL    *string
}

// RecordError ties an error to an uploaded row.
type RecordError struct {
	Row int        `json:"row"`
	Key domain.Key `json:"key"`
	Err error      `json:"-"`
}

func (e RecordError) Error() string {
	if e.Key.InfluencerID == "" {
		return fmt.Sprintf("row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("row %d (%s): %v", e.Row, e.Key, e.Err)
}

func (e RecordError) Unwrap() error { return e.Err }

// MarshalText lets reports carry the message in JSON.
func (e RecordError) MarshalText() ([]byte, error) { return []byte(e.Error()), nil }

// Report summarises an upload.
type Report struct {
	Mode       Mode          `json:"mode"`
	Applied    bool          `json:"applied"`
	Inserted   int           `json:"inserted"`
	Updated    int           `json:"updated"`
	Unchanged  int           `json:"unchanged"`
	Removed    int           `json:"removed"`
	Duplicates int           `json:"duplicates"`
	Errors     []RecordError `json:"errors,omitempty"`
}

// Changed reports whether the upload modified the table.
func (r Report) Changed() bool {
	return r.Inserted+r.Updated+r.Removed > 0
}

// Err joins the record errors, or returns nil.
func (r Report) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return fmt.Errorf("upload rejected, %d invalid rows: %w", len(r.Errors), errors.Join(errs...))
}

func (rec Record) count() (int, error) {
	n := -1
	if rec.Count != nil {
		if *rec.Count != 0 && *rec.Count != 1 {
			return 0, fmt.Errorf("%w: got %d", domain.ErrInvalidExecutionCount, *rec.Count)
		}
		n = *rec.Count
	}
	if rec.Status != nil {
		s := 0
		if *rec.Status == domain.StatusExecuted {
			s = 1
		}
		if n >= 0 && n != s {
			return 0, fmt.Errorf("%w: status %s conflicts with count %d", domain.ErrInvalidExecutionCount, *rec.Status, n)
		}
		n = s
	}
	return n, nil
}

// Apply validates every record and, only when all are valid, merges them into
// the execution table. Records must match an assignment. The last record for
// a key wins.
func (r *Reconciler) Apply(snap *store.Snapshot, records []Record, mode Mode) (Report, error) {
	rep := Report{Mode: mode}

	type change struct {
		rec   Record
		count int
	}
	var order []domain.Key
	latest := make(map[domain.Key]change)
	for _, rec := range records {
		n, err := rec.count()
		if err == nil && rec.URL != nil {
			err = ValidateURL(strings.TrimSpace(*rec.URL))
		}
		if err == nil && snap.FindAssignment(rec.Key) < 0 {
			err = fmt.Errorf("%w: %s", domain.ErrAssignmentNotFound, rec.Key)
		}
		if err != nil {
			rep.Errors = append(rep.Errors, RecordError{Row: rec.Row, Key: rec.Key, Err: err})
			continue
		}
		if _, dup := latest[rec.Key]; dup {
			rep.Duplicates++
		} else {
			order = append(order, rec.Key)
		}
		latest[rec.Key] = change{rec: rec, count: n}
	}
	if len(rep.Errors) > 0 {
		return rep, rep.Err()
	}

	now := r.Now()
	existing := snap.ExecutionIndex()
	merged := func(k domain.Key, base domain.Execution) domain.Execution {
		c := latest[k]
		out := base
		out.Key = k
		if c.count >= 0 {
			out.Count = c.count
		}
		if c.rec.URL != nil {
			out.URL = strings.TrimSpace(*c.rec.URL)
		}
		if c.rec.Name != "" {
			out.Name = c.rec.Name
		}
		if out.Name == "" {
			out.Name = snap.History[snap.FindAssignment(k)].Name
		}
		return out
	}

	var next []domain.Execution
	if mode == ModeMerge {
		next = append(next, snap.Executions...)
	}
	pos := make(map[domain.Key]int, len(next))
	for i, e := range next {
		pos[e.Key] = i
	}

	for _, k := range order {
		old, had := existing[k]
		row := merged(k, old)
		keep := row.Count > 0 || row.URL != ""
		sameAsOld := had && row.Count == old.Count && row.URL == old.URL && row.Name == old.Name
		switch {
		case !keep && !had:
			rep.Unchanged++
			continue
		case !keep:
			rep.Removed++
		case sameAsOld:
			rep.Unchanged++
		case had:
			rep.Updated++
			row.UpdatedAt = now
		default:
			rep.Inserted++
			row.UpdatedAt = now
		}
		if i, ok := pos[k]; ok {
			next[i] = row
		} else {
			pos[k] = len(next)
			next = append(next, row)
		}
	}

	if mode == ModeReplace {
		for _, e := range snap.Executions {
			if _, ok := latest[e.Key]; !ok {
				rep.Removed++
			}
		}
	}

	final := next[:0]
	for _, e := range next {
		if e.Count > 0 || e.URL != "" {
			final = append(final, e)
		}
	}
	snap.Executions = final
	rep.Applied = true
	return rep, nil
}

// ParseRecords reads an uploaded sheet. It needs id, brand and month columns
// and at least one of executed, status or url. Blank cells leave the field
// unset. Row errors are returned alongside the parsed records.
func ParseRecords(tbl *tabular.Table, brands []domain.Brand, season domain.Season) ([]Record, []RecordError, error) {
	if missing := tbl.Missing(tabular.ColID, tabular.ColBrand, tabular.ColMonth); len(missing) > 0 {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrMissingColumns, strings.Join(missing, ", "))
	}
	if !tbl.Has(tabular.ColExecuted) && !tbl.Has(tabular.ColStatus) && !tbl.Has(tabular.ColURL) {
		return nil, nil, fmt.Errorf("%w: one of executed, status, url", domain.ErrMissingColumns)
	}

	var recs []Record
	var errs []RecordError
	for i := 0; i < tbl.Len(); i++ {
		row := i + 2
		rec, err := parseRecord(tbl, i, brands, season)
		rec.Row = row
		if err != nil {
			errs = append(errs, RecordError{Row: row, Key: rec.Key, Err: err})
			continue
		}
		recs = append(recs, rec)
	}
	return recs, errs, nil
}

func parseRecord(tbl *tabular.Table, i int, brands []domain.Brand, season domain.Season) (Record, error) {
	var rec Record
	rowSeason := season
	if s := tbl.Value(i, tabular.ColSeason); s != "" {
		parsed, err := domain.ParseSeason(s)
		if err != nil {
			return rec, err
		}
		rowSeason = parsed
	}
	month, err := domain.ParseMonth(tbl.Value(i, tabular.ColMonth), rowSeason)
	if err != nil {
		return rec, err
	}
	brand, err := domain.ParseBrand(tbl.Value(i, tabular.ColBrand), brands)
	if err != nil {
		return rec, err
	}
	id := tbl.Value(i, tabular.ColID)
	if id == "" {
		return rec, fmt.Errorf("%w: empty id", domain.ErrUnknownInfluencer)
	}
	rec.Key = domain.Key{InfluencerID: id, Brand: brand, Month: month}
	rec.Name = tbl.Value(i, tabular.ColName)

	if v := tbl.Value(i, tabular.ColExecuted); v != "" {
		n, err := tabular.ParseInt(v)
		if err != nil {
			return rec, fmt.Errorf("%w: %v", domain.ErrInvalidExecutionCount, err)
		}
		rec.Count = &n
	}
	if v := tbl.Value(i, tabular.ColStatus); v != "" {
		st, err := domain.ParseStatus(v)
		if err != nil {
			return rec, err
		}
		rec.Status = &st
	}
	if v := tbl.Value(i, tabular.ColURL); v != "" {
		rec.URL = &v
	}
	return rec, nil
}
