// Package store keeps the roster, assignment history, execution status and
// monthly target tables as flat CSV files. Tables are read wholesale into a
// Snapshot and rewritten wholesale.
package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/crewrun/internal/domain"
	atomicio "github.com/sawpanic/crewrun/internal/io"
	"github.com/sawpanic/crewrun/internal/tabular"
)

// Table names one of the store's files.
type Table int

const (
	Roster Table = iota
	History
	Executions
	Targets
)

// AllTables lists every table in load order.
var AllTables = []Table{Roster, History, Executions, Targets}

func (t Table) String() string {
	switch t {
	case Roster:
		return "roster"
	case History:
		return "history"
	case Executions:
		return "executions"
	case Targets:
		return "targets"
	}
	return "table(" + strconv.Itoa(int(t)) + ")"
}

// Files holds the file name of each table inside the data directory.
type Files struct {
	Roster     string `yaml:"roster"`
	History    string `yaml:"history"`
	Executions string `yaml:"executions"`
	Targets    string `yaml:"targets"`
}

// DefaultFiles returns the file names the tool has always used.
func DefaultFiles() Files {
	return Files{
		Roster:     "influencer.csv",
		History:    "assignment_history.csv",
		Executions: "execution_status.csv",
		Targets:    "monthly_targets.csv",
	}
}

// Store reads and writes the tables under Dir.
type Store struct {
	Dir    string
	Files  Files
	Brands []domain.Brand
	Season domain.Season
}

// New returns a store over dir using the default file names.
func New(dir string, brands []domain.Brand, season domain.Season) *Store {
	if len(brands) == 0 {
		brands = domain.DefaultBrands
	}
	return &Store{Dir: dir, Files: DefaultFiles(), Brands: brands, Season: season}
}

// Path returns the file path of a table.
func (s *Store) Path(t Table) string {
	var name string
	switch t {
	case Roster:
		name = s.Files.Roster
	case History:
		name = s.Files.History
	case Executions:
		name = s.Files.Executions
	case Targets:
		name = s.Files.Targets
	}
	return filepath.Join(s.Dir, name)
}

// Paths returns the file paths of every table.
func (s *Store) Paths() []string {
	out := make([]string, len(AllTables))
	for i, t := range AllTables {
		out[i] = s.Path(t)
	}
	return out
}

// Load reads every table. Missing files are empty tables, except the roster.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{Brands: s.Brands, Season: s.Season}

	for _, t := range AllTables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tbl, err := s.read(t)
		if err != nil {
			return nil, err
		}
		if tbl == nil {
			if t == Roster {
				return nil, fmt.Errorf("%w: %s", domain.ErrRosterMissing, s.Path(t))
			}
			continue
		}
		if err := s.decode(snap, t, tbl); err != nil {
			return nil, fmt.Errorf("%s: %w", s.Path(t), err)
		}
		log.Debug().Str("table", t.String()).Int("rows", tbl.Len()).Msg("loaded table")
	}

	snap.mergeCarried()

	rev, err := s.Revision()
	if err != nil {
		return nil, err
	}
	snap.Revision = rev
	return snap, nil
}

func (s *Store) read(t Table) (*tabular.Table, error) {
	data, err := os.ReadFile(s.Path(t))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	tbl, err := tabular.ReadCSV(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path(t), err)
	}
	return tbl, nil
}

func (s *Store) decode(snap *Snapshot, t Table, tbl *tabular.Table) error {
	var err error
	switch t {
	case Roster:
		snap.Roster, err = DecodeRoster(tbl, s.Brands)
	case History:
		snap.History, snap.carried, err = decodeHistory(tbl, s.Brands, s.Season)
	case Executions:
		snap.Executions, err = decodeExecutions(tbl, s.Brands, s.Season)
	case Targets:
		snap.Targets, err = decodeTargets(tbl, s.Brands, s.Season)
	}
	return err
}

// Save rewrites the named tables from snap. With no tables named it rewrites
// every table.
func (s *Store) Save(ctx context.Context, snap *Snapshot, tables ...Table) error {
	if len(tables) == 0 {
		tables = AllTables
	}
	tables = snap.Touched(tables...)
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		header, rows := s.encode(snap, t)
		if err := atomicio.WriteCSVAtomic(s.Path(t), header, rows); err != nil {
			return fmt.Errorf("write %s: %w", t, err)
		}
		log.Debug().Str("table", t.String()).Int("rows", len(rows)).Msg("saved table")
	}
	snap.migrated = false
	rev, err := s.Revision()
	if err != nil {
		return err
	}
	snap.Revision = rev
	return nil
}

func (s *Store) encode(snap *Snapshot, t Table) ([]string, [][]string) {
	switch t {
	case Roster:
		return encodeRoster(snap.Roster, s.Brands)
	case History:
		return encodeHistory(snap.History)
	case Executions:
		return encodeExecutions(snap.Executions)
	default:
		return encodeTargets(snap.Targets)
	}
}

// Remove deletes the files of the named tables.
func (s *Store) Remove(tables ...Table) error {
	paths := make([]string, len(tables))
	for i, t := range tables {
		paths[i] = s.Path(t)
	}
	return atomicio.RemoveFiles(paths...)
}

// Revision fingerprints the table files by name, size and modification time.
// It changes after every write, including edits made outside crewrun.
func (s *Store) Revision() (string, error) {
	h := sha256.New()
	for _, p := range s.Paths() {
		fmt.Fprint(h, filepath.Base(p), "|")
		info, err := os.Stat(p)
		switch {
		case errors.Is(err, os.ErrNotExist):
			fmt.Fprint(h, "absent;")
		case err != nil:
			return "", err
		default:
			fmt.Fprintf(h, "%d|%d;", info.Size(), info.ModTime().UnixNano())
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}
