// Package history keeps past test reports in a bolt file.
package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"UCLA-Rocket-Project/GALIL/internal/tester"

	"github.com/asdine/storm/v3"
	"go.uber.org/zap"
)

type Run struct {
	ID      int       `storm:"id,increment"`
	Target  string    `storm:"index"`
	Started time.Time `storm:"index"`
	Passed  bool
	Report  tester.Report
}

type Store struct {
	db     *storm.DB
	logger *zap.Logger
}

// Open creates the file and its directory if needed.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := storm.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}

	if err := db.Init(&Run{}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores report and returns the stored run.
func (s *Store) Save(report tester.Report) (Run, error) {
	run := Run{
		Target:  report.Target,
		Started: report.Started,
		Passed:  report.Passed(),
		Report:  report,
	}
	if err := s.db.Save(&run); err != nil {
		s.logger.Error("Error saving test run", zap.Error(err))
		return Run{}, err
	}

	s.logger.Debug("Saved test run", zap.Int("id", run.ID), zap.Bool("passed", run.Passed))
	return run, nil
}

// Recent returns up to n runs, newest first.
func (s *Store) Recent(n int) ([]Run, error) {
	var runs []Run
	err := s.db.All(&runs, storm.Limit(n), storm.Reverse())
	if errors.Is(err, storm.ErrNotFound) {
		return nil, nil
	}
	return runs, err
}

// ForTarget returns up to n runs against target, newest first.
func (s *Store) ForTarget(target string, n int) ([]Run, error) {
	var runs []Run
	err := s.db.Find("Target", target, &runs, storm.Limit(n), storm.Reverse())
	if errors.Is(err, storm.ErrNotFound) {
		return nil, nil
	}
	return runs, err
}
