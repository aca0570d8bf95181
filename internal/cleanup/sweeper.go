// Package cleanup reclaims the temp area by age. Registry entries are never
// evicted; only their backing files are.
package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

type Sweeper struct {
	dir      string
	interval time.Duration
	maxAge   time.Duration
	logger   *logrus.Logger

	// Prune, when set, reclaims the metadata cache on the same cycle as the
	// file sweep. Set before Start.
	Prune func(ctx context.Context) error

	stop chan struct{}
	done chan struct{}
}

func NewSweeper(dir string, interval, maxAge time.Duration, logger *logrus.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Sweeper{
		dir:      dir,
		interval: interval,
		maxAge:   maxAge,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	go s.run()
}

func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Sweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep prunes the metadata cache when a prune hook is wired, then removes
// entries in the temp area older than the configured max age.
func (s *Sweeper) Sweep() {
	s.logger.Infof("running scheduled cleanup in %s", s.dir)

	if s.Prune != nil {
		if err := s.Prune(context.Background()); err != nil {
			s.logger.Errorf("prune metadata cache: %v", err)
		}
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Errorf("list temp dir %s: %v", s.dir, err)
		return
	}

	now := time.Now()
	for _, entry := range entries {
		path := filepath.Join(s.dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			s.logger.Errorf("stat %s: %v", path, err)
			continue
		}
		if now.Sub(info.ModTime()) <= s.maxAge {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			s.logger.Errorf("cleanup %s: %v", path, err)
			continue
		}
		s.logger.Infof("removed old temp entry: %s", path)
	}
}
