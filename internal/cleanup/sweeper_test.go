package cleanup

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func TestSweepRemovesOnlyExpiredEntries(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.mp4")
	fresh := filepath.Join(dir, "fresh.mp4")
	touch(t, old, time.Now().Add(-48*time.Hour))
	touch(t, fresh, time.Now())

	s := NewSweeper(dir, time.Hour, 24*time.Hour, quietLogger())
	s.Sweep()

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("old entry survived: %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh entry removed: %v", err)
	}
}

func TestSweepRemovesExpiredDirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "job")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	touch(t, filepath.Join(sub, "part"), time.Now().Add(-48*time.Hour))
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(sub, past, past); err != nil {
		t.Fatal(err)
	}

	s := NewSweeper(dir, time.Hour, 24*time.Hour, quietLogger())
	s.Sweep()

	if _, err := os.Stat(sub); !os.IsNotExist(err) {
		t.Fatalf("expired directory survived: %v", err)
	}
}

func TestSweepRunsCachePrune(t *testing.T) {
	s := NewSweeper(t.TempDir(), time.Hour, 24*time.Hour, quietLogger())

	var pruned int
	s.Prune = func(ctx context.Context) error {
		pruned++
		return nil
	}

	s.Sweep()
	s.Sweep()

	if pruned != 2 {
		t.Fatalf("prune calls = %d", pruned)
	}
}

func TestSweepPruneFailureDoesNotAbortFileSweep(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.mp4")
	touch(t, old, time.Now().Add(-48*time.Hour))

	s := NewSweeper(dir, time.Hour, 24*time.Hour, quietLogger())
	s.Prune = func(context.Context) error { return errors.New("database locked") }
	s.Sweep()

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("file sweep skipped after prune failure")
	}
}

func TestSweepMissingDirIsHarmless(t *testing.T) {
	s := NewSweeper(filepath.Join(t.TempDir(), "nope"), time.Hour, time.Hour, quietLogger())
	s.Sweep()
}

func TestStartStop(t *testing.T) {
	s := NewSweeper(t.TempDir(), 10*time.Millisecond, time.Hour, quietLogger())
	s.Start()
	time.Sleep(30 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
