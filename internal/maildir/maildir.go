// Package maildir polls a maildir-style layout and feeds discovered
// messages to the router. Moving a processed file from new/ to cur/
// is the dequeue: a file is routed at most once even across restarts.
package maildir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Routing is the slice of the router the poller needs.
type Routing interface {
	Route(raw []byte, receivedAt time.Time) (bool, error)
}

// Poller scans new/ on an interval. Processing is strictly
// sequential; there is never more than one routing call in flight.
type Poller struct {
	dir      string
	interval time.Duration
	router   Routing
	log      *zap.Logger
}

// New creates a Poller over the maildir root (the directory holding
// new/ and cur/).
func New(dir string, interval time.Duration, router Routing, log *zap.Logger) *Poller {
	return &Poller{dir: dir, interval: interval, router: router, log: log}
}

// Run polls until ctx is cancelled. The first scan happens
// immediately.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.ensureLayout(); err != nil {
		return err
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if n, err := p.ProcessOnce(); err != nil {
			p.log.Error("maildir scan failed", zap.Error(err))
		} else if n > 0 {
			p.log.Info("maildir scan complete", zap.Int("processed", n))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessOnce routes every file currently in new/ and moves each to
// cur/ afterwards, whether or not a handler accepted it. Returns the
// number of files a handler processed.
func (p *Poller) ProcessOnce() (int, error) {
	newDir := filepath.Join(p.dir, "new")
	entries, err := os.ReadDir(newDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read maildir: %w", err)
	}

	processed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(newDir, entry.Name())

		raw, err := os.ReadFile(path)
		if err != nil {
			p.log.Warn("failed to read message file",
				zap.String("file", entry.Name()), zap.Error(err))
			continue
		}

		receivedAt := time.Now()
		if info, err := entry.Info(); err == nil {
			receivedAt = info.ModTime()
		}

		handled, err := p.router.Route(raw, receivedAt)
		if err != nil {
			p.log.Warn("unroutable message",
				zap.String("file", entry.Name()), zap.Error(err))
		} else if handled {
			processed++
		}

		// Move regardless of outcome so a poison message cannot
		// wedge the queue. The :2,S suffix marks it seen.
		dest := filepath.Join(p.dir, "cur", entry.Name()+":2,S")
		if err := os.Rename(path, dest); err != nil {
			p.log.Error("failed to move processed message",
				zap.String("file", entry.Name()), zap.Error(err))
		}
	}

	return processed, nil
}

func (p *Poller) ensureLayout() error {
	for _, sub := range []string{"new", "cur", "tmp"} {
		if err := os.MkdirAll(filepath.Join(p.dir, sub), 0o700); err != nil {
			return fmt.Errorf("failed to create maildir layout: %w", err)
		}
	}
	return nil
}
