package reports

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/osvaldoandrade/aquaq/internal/metrics"
)

// ReportStatus is the download surface's pure-read view of one report.
type ReportStatus struct {
	Exists     bool
	Expired    bool
	Age        time.Duration
	Downloaded bool
}

type record struct {
	path         string
	downloadedAt time.Time
}

// Tracker owns the rendered report files and their retention lifecycle:
// present until either the retention window elapses, or a shorter grace
// period after the first download. Sessions know nothing about report files;
// the two are correlated only by analysis id.
type Tracker struct {
	mu        sync.Mutex
	dir       string
	retention time.Duration
	grace     time.Duration
	records   map[string]*record
	logger    *slog.Logger
	now       func() time.Time
}

func NewTracker(dir string, retention, postDownloadGrace time.Duration, logger *slog.Logger, now func() time.Time) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		dir:       dir,
		retention: retention,
		grace:     postDownloadGrace,
		records:   make(map[string]*record),
		logger:    logger,
		now:       now,
	}
}

// Track registers a freshly rendered report file for expiry management.
func (t *Tracker) Track(id, path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[id] = &record{path: path}
}

// MarkDownloaded records the first download time; only the first transition
// matters, repeated calls are ignored.
func (t *Tracker) MarkDownloaded(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[id]
	if !ok {
		rec = &record{path: t.defaultPath(id)}
		t.records[id] = rec
	}
	if rec.downloadedAt.IsZero() {
		rec.downloadedAt = t.now()
		t.logger.Debug("report marked downloaded", "analysisId", id)
	}
}

// Path returns the file location for id.
func (t *Tracker) Path(id string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rec, ok := t.records[id]; ok {
		return rec.path
	}
	return t.defaultPath(id)
}

// Status computes availability from the file's mtime and the in-memory
// download timestamp. A vanished file reads as expired/not-found, never as an
// internal error.
func (t *Tracker) Status(id string) ReportStatus {
	t.mu.Lock()
	var downloaded bool
	path := t.defaultPath(id)
	if rec, ok := t.records[id]; ok {
		path = rec.path
		downloaded = !rec.downloadedAt.IsZero()
	}
	t.mu.Unlock()

	fi, err := os.Stat(path)
	if err != nil {
		return ReportStatus{Exists: false, Expired: true, Downloaded: downloaded}
	}

	age := t.now().Sub(fi.ModTime())
	return ReportStatus{
		Exists:     true,
		Expired:    age > t.retention,
		Age:        age,
		Downloaded: downloaded,
	}
}

// Retention returns the configured retention window.
func (t *Tracker) Retention() time.Duration {
	return t.retention
}

// Count reports the number of tracked reports.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// DeleteNow removes the report out of band, bypassing the timer. Used on
// pipeline failure and cleanup paths; idempotent.
func (t *Tracker) DeleteNow(id string) {
	t.mu.Lock()
	rec, ok := t.records[id]
	delete(t.records, id)
	t.mu.Unlock()

	path := t.defaultPath(id)
	if ok {
		path = rec.path
	}
	t.remove(id, path, "immediate")
}

// Sweep deletes every report meeting the retention policy and untracks it in
// the same pass, so the next tick never sees it again. Returns the number of
// files deleted.
func (t *Tracker) Sweep(now time.Time) int {
	t.mu.Lock()
	type victim struct {
		id, path, reason string
	}
	var victims []victim
	for id, rec := range t.records {
		fi, err := os.Stat(rec.path)
		if err != nil {
			// File vanished concurrently: treat as already deleted.
			delete(t.records, id)
			continue
		}
		switch {
		case !rec.downloadedAt.IsZero() && now.Sub(rec.downloadedAt) > t.grace:
			victims = append(victims, victim{id, rec.path, "downloaded"})
			delete(t.records, id)
		case rec.downloadedAt.IsZero() && now.Sub(fi.ModTime()) > t.retention:
			victims = append(victims, victim{id, rec.path, "expired"})
			delete(t.records, id)
		}
	}
	t.mu.Unlock()

	for _, v := range victims {
		t.remove(v.id, v.path, v.reason)
	}

	deleted := len(victims)
	deleted += t.sweepOrphans(now)
	if deleted > 0 {
		t.logger.Info("report sweep finished", "deleted", deleted)
	}
	return deleted
}

// sweepOrphans removes untracked report files left behind by a previous
// process; tracking is in-memory only and does not survive restarts.
func (t *Tracker) sweepOrphans(now time.Time) int {
	paths, err := filepath.Glob(filepath.Join(t.dir, "*.html"))
	if err != nil {
		return 0
	}

	t.mu.Lock()
	tracked := make(map[string]bool, len(t.records))
	for _, rec := range t.records {
		tracked[rec.path] = true
	}
	t.mu.Unlock()

	deleted := 0
	for _, p := range paths {
		if tracked[p] {
			continue
		}
		fi, err := os.Stat(p)
		if err != nil {
			continue
		}
		if now.Sub(fi.ModTime()) > t.retention {
			t.remove(filepath.Base(p), p, "orphan")
			deleted++
		}
	}
	return deleted
}

func (t *Tracker) remove(id, path, reason string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		// Deletion failure is logged and treated as already deleted.
		t.logger.Error("report delete failed", "analysisId", id, "path", path, "err", err)
		return
	}
	metrics.ReportsDeletedTotal.WithLabelValues(reason).Inc()
	t.logger.Debug("deleted report", "analysisId", id, "reason", reason)
}

func (t *Tracker) defaultPath(id string) string {
	return filepath.Join(t.dir, id+".html")
}
