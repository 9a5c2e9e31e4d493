// Package inbox watches a drop folder for recordings made outside the client
// (dictaphones, phone apps) and submits them for the visit named in the file.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/fakeyudi/oculist/internal/capture"
	"github.com/fakeyudi/oculist/internal/upload"
	"github.com/fakeyudi/oculist/internal/visit"
)

const (
	DoneDir   = "done"
	FailedDir = "failed"

	defaultSettle = 2 * time.Second
)

// namePattern matches visit-<id>.webm and visit-<id>-<anything>.webm.
var namePattern = regexp.MustCompile(`^visit-(\d+)(?:[-_.][^/]*)?\.webm$`)

// ParseName returns the visit id encoded in a drop-folder file name.
func ParseName(name string) (int, bool) {
	m := namePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Submitter sends a recording to the backend.
type Submitter interface {
	Submit(ctx context.Context, art capture.Artifact, visitID int, visitType visit.Type, outline []string) (upload.Result, error)
}

// VisitLookup resolves the visit a file belongs to.
type VisitLookup interface {
	GetVisit(ctx context.Context, id int) (visit.Visit, error)
}

// Event reports the outcome for one dropped file.
type Event struct {
	Path    string
	VisitID int
	Result  upload.Result
	Err     error
}

// Watcher submits every matching file that appears in Dir. Processed files
// are moved to Dir/done or Dir/failed.
type Watcher struct {
	Dir       string
	Submitter Submitter
	Visits    VisitLookup
	// Outline returns the outline sent for structured visits. May be nil.
	Outline func(visitID int) []string
	// Settle is how long a file must go unmodified before it is read.
	Settle time.Duration
	// OnEvent, when set, is called after each file is handled.
	OnEvent func(Event)
}

// Run processes files already in Dir, then watches it until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	for _, sub := range []string{DoneDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(w.Dir, sub), 0o755); err != nil {
			return fmt.Errorf("creating inbox directory: %w", err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(w.Dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.Dir, err)
	}

	settle := w.Settle
	if settle <= 0 {
		settle = defaultSettle
	}
	ready := make(chan string, 16)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	// schedule (re)starts the quiet-period timer for a path.
	schedule := func(path string) {
		if _, ok := ParseName(filepath.Base(path)); !ok {
			return
		}
		if t, ok := timers[path]; ok {
			t.Reset(settle)
			return
		}
		timers[path] = time.AfterFunc(settle, func() {
			select {
			case ready <- path:
			case <-ctx.Done():
			}
		})
	}

	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		return fmt.Errorf("reading inbox: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			schedule(filepath.Join(w.Dir, e.Name()))
		}
	}

	slog.Info("watching inbox", "dir", w.Dir)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				schedule(event.Name)
			}

		case path := <-ready:
			delete(timers, path)
			w.process(ctx, path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("inbox watcher error", "err", err)
		}
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	// Already handled by an earlier quiet period.
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return
	}
	id, _ := ParseName(filepath.Base(path))
	ev := Event{Path: path, VisitID: id}
	ev.Result, ev.Err = w.submit(ctx, path, id)

	dest := DoneDir
	if ev.Err != nil {
		dest = FailedDir
		slog.Warn("inbox submission failed", "path", path, "visit_id", id, "err", ev.Err)
	} else {
		slog.Info("inbox submission complete", "path", path, "visit_id", id, "segments", len(ev.Result.Transcript))
	}

	moved := filepath.Join(w.Dir, dest, filepath.Base(path))
	if err := os.Rename(path, moved); err != nil {
		slog.Warn("moving processed inbox file", "path", path, "err", err)
	} else {
		ev.Path = moved
	}
	if w.OnEvent != nil {
		w.OnEvent(ev)
	}
}

func (w *Watcher) submit(ctx context.Context, path string, id int) (upload.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return upload.Result{}, err
	}
	v, err := w.Visits.GetVisit(ctx, id)
	if err != nil {
		return upload.Result{}, err
	}
	var outline []string
	if v.Type.Structured() && w.Outline != nil {
		outline = w.Outline(id)
	}
	art := capture.Artifact{ID: uuid.NewString(), Data: data, MIMEType: capture.MIMEType}
	return w.Submitter.Submit(ctx, art, id, v.Type, outline)
}
