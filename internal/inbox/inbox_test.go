package inbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fakeyudi/oculist/internal/capture"
	"github.com/fakeyudi/oculist/internal/upload"
	"github.com/fakeyudi/oculist/internal/visit"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		name string
		id   int
		ok   bool
	}{
		{"visit-12.webm", 12, true},
		{"visit-12-morning.webm", 12, true},
		{"visit-7_take2.webm", 7, true},
		{"visit-0.webm", 0, false},
		{"visit-abc.webm", 0, false},
		{"visit-12.mp3", 0, false},
		{"notes.txt", 0, false},
		{"visit-12.webm.tmp", 0, false},
	}
	for _, tt := range tests {
		id, ok := ParseName(tt.name)
		if id != tt.id || ok != tt.ok {
			t.Errorf("ParseName(%q) = %d, %v; want %d, %v", tt.name, id, ok, tt.id, tt.ok)
		}
	}
}

type fakeSubmitter struct {
	mu       sync.Mutex
	visits   []int
	outlines [][]string
	data     [][]byte
	err      error
}

func (f *fakeSubmitter) Submit(ctx context.Context, art capture.Artifact, visitID int, visitType visit.Type, outline []string) (upload.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visits = append(f.visits, visitID)
	f.outlines = append(f.outlines, outline)
	f.data = append(f.data, art.Data)
	if f.err != nil {
		return upload.Result{}, f.err
	}
	return upload.Result{VisitID: visitID, Summary: "- Diagnosis: myopia"}, nil
}

type fakeVisits map[int]visit.Visit

func (f fakeVisits) GetVisit(ctx context.Context, id int) (visit.Visit, error) {
	v, ok := f[id]
	if !ok {
		return visit.Visit{}, errors.New("visit not found")
	}
	return v, nil
}

func startWatcher(t *testing.T, w *Watcher) <-chan Event {
	t.Helper()
	events := make(chan Event, 8)
	w.Settle = 20 * time.Millisecond
	w.OnEvent = func(ev Event) { events <- ev }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run: %v", err)
		}
	})
	return events
}

func waitEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for inbox event")
		return Event{}
	}
}

func TestWatcher_SubmitsExistingAndNewFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "visit-1.webm"), []byte("early"), 0o644); err != nil {
		t.Fatal(err)
	}
	sub := &fakeSubmitter{}
	w := &Watcher{
		Dir:       dir,
		Submitter: sub,
		Visits: fakeVisits{
			1: {ID: 1, Type: visit.TypeRoutine},
			2: {ID: 2, Type: visit.TypeSpecial},
		},
		Outline: func(int) []string { return []string{"Diagnosis"} },
	}
	events := startWatcher(t, w)

	ev := waitEvent(t, events)
	if ev.Err != nil || ev.VisitID != 1 {
		t.Fatalf("first event = %+v", ev)
	}
	if ev.Path != filepath.Join(dir, DoneDir, "visit-1.webm") {
		t.Errorf("processed file not moved to done: %s", ev.Path)
	}

	// Ignored: wrong name.
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "visit-2-exam.webm"), []byte("late"), 0o644); err != nil {
		t.Fatal(err)
	}
	ev = waitEvent(t, events)
	if ev.Err != nil || ev.VisitID != 2 {
		t.Fatalf("second event = %+v", ev)
	}

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if len(sub.visits) != 2 {
		t.Fatalf("submissions = %v", sub.visits)
	}
	if sub.outlines[0] != nil {
		t.Errorf("outline sent for unstructured visit: %v", sub.outlines[0])
	}
	if len(sub.outlines[1]) != 1 || string(sub.data[1]) != "late" {
		t.Errorf("structured submission = %v %q", sub.outlines[1], sub.data[1])
	}
	if _, err := os.Stat(filepath.Join(dir, "readme.txt")); err != nil {
		t.Errorf("non-matching file was touched: %v", err)
	}
}

func TestWatcher_FailedSubmissionMovesToFailed(t *testing.T) {
	dir := t.TempDir()
	sub := &fakeSubmitter{err: errors.New("upload failed")}
	w := &Watcher{Dir: dir, Submitter: sub, Visits: fakeVisits{4: {ID: 4, Type: visit.TypeRoutine}}}
	events := startWatcher(t, w)

	if err := os.WriteFile(filepath.Join(dir, "visit-4.webm"), []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	ev := waitEvent(t, events)
	if ev.Err == nil {
		t.Fatal("expected submission error")
	}
	if _, err := os.Stat(filepath.Join(dir, FailedDir, "visit-4.webm")); err != nil {
		t.Errorf("file not moved to failed: %v", err)
	}
}

func TestWatcher_UnknownVisitFails(t *testing.T) {
	dir := t.TempDir()
	sub := &fakeSubmitter{}
	w := &Watcher{Dir: dir, Submitter: sub, Visits: fakeVisits{}}
	events := startWatcher(t, w)

	if err := os.WriteFile(filepath.Join(dir, "visit-9.webm"), []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	ev := waitEvent(t, events)
	if ev.Err == nil {
		t.Fatal("expected lookup error")
	}
	if len(sub.visits) != 0 {
		t.Error("submitted a recording for an unknown visit")
	}
}
