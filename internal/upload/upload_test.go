package upload

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fakeyudi/oculist/internal/backend"
	"github.com/fakeyudi/oculist/internal/capture"
	"github.com/fakeyudi/oculist/internal/visit"
)

// fakeUploader records requests and optionally blocks until released.
type fakeUploader struct {
	mu       sync.Mutex
	requests []backend.UploadRequest
	result   backend.UploadResult
	err      error
	started  chan struct{}
	release  chan struct{}
}

func (f *fakeUploader) Upload(ctx context.Context, req backend.UploadRequest) (backend.UploadResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.result, f.err
}

func artifact() capture.Artifact {
	return capture.Artifact{ID: "a1", Data: []byte("audio"), MIMEType: capture.MIMEType}
}

func TestSubmit_StructuredSendsOutline(t *testing.T) {
	up := &fakeUploader{result: backend.UploadResult{
		Transcript: []visit.Segment{{Start: 0, Text: "hi"}},
		Summary:    "- Diagnosis: myopia",
	}}
	c := NewCoordinator(up)

	outline := []string{"Diagnosis", "Allergy history"}
	res, err := c.Submit(context.Background(), artifact(), 12, visit.TypeSpecial, outline)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Seq != 1 || res.VisitID != 12 {
		t.Errorf("result = %+v, want seq 1 visit 12", res)
	}
	if res.Summary != "- Diagnosis: myopia" || len(res.Transcript) != 1 {
		t.Errorf("result payload = %+v", res)
	}

	req := up.requests[0]
	if len(req.Bullets) != 2 || req.Bullets[1] != "Allergy history" {
		t.Errorf("bullets = %v", req.Bullets)
	}
	if req.MIMEType != capture.MIMEType || string(req.Audio) != "audio" {
		t.Errorf("audio not forwarded: %+v", req)
	}

	outline[1] = "mutated"
	if req.Bullets[1] != "Allergy history" {
		t.Error("request bullets alias the caller's outline")
	}
}

func TestSubmit_UnstructuredOmitsOutline(t *testing.T) {
	up := &fakeUploader{}
	c := NewCoordinator(up)

	if _, err := c.Submit(context.Background(), artifact(), 3, visit.TypeGlasses, []string{"x"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if up.requests[0].Bullets != nil {
		t.Errorf("bullets = %v, want nil", up.requests[0].Bullets)
	}
}

func TestSubmit_FailureMatchesUploadFailed(t *testing.T) {
	up := &fakeUploader{err: &backend.RequestError{Op: "upload", Kind: backend.ErrUploadFailed, StatusCode: 500}}
	c := NewCoordinator(up)

	res, err := c.Submit(context.Background(), artifact(), 5, visit.TypeRoutine, nil)
	if !errors.Is(err, backend.ErrUploadFailed) {
		t.Fatalf("err = %v, want ErrUploadFailed", err)
	}
	if res.Seq != 1 {
		t.Errorf("Seq = %d, want 1 even on failure", res.Seq)
	}
	if c.InFlight(5) {
		t.Error("visit still marked in flight after failure")
	}
	if len(up.requests) != 1 {
		t.Errorf("requests = %d, want a single attempt", len(up.requests))
	}
}

func TestSubmit_EmptyArtifact(t *testing.T) {
	up := &fakeUploader{}
	c := NewCoordinator(up)

	_, err := c.Submit(context.Background(), capture.Artifact{}, 5, visit.TypeRoutine, nil)
	if !errors.Is(err, ErrEmptyArtifact) {
		t.Fatalf("err = %v, want ErrEmptyArtifact", err)
	}
	if len(up.requests) != 0 {
		t.Error("empty artifact reached the backend")
	}
}

func TestSubmit_OneInFlightPerVisit(t *testing.T) {
	up := &fakeUploader{started: make(chan struct{}, 2), release: make(chan struct{})}
	c := NewCoordinator(up)

	type outcome struct {
		res Result
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		res, err := c.Submit(context.Background(), artifact(), 9, visit.TypeRoutine, nil)
		first <- outcome{res, err}
	}()
	<-up.started

	if !c.InFlight(9) {
		t.Fatal("visit 9 should be in flight")
	}
	if _, err := c.Submit(context.Background(), artifact(), 9, visit.TypeRoutine, nil); !errors.Is(err, ErrSubmissionInFlight) {
		t.Fatalf("second submit err = %v, want ErrSubmissionInFlight", err)
	}

	// A different visit is not blocked.
	other := make(chan outcome, 1)
	go func() {
		res, err := c.Submit(context.Background(), artifact(), 10, visit.TypeRoutine, nil)
		other <- outcome{res, err}
	}()
	<-up.started

	close(up.release)
	a, b := <-first, <-other
	if a.err != nil || b.err != nil {
		t.Fatalf("errors: %v, %v", a.err, b.err)
	}
	if a.res.Seq >= b.res.Seq {
		t.Errorf("sequence not monotonic: %d then %d", a.res.Seq, b.res.Seq)
	}
	if c.InFlight(9) || c.InFlight(10) {
		t.Error("visits still in flight after completion")
	}

	res, err := c.Submit(context.Background(), artifact(), 9, visit.TypeRoutine, nil)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if res.Seq != 3 {
		t.Errorf("Seq = %d, want 3", res.Seq)
	}
}
