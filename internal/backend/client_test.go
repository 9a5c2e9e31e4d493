package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fakeyudi/oculist/internal/visit"
)

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	c := NewClient("http://localhost:8000/", time.Second)
	if c.BaseURL != "http://localhost:8000" {
		t.Errorf("BaseURL = %q, want http://localhost:8000", c.BaseURL)
	}
	if c.client == nil {
		t.Error("client should not be nil")
	}
}

func TestClient_Upload(t *testing.T) {
	var gotFields map[string]string
	var gotAudio []byte
	var gotFilename, gotPartType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/upload" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		gotFields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			gotFields[k] = v[0]
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		gotFilename = hdr.Filename
		gotPartType = hdr.Header.Get("Content-Type")
		gotAudio, _ = io.ReadAll(f)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"transcript":[{"start":5.2,"text":"second"},{"start":0,"text":"first"}],"summary":"- Diagnosis: myopia"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	res, err := c.Upload(context.Background(), UploadRequest{
		VisitID:   12,
		VisitType: visit.TypeSpecial,
		Bullets:   []string{"Diagnosis", "Allergy history"},
		Audio:     []byte("webm-bytes"),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if gotFields["appointment_id"] != "12" {
		t.Errorf("appointment_id = %q, want 12", gotFields["appointment_id"])
	}
	if gotFields["appointment_type"] != "special" {
		t.Errorf("appointment_type = %q, want special", gotFields["appointment_type"])
	}
	if gotFields["bullets"] != `["Diagnosis","Allergy history"]` {
		t.Errorf("bullets = %q", gotFields["bullets"])
	}
	if gotFilename != "audio.webm" || gotPartType != "audio/webm" {
		t.Errorf("file part = %q %q, want audio.webm audio/webm", gotFilename, gotPartType)
	}
	if string(gotAudio) != "webm-bytes" {
		t.Errorf("audio = %q", gotAudio)
	}

	if len(res.Transcript) != 2 || res.Transcript[0].Text != "first" {
		t.Errorf("transcript not ordered by start: %+v", res.Transcript)
	}
	if res.Summary != "- Diagnosis: myopia" {
		t.Errorf("summary = %q", res.Summary)
	}
}

func TestClient_Upload_UnstructuredSendsEmptyBullets(t *testing.T) {
	var bullets string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		bullets = r.FormValue("bullets")
		_, _ = io.WriteString(w, `{"transcript":[],"summary":""}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.Upload(context.Background(), UploadRequest{
		VisitID:   3,
		VisitType: visit.TypeRoutine,
		Bullets:   []string{"ignored"},
		Audio:     []byte("x"),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if bullets != "[]" {
		t.Errorf("bullets = %q, want []", bullets)
	}
}

func TestClient_Upload_Errors(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "transcription engine down", http.StatusInternalServerError)
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, "not json")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewClient(srv.URL, time.Second)
			_, err := c.Upload(context.Background(), UploadRequest{VisitID: 1, VisitType: visit.TypeRoutine, Audio: []byte("x")})
			if !errors.Is(err, ErrUploadFailed) {
				t.Fatalf("err = %v, want ErrUploadFailed", err)
			}
			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("err is not *RequestError: %T", err)
			}
			if reqErr.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", reqErr.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestClient_Upload_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second)
	_, err := c.Upload(context.Background(), UploadRequest{VisitID: 1, Audio: []byte("x")})
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("err = %v, want ErrUploadFailed", err)
	}
}

func TestClient_FetchTranscription(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantAudio   string
		wantBullets []string
		wantSegs    int
	}{
		{
			name:        "array transcript with bullets",
			body:        `{"transcript":[{"start":0,"text":"hello"}],"summary":"- A: b","audio_path":"uploads/7.webm","bullets":["A","B"]}`,
			wantAudio:   "/uploads/7.webm",
			wantBullets: []string{"A", "B"},
			wantSegs:    1,
		},
		{
			name:        "string-encoded bullets",
			body:        `{"transcript":"[00:00] hi [00:04] there","summary":"","audio_path":"/uploads/7.webm","bullets":"[\"X\"]"}`,
			wantAudio:   "/uploads/7.webm",
			wantBullets: []string{"X"},
			wantSegs:    2,
		},
		{
			name:      "no bullets",
			body:      `{"transcript":[],"summary":"","audio_path":"uploads/7.webm","bullets":null}`,
			wantAudio: "/uploads/7.webm",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/transcription/7" {
					t.Errorf("path = %s, want /transcription/7", r.URL.Path)
				}
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := NewClient(srv.URL, time.Second)
			tr, err := c.FetchTranscription(context.Background(), 7)
			if err != nil {
				t.Fatalf("FetchTranscription: %v", err)
			}
			if tr.AudioURL != srv.URL+tt.wantAudio {
				t.Errorf("AudioURL = %q, want %q", tr.AudioURL, srv.URL+tt.wantAudio)
			}
			if len(tr.Transcript) != tt.wantSegs {
				t.Errorf("segments = %d, want %d", len(tr.Transcript), tt.wantSegs)
			}
			if len(tr.Bullets) != len(tt.wantBullets) {
				t.Fatalf("bullets = %v, want %v", tr.Bullets, tt.wantBullets)
			}
			for i := range tt.wantBullets {
				if tr.Bullets[i] != tt.wantBullets[i] {
					t.Errorf("bullets[%d] = %q, want %q", i, tr.Bullets[i], tt.wantBullets[i])
				}
			}
		})
	}
}

func TestClient_FetchTranscription_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.FetchTranscription(context.Background(), 99)
	if !errors.Is(err, ErrTranscriptionFetchFailed) {
		t.Fatalf("err = %v, want ErrTranscriptionFetchFailed", err)
	}
}

func TestClient_GetVisit(t *testing.T) {
	records := []map[string]any{
		{"id": 1, "status": "completed", "type": "glasses", "doctor_name": "Dr. Iris", "patient_name": "Ann", "appointment_time": "2024-05-01T09:30:00"},
		{"id": 2, "status": "", "type": "", "doctor_name": "Dr. Iris", "patient_name": "Bob", "appointment_time": "2024-05-01 10:00:00", "notes": "bring old glasses"},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/appointment" {
			t.Errorf("path = %s, want /appointment", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(records)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	v, err := c.GetVisit(context.Background(), 2)
	if err != nil {
		t.Fatalf("GetVisit: %v", err)
	}
	if v.PatientName != "Bob" || v.Notes != "bring old glasses" {
		t.Errorf("visit = %+v", v)
	}
	if v.Status != visit.StatusScheduled || v.Type != visit.TypeRoutine {
		t.Errorf("defaults not applied: status=%q type=%q", v.Status, v.Type)
	}
	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if !v.AppointmentTime.Equal(want) {
		t.Errorf("AppointmentTime = %v, want %v", v.AppointmentTime, want)
	}

	_, err = c.GetVisit(context.Background(), 42)
	if !errors.Is(err, ErrMetadataFetchFailed) {
		t.Errorf("missing visit err = %v, want ErrMetadataFetchFailed", err)
	}
}

func TestClient_Updates(t *testing.T) {
	got := map[string]map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		fields := map[string]string{}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		got[r.URL.Path] = fields
		_, _ = io.WriteString(w, `{"message":"ok"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	ctx := context.Background()
	if err := c.UpdateNotes(ctx, 4, "dilated both eyes"); err != nil {
		t.Fatalf("UpdateNotes: %v", err)
	}
	if err := c.UpdateStatus(ctx, 4, visit.StatusCompleted); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := c.UpdateType(ctx, 4, visit.TypeSpecial); err != nil {
		t.Fatalf("UpdateType: %v", err)
	}

	if got["/update-notes"]["notes"] != "dilated both eyes" || got["/update-notes"]["appointment_id"] != "4" {
		t.Errorf("update-notes fields = %v", got["/update-notes"])
	}
	if got["/update-status"]["status"] != "completed" {
		t.Errorf("update-status fields = %v", got["/update-status"])
	}
	if got["/update-type"]["appointment_type"] != "special" {
		t.Errorf("update-type fields = %v", got["/update-type"])
	}
}

func TestClient_UpdateFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	err := c.UpdateNotes(context.Background(), 1, "x")
	if !errors.Is(err, ErrUpdateFailed) {
		t.Fatalf("err = %v, want ErrUpdateFailed", err)
	}
}

func TestDecodeBullets(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: ``, want: 0},
		{in: `null`, want: 0},
		{in: `""`, want: 0},
		{in: `["a","b"]`, want: 2},
		{in: `"[\"a\"]"`, want: 1},
		{in: `{"a":1}`, wantErr: true},
	}
	for _, tt := range tests {
		got, err := decodeBullets(json.RawMessage(tt.in))
		if (err != nil) != tt.wantErr {
			t.Errorf("decodeBullets(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if len(got) != tt.want {
			t.Errorf("decodeBullets(%q) = %v, want %d items", tt.in, got, tt.want)
		}
	}
}
