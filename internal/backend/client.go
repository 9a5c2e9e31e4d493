// Package backend is the HTTP client for the practice's transcription and
// appointment service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/fakeyudi/oculist/internal/visit"
)

// maxErrorBody caps how much of a failed response body is kept for errors.
const maxErrorBody = 512

// Client talks to the backend over HTTP.
type Client struct {
	BaseURL string
	client  *http.Client
}

// NewClient creates a client for baseURL. A zero timeout means no limit.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// UploadRequest is one recording submission.
type UploadRequest struct {
	VisitID   int
	VisitType visit.Type
	Bullets   []string
	Audio     []byte
	MIMEType  string
	Filename  string
}

// UploadResult is the transcript and summary produced for a submission.
type UploadResult struct {
	Transcript []visit.Segment
	Summary    string
}

// Transcription is the stored result of a visit's most recent recording.
type Transcription struct {
	Transcript []visit.Segment
	Summary    string
	AudioURL   string
	// Bullets is nil when the backend did not store an outline.
	Bullets []string
}

type uploadResponse struct {
	Transcript json.RawMessage `json:"transcript"`
	Summary    string          `json:"summary"`
}

type transcriptionResponse struct {
	Transcript json.RawMessage `json:"transcript"`
	Summary    string          `json:"summary"`
	AudioPath  string          `json:"audio_path"`
	Bullets    json.RawMessage `json:"bullets"`
}

type appointmentRecord struct {
	ID              int    `json:"id"`
	Status          string `json:"status"`
	Type            string `json:"type"`
	DoctorName      string `json:"doctor_name"`
	PatientName     string `json:"patient_name"`
	Notes           string `json:"notes"`
	AppointmentTime string `json:"appointment_time"`
	CreatedAt       string `json:"created_at"`
}

// Upload posts a recording as multipart form data and returns the transcript
// and summary together.
func (c *Client) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	const op = "upload"

	bullets := req.Bullets
	if bullets == nil || !req.VisitType.Structured() {
		bullets = []string{}
	}
	bulletsJSON, err := json.Marshal(bullets)
	if err != nil {
		return UploadResult{}, &RequestError{Op: op, Kind: ErrUploadFailed, Err: err}
	}

	filename := req.Filename
	if filename == "" {
		filename = "audio.webm"
	}
	mimeType := req.MIMEType
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err == nil {
		_, err = part.Write(req.Audio)
	}
	if err == nil {
		err = w.WriteField("appointment_id", strconv.Itoa(req.VisitID))
	}
	if err == nil {
		err = w.WriteField("appointment_type", string(req.VisitType))
	}
	if err == nil {
		err = w.WriteField("bullets", string(bulletsJSON))
	}
	if err == nil {
		err = w.Close()
	}
	if err != nil {
		return UploadResult{}, &RequestError{Op: op, Kind: ErrUploadFailed, Err: err}
	}

	slog.Debug("uploading recording", "visit_id", req.VisitID, "type", req.VisitType, "bytes", len(req.Audio), "bullets", len(bullets))

	var resp uploadResponse
	if err := c.do(ctx, op, ErrUploadFailed, http.MethodPost, "/upload", w.FormDataContentType(), body, &resp); err != nil {
		return UploadResult{}, err
	}
	segs, err := visit.DecodeTranscript(resp.Transcript)
	if err != nil {
		return UploadResult{}, &RequestError{Op: op, Kind: ErrUploadFailed, Err: err}
	}
	return UploadResult{Transcript: segs, Summary: resp.Summary}, nil
}

// FetchTranscription loads the stored transcription of a visit. Any failure,
// including "none recorded yet", matches ErrTranscriptionFetchFailed.
func (c *Client) FetchTranscription(ctx context.Context, visitID int) (Transcription, error) {
	const op = "fetch transcription"

	var resp transcriptionResponse
	path := "/transcription/" + strconv.Itoa(visitID)
	if err := c.do(ctx, op, ErrTranscriptionFetchFailed, http.MethodGet, path, "", nil, &resp); err != nil {
		return Transcription{}, err
	}

	segs, err := visit.DecodeTranscript(resp.Transcript)
	if err != nil {
		return Transcription{}, &RequestError{Op: op, Kind: ErrTranscriptionFetchFailed, Err: err}
	}
	bullets, err := decodeBullets(resp.Bullets)
	if err != nil {
		slog.Warn("ignoring malformed stored bullets", "visit_id", visitID, "err", err)
		bullets = nil
	}
	return Transcription{
		Transcript: segs,
		Summary:    resp.Summary,
		AudioURL:   c.resolve(resp.AudioPath),
		Bullets:    bullets,
	}, nil
}

// ListVisits returns every visit the backend knows about.
func (c *Client) ListVisits(ctx context.Context) ([]visit.Visit, error) {
	const op = "list visits"

	var records []appointmentRecord
	if err := c.do(ctx, op, ErrMetadataFetchFailed, http.MethodGet, "/appointment", "", nil, &records); err != nil {
		return nil, err
	}
	visits := make([]visit.Visit, 0, len(records))
	for _, r := range records {
		visits = append(visits, r.toVisit())
	}
	return visits, nil
}

// GetVisit returns the visit with the given id.
func (c *Client) GetVisit(ctx context.Context, id int) (visit.Visit, error) {
	visits, err := c.ListVisits(ctx)
	if err != nil {
		return visit.Visit{}, err
	}
	v, ok := visit.Find(visits, id)
	if !ok {
		return visit.Visit{}, &RequestError{Op: "get visit", Kind: ErrMetadataFetchFailed, Err: fmt.Errorf("visit %d not found", id)}
	}
	return v, nil
}

// UpdateNotes replaces the free-text notes of a visit.
func (c *Client) UpdateNotes(ctx context.Context, visitID int, notes string) error {
	return c.postForm(ctx, "update notes", "/update-notes", map[string]string{
		"appointment_id": strconv.Itoa(visitID),
		"notes":          notes,
	})
}

// UpdateStatus changes the scheduling status of a visit.
func (c *Client) UpdateStatus(ctx context.Context, visitID int, status visit.Status) error {
	return c.postForm(ctx, "update status", "/update-status", map[string]string{
		"appointment_id": strconv.Itoa(visitID),
		"status":         string(status),
	})
}

// UpdateType changes the visit type.
func (c *Client) UpdateType(ctx context.Context, visitID int, t visit.Type) error {
	return c.postForm(ctx, "update type", "/update-type", map[string]string{
		"appointment_id":   strconv.Itoa(visitID),
		"appointment_type": string(t),
	})
}

func (c *Client) postForm(ctx context.Context, op, path string, fields map[string]string) error {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return &RequestError{Op: op, Kind: ErrUpdateFailed, Err: err}
		}
	}
	if err := w.Close(); err != nil {
		return &RequestError{Op: op, Kind: ErrUpdateFailed, Err: err}
	}
	return c.do(ctx, op, ErrUpdateFailed, http.MethodPost, path, w.FormDataContentType(), body, nil)
}

// do performs one request and decodes a JSON response into out when non-nil.
func (c *Client) do(ctx context.Context, op string, kind error, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return &RequestError{Op: op, Kind: kind, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &RequestError{Op: op, Kind: kind, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &RequestError{Op: op, Kind: kind, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{Op: op, Kind: kind, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// resolve turns a stored audio path into a URL on the backend.
func (c *Client) resolve(audioPath string) string {
	if audioPath == "" {
		return ""
	}
	if strings.HasPrefix(audioPath, "http://") || strings.HasPrefix(audioPath, "https://") {
		return audioPath
	}
	return c.BaseURL + "/" + strings.TrimLeft(audioPath, "/")
}

// decodeBullets accepts a JSON array of strings or a string holding one.
func decodeBullets(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, err
		}
		if strings.TrimSpace(inner) == "" {
			return nil, nil
		}
		raw = json.RawMessage(inner)
	}
	var bullets []string
	if err := json.Unmarshal(raw, &bullets); err != nil {
		return nil, err
	}
	return bullets, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (r appointmentRecord) toVisit() visit.Visit {
	status := visit.StatusScheduled
	if r.Status != "" {
		if s, err := visit.ParseStatus(r.Status); err == nil {
			status = s
		} else {
			slog.Warn("unknown visit status", "visit_id", r.ID, "status", r.Status)
			status = visit.Status(r.Status)
		}
	}
	typ := visit.TypeRoutine
	if r.Type != "" {
		if t, err := visit.ParseType(r.Type); err == nil {
			typ = t
		} else {
			slog.Warn("unknown visit type", "visit_id", r.ID, "type", r.Type)
			typ = visit.Type(r.Type)
		}
	}
	return visit.Visit{
		ID:              r.ID,
		Status:          status,
		Type:            typ,
		DoctorName:      r.DoctorName,
		PatientName:     r.PatientName,
		Notes:           r.Notes,
		AppointmentTime: parseTime(r.AppointmentTime),
		CreatedAt:       parseTime(r.CreatedAt),
	}
}
