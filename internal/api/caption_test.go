package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/pipeline"
)

type stubCaptioner struct {
	err     error
	lastJob pipeline.Job
	output  []byte
}

func (s *stubCaptioner) ProcessUpload(_ context.Context, job pipeline.Job) (*pipeline.Result, error) {
	s.lastJob = job
	if s.err != nil {
		return nil, s.err
	}
	out, err := os.CreateTemp("", "captioned-*.mp4")
	if err != nil {
		return nil, err
	}
	if _, err := out.Write(s.output); err != nil {
		return nil, err
	}
	out.Close()
	return &pipeline.Result{OutputPath: out.Name(), Encoder: "libx264", WordCount: 7}, nil
}

func multipartUpload(t *testing.T, filename string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("video", filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte("fake video bytes"))
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func newCaptionRequest(t *testing.T, filename string, fields map[string]string) *http.Request {
	body, contentType := multipartUpload(t, filename, fields)
	r := httptest.NewRequest(http.MethodPost, "/caption/", body)
	r.Header.Set("Content-Type", contentType)
	return r
}

func TestCaptionUpload(t *testing.T) {
	stub := &stubCaptioner{output: []byte("captioned video")}
	h := NewCaptionHandler(stub, 512, zerolog.Nop())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, newCaptionRequest(t, "clip.mp4", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="clip.mp4"` {
		t.Errorf("content disposition = %q", cd)
	}
	if w.Header().Get("X-Word-Count") != "7" {
		t.Errorf("word count header = %q", w.Header().Get("X-Word-Count"))
	}
	if got, _ := io.ReadAll(w.Body); string(got) != "captioned video" {
		t.Errorf("body = %q", got)
	}
	if stub.lastJob.Filename != "clip.mp4" {
		t.Errorf("job filename = %q", stub.lastJob.Filename)
	}
	// Spooled input is cleaned up after the response.
	if _, err := os.Stat(stub.lastJob.VideoPath); !os.IsNotExist(err) {
		t.Errorf("uploaded temp file not removed: %v", err)
	}
}

func TestCaptionUploadOverrides(t *testing.T) {
	stub := &stubCaptioner{output: []byte("x")}
	h := NewCaptionHandler(stub, 512, zerolog.Nop())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, newCaptionRequest(t, "clip.mp4", map[string]string{
		"font_size": "120",
		"y_offset":  "300",
	}))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if stub.lastJob.FontSize != 120 || stub.lastJob.YOffset != 300 {
		t.Errorf("job overrides = %d/%d, want 120/300", stub.lastJob.FontSize, stub.lastJob.YOffset)
	}
}

func TestCaptionUploadBadExtension(t *testing.T) {
	h := NewCaptionHandler(&stubCaptioner{}, 512, zerolog.Nop())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, newCaptionRequest(t, "notes.txt", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Invalid file type") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestCaptionUploadMissingFile(t *testing.T) {
	h := NewCaptionHandler(&stubCaptioner{}, 512, zerolog.Nop())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, newCaptionRequest(t, "", map[string]string{"font_size": "100"}))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCaptionUploadWrongPartName(t *testing.T) {
	// Clients send the video under the part name "video"; anything else is
	// treated as a missing upload.
	stub := &stubCaptioner{output: []byte("x")}
	h := NewCaptionHandler(stub, 512, zerolog.Nop())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "clip.mp4")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("fake video bytes"))
	mw.Close()

	r := httptest.NewRequest(http.MethodPost, "/caption/", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "missing video field") {
		t.Errorf("body = %s", w.Body.String())
	}
	if stub.lastJob.ID != "" {
		t.Error("pipeline should not run for a misnamed part")
	}
}

func TestCaptionUploadInvalidFontSize(t *testing.T) {
	h := NewCaptionHandler(&stubCaptioner{}, 512, zerolog.Nop())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, newCaptionRequest(t, "clip.mp4", map[string]string{"font_size": "nope"}))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCaptionUploadBusy(t *testing.T) {
	h := NewCaptionHandler(&stubCaptioner{err: pipeline.ErrBusy}, 512, zerolog.Nop())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, newCaptionRequest(t, "clip.mp4", nil))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if !strings.Contains(w.Body.String(), "already in progress") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestCaptionUploadPipelineError(t *testing.T) {
	h := NewCaptionHandler(&stubCaptioner{err: errors.New("no words were transcribed")}, 512, zerolog.Nop())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, newCaptionRequest(t, "clip.mp4", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Error processing video") {
		t.Errorf("body = %s", w.Body.String())
	}
}
