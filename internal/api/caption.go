package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/pipeline"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/watch"
)

// Captioner runs one upload through the caption pipeline.
type Captioner interface {
	ProcessUpload(ctx context.Context, job pipeline.Job) (*pipeline.Result, error)
}

// CaptionHandler handles video uploads on POST /caption/.
type CaptionHandler struct {
	captioner   Captioner
	maxUploadMB int64
	log         zerolog.Logger
}

func NewCaptionHandler(c Captioner, maxUploadMB int64, log zerolog.Logger) *CaptionHandler {
	return &CaptionHandler{
		captioner:   c,
		maxUploadMB: maxUploadMB,
		log:         log.With().Str("handler", "caption").Logger(),
	}
}

// ServeHTTP accepts a multipart upload with a "video" part and optional
// font_size and y_offset fields, runs the pipeline, and streams the captioned
// video back. A second upload while one is processing gets 429.
func (h *CaptionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadMB > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadMB<<20)
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d MB limit", h.maxUploadMB))
			return
		}
		WriteErrorDetail(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("video")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing video field")
		return
	}
	defer file.Close()

	if !watch.IsVideoFile(header.Filename) {
		WriteError(w, http.StatusBadRequest,
			"Invalid file type. Allowed types: .mp4, .avi, .mov, .mkv, .webm")
		return
	}

	fontSize, err := FormInt(r, "font_size", 0)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	yOffset, err := FormInt(r, "y_offset", 0)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	inputPath, err := saveUpload(file, header.Filename)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to save upload")
		WriteError(w, http.StatusInternalServerError, "failed to save uploaded file")
		return
	}
	defer os.Remove(inputPath)

	job := pipeline.Job{
		ID:        uuid.NewString(),
		VideoPath: inputPath,
		Filename:  header.Filename,
		FontSize:  fontSize,
		YOffset:   yOffset,
	}

	res, err := h.captioner.ProcessUpload(r.Context(), job)
	if err != nil {
		if errors.Is(err, pipeline.ErrBusy) {
			WriteError(w, http.StatusTooManyRequests,
				"Video processing already in progress. Please wait.")
			return
		}
		WriteError(w, http.StatusInternalServerError, "Error processing video: "+err.Error())
		return
	}
	defer os.Remove(res.OutputPath)

	h.stream(w, job, res)
}

// saveUpload spools the multipart part to a temp file, preserving the
// extension so ffmpeg can sniff the container.
func saveUpload(file io.Reader, filename string) (string, error) {
	tmp, err := os.CreateTemp("", "upload-*"+strings.ToLower(filepath.Ext(filename)))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// stream sends the captioned video back as an attachment.
func (h *CaptionHandler) stream(w http.ResponseWriter, job pipeline.Job, res *pipeline.Result) {
	out, err := os.Open(res.OutputPath)
	if err != nil {
		h.log.Error().Err(err).Str("path", res.OutputPath).Msg("failed to open output")
		WriteError(w, http.StatusInternalServerError, "failed to read captioned video")
		return
	}
	defer out.Close()

	info, err := out.Stat()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to read captioned video")
		return
	}

	// The download keeps the client's filename; the container is always mp4.
	outName := strings.TrimSuffix(filepath.Base(job.Filename), filepath.Ext(job.Filename)) + ".mp4"
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", outName))
	w.Header().Set("X-Job-ID", job.ID)
	w.Header().Set("X-Word-Count", strconv.Itoa(res.WordCount))
	w.Header().Set("X-Encoder", res.Encoder)
	if res.ResultURL != "" {
		w.Header().Set("X-Result-URL", res.ResultURL)
	}

	if _, err := io.Copy(w, out); err != nil {
		// Client went away mid-stream; nothing to send.
		h.log.Debug().Err(err).Str("job_id", job.ID).Msg("response stream interrupted")
	}
}
