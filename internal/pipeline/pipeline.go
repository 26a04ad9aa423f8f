// Package pipeline orchestrates caption jobs: audio extraction, speech
// recognition, subtitle generation, and burn-in.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/events"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/gpu"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/history"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/media"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/notify"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/storage"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/transcribe"
)

// ErrBusy is returned when all processing slots are occupied.
var ErrBusy = errors.New("video processing already in progress")

// Job is one caption request.
type Job struct {
	ID        string
	VideoPath string // input file on disk
	Filename  string // original filename, used for output naming
	Mode      string // "http" or "watch"
	FontSize  int    // 0 = configured default
	YOffset   int    // 0 = configured default
}

// Result describes a completed job.
type Result struct {
	OutputPath    string // captioned mp4 on disk
	Encoder       string
	WordCount     int
	VideoDuration float64
	DurationMs    int
	ResultURL     string // presigned URL when stored in S3
}

// Stats reports pipeline counters for /status and tests.
type Stats struct {
	Pending   int   `json:"pending"`
	Active    int   `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Options configures the pipeline.
type Options struct {
	Provider transcribe.Provider
	FFmpeg   *media.FFmpeg
	Caps     gpu.Caps

	FontPath     string
	FontsDir     string
	FontSize     int
	YOffset      int
	HWAccel      string
	VideoBitrate string
	SampleRate   int

	JobTimeout    time.Duration
	MaxConcurrent int
	Workers       int
	QueueSize     int

	// Optional fan-out targets; nil disables each.
	Hub      *events.Hub
	Notifier *notify.Publisher
	History  *history.DB
	Store    storage.ResultStore
	// StoreHTTPResults also saves HTTP-mode outputs to Store (S3 mode).
	StoreHTTPResults bool

	Log zerolog.Logger
}

// Pipeline runs caption jobs under a shared concurrency limit. HTTP uploads
// are admitted non-blocking (busy = reject); watch-mode jobs queue through
// the worker pool.
type Pipeline struct {
	opts  Options
	slots chan struct{}
	jobs  chan Job
	log   zerolog.Logger
	wg    sync.WaitGroup

	active    atomic.Int32
	completed atomic.Int64
	failed    atomic.Int64
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 30 * time.Minute
	}
	return &Pipeline{
		opts:  opts,
		slots: make(chan struct{}, opts.MaxConcurrent),
		jobs:  make(chan Job, opts.QueueSize),
		log:   opts.Log,
	}
}

// Busy reports whether any job is currently processing.
func (p *Pipeline) Busy() bool { return p.active.Load() > 0 }

// Stats returns current pipeline statistics.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Pending:   len(p.jobs),
		Active:    int(p.active.Load()),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}

// ProcessUpload runs one HTTP-mode job synchronously. Returns ErrBusy when
// every slot is taken, mirroring the original API's 429 behavior.
func (p *Pipeline) ProcessUpload(ctx context.Context, job Job) (*Result, error) {
	select {
	case p.slots <- struct{}{}:
	default:
		return nil, ErrBusy
	}
	defer func() { <-p.slots }()

	job.Mode = "http"
	return p.run(ctx, job)
}

// Enqueue adds a watch-mode job to the queue. Returns false if the queue is full.
func (p *Pipeline) Enqueue(j Job) bool {
	j.Mode = "watch"
	select {
	case p.jobs <- j:
		return true
	default:
		return false
	}
}

// Start launches the watch-mode worker goroutines.
func (p *Pipeline) Start() {
	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.log.Info().
		Int("workers", p.opts.Workers).
		Int("queue_size", p.opts.QueueSize).
		Int("max_concurrent", p.opts.MaxConcurrent).
		Msg("caption worker pool started")
}

// Stop signals workers to drain and waits for completion.
func (p *Pipeline) Stop() {
	close(p.jobs)
	p.wg.Wait()
	p.log.Info().
		Int64("completed", p.completed.Load()).
		Int64("failed", p.failed.Load()).
		Msg("caption worker pool stopped")
}

func (p *Pipeline) worker(id int) {
	defer p.wg.Done()
	log := p.log.With().Int("worker", id).Logger()

	for job := range p.jobs {
		// Watch-mode workers share the HTTP slots so total concurrency
		// stays bounded by MaxConcurrent.
		p.slots <- struct{}{}
		if err := p.processWatch(log, job); err != nil {
			log.Warn().Err(err).
				Str("job_id", job.ID).
				Str("file", job.Filename).
				Msg("caption job failed")
		}
		<-p.slots
	}
}
