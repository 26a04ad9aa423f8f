// Package watch monitors a drop directory for new video files and feeds
// them into the caption pipeline.
package watch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/pipeline"
)

// settleDelay is how long a file must be quiet before it is enqueued.
// Video drops are large; Create is followed by many Write events while the
// copy is in flight.
const settleDelay = 2 * time.Second

var videoExtensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
}

// IsVideoFile reports whether the filename has a supported video extension.
func IsVideoFile(name string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

// Status describes the watcher state for the health endpoint.
type Status struct {
	Status       string `json:"status"`
	WatchDir     string `json:"watch_dir"`
	FilesQueued  int64  `json:"files_queued"`
	FilesSkipped int64  `json:"files_skipped"`
}

// Watcher monitors a single directory for new video files.
type Watcher struct {
	pipe     *pipeline.Pipeline
	watchDir string
	log      zerolog.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}

	// Coalesce rapid Create+Write events on the same file. stopped is
	// set under the same lock so a settle timer firing during Stop
	// cannot enqueue into a pipeline that is shutting down.
	settleMu     sync.Mutex
	settleTimers map[string]*time.Timer
	stopped      bool

	filesQueued  atomic.Int64
	filesSkipped atomic.Int64
	status       atomic.Value // string: "starting", "watching", "stopped"
}

// New creates a watcher for dir. Jobs are enqueued on p.
func New(p *pipeline.Pipeline, dir string, log zerolog.Logger) *Watcher {
	w := &Watcher{
		pipe:         p,
		watchDir:     dir,
		log:          log.With().Str("component", "watcher").Logger(),
		done:         make(chan struct{}),
		settleTimers: make(map[string]*time.Timer),
	}
	w.status.Store("starting")
	return w
}

// Start begins watching. Video files already present in the directory are
// enqueued first so restarts do not strand pending drops.
func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.watchDir, 0o755); err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.watchDir); err != nil {
		fw.Close()
		return err
	}
	w.watcher = fw

	w.scanExisting()

	go w.watchLoop()
	w.status.Store("watching")
	w.log.Info().Str("watch_dir", w.watchDir).Msg("directory watcher started")
	return nil
}

// Stop closes the watcher and cancels pending settle timers.
func (w *Watcher) Stop() {
	w.status.Store("stopped")
	close(w.done)
	if w.watcher != nil {
		w.watcher.Close()
	}

	w.settleMu.Lock()
	w.stopped = true
	for path, t := range w.settleTimers {
		t.Stop()
		delete(w.settleTimers, path)
	}
	w.settleMu.Unlock()

	w.log.Info().
		Int64("files_queued", w.filesQueued.Load()).
		Int64("files_skipped", w.filesSkipped.Load()).
		Msg("directory watcher stopped")
}

// Status returns the current watcher state.
func (w *Watcher) Status() Status {
	s, _ := w.status.Load().(string)
	return Status{
		Status:       s,
		WatchDir:     w.watchDir,
		FilesQueued:  w.filesQueued.Load(),
		FilesSkipped: w.filesSkipped.Load(),
	}
}

// scanExisting enqueues video files left over from a previous run.
func (w *Watcher) scanExisting() {
	entries, err := os.ReadDir(w.watchDir)
	if err != nil {
		w.log.Warn().Err(err).Msg("failed to scan watch directory")
		return
	}
	for _, e := range entries {
		if e.IsDir() || !IsVideoFile(e.Name()) {
			continue
		}
		w.enqueue(filepath.Join(w.watchDir, e.Name()))
	}
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !IsVideoFile(event.Name) {
				continue
			}
			w.scheduleEnqueue(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

// scheduleEnqueue delays enqueueing until the file has been quiet for
// settleDelay. Each new event on the same path resets the timer.
func (w *Watcher) scheduleEnqueue(path string) {
	w.settleMu.Lock()
	defer w.settleMu.Unlock()

	if t, ok := w.settleTimers[path]; ok {
		t.Reset(settleDelay)
		return
	}

	w.settleTimers[path] = time.AfterFunc(settleDelay, func() {
		w.settleMu.Lock()
		delete(w.settleTimers, path)
		w.settleMu.Unlock()

		w.enqueue(path)
	})
}

// enqueue hands path to the pipeline. It holds settleMu for the whole
// call so Stop cannot race a late settle timer past a closed queue.
func (w *Watcher) enqueue(path string) {
	w.settleMu.Lock()
	defer w.settleMu.Unlock()
	if w.stopped {
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		w.filesSkipped.Add(1)
		return
	}

	job := pipeline.Job{
		ID:        uuid.NewString(),
		VideoPath: path,
		Filename:  filepath.Base(path),
	}
	if !w.pipe.Enqueue(job) {
		w.filesSkipped.Add(1)
		w.log.Warn().Str("file", job.Filename).Msg("queue full, dropping file")
		return
	}
	w.filesQueued.Add(1)
	w.log.Info().Str("file", job.Filename).Str("job_id", job.ID).Msg("queued video for captioning")
}
