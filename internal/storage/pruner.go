package storage

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// OutputPruner evicts old files from the local output directory. Captioned
// videos are delivery artifacts, not archives; consumers are expected to
// collect them before the retention window closes.
type OutputPruner struct {
	outputDir string
	retention time.Duration
	interval  time.Duration
	log       zerolog.Logger
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewOutputPruner creates a pruner that removes outputs older than retention.
func NewOutputPruner(outputDir string, retention time.Duration, log zerolog.Logger) *OutputPruner {
	return &OutputPruner{
		outputDir: outputDir,
		retention: retention,
		interval:  1 * time.Hour,
		log:       log.With().Str("component", "output-pruner").Logger(),
		stop:      make(chan struct{}),
	}
}

func (p *OutputPruner) Start() {
	go p.loop()
}

func (p *OutputPruner) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *OutputPruner) loop() {
	// Run once on startup to clear any backlog from downtime
	p.prune()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.prune()
		case <-p.stop:
			return
		}
	}
}

func (p *OutputPruner) prune() {
	if p.retention == 0 {
		return
	}

	cutoff := time.Now().Add(-p.retention)
	var prunedCount int
	var prunedBytes int64

	err := filepath.WalkDir(p.outputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			p.log.Warn().Err(err).Str("path", path).Msg("prune failed")
			return nil
		}
		prunedCount++
		prunedBytes += info.Size()
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		p.log.Warn().Err(err).Msg("output prune walk failed")
	}

	if prunedCount > 0 {
		p.log.Info().
			Int("files", prunedCount).
			Int64("bytes", prunedBytes).
			Msg("old outputs pruned")
	}

	p.removeEmptyDirs()
}

// removeEmptyDirs clears out date directories whose contents were pruned.
func (p *OutputPruner) removeEmptyDirs() {
	entries, err := os.ReadDir(p.outputDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(p.outputDir, e.Name())
		// Remove fails on non-empty directories, which is what we want.
		_ = os.Remove(dir)
	}
}
