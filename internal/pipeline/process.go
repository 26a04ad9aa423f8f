package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/history"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/media"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/metrics"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/storage"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/subtitle"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/transcribe"
)

// JobEvent is the payload published to the SSE hub and MQTT on completion
// or failure of a job.
type JobEvent struct {
	JobID         string  `json:"job_id"`
	Filename      string  `json:"filename"`
	Mode          string  `json:"mode"`
	Status        string  `json:"status"`
	Error         string  `json:"error,omitempty"`
	WordCount     int     `json:"word_count"`
	Encoder       string  `json:"encoder,omitempty"`
	DurationMs    int     `json:"duration_ms"`
	VideoDuration float64 `json:"video_duration"`
	ResultURL     string  `json:"result_url,omitempty"`
}

// run executes the full caption pipeline for one job and fans the outcome
// out to the hub, MQTT, and job history. The returned Result's OutputPath
// is a temp file the caller owns.
func (p *Pipeline) run(ctx context.Context, job Job) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.JobTimeout)
	defer cancel()

	log := p.log.With().
		Str("job_id", job.ID).
		Str("file", job.Filename).
		Str("mode", job.Mode).
		Logger()

	p.active.Add(1)
	start := time.Now()

	res, err := p.process(ctx, log, job)
	elapsed := time.Since(start)

	p.active.Add(-1)

	status := "completed"
	if err != nil {
		status = "failed"
		p.failed.Add(1)
	} else {
		p.completed.Add(1)
		res.DurationMs = int(elapsed.Milliseconds())
		if job.Mode == "http" && p.opts.StoreHTTPResults && p.opts.Store != nil {
			p.saveResult(log, job, res)
		}
	}
	metrics.JobsTotal.WithLabelValues(job.Mode, status).Inc()
	metrics.JobDuration.Observe(elapsed.Seconds())

	p.fanOut(job, res, err, elapsed)

	if err != nil {
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("caption job failed")
		return nil, err
	}
	log.Info().
		Dur("elapsed", elapsed).
		Int("words", res.WordCount).
		Str("encoder", res.Encoder).
		Msg("caption job completed")
	return res, nil
}

// process performs the stages: probe, extract audio, transcribe, write SRT,
// burn subtitles, verify output.
func (p *Pipeline) process(ctx context.Context, log zerolog.Logger, job Job) (*Result, error) {
	work, err := os.MkdirTemp("", "vosk-captions-*")
	if err != nil {
		return nil, fmt.Errorf("creating work directory: %w", err)
	}
	defer os.RemoveAll(work)

	probe, err := p.opts.FFmpeg.Probe(ctx, job.VideoPath)
	if err != nil {
		return nil, fmt.Errorf("probing video: %w", err)
	}
	if !probe.HasAudio {
		return nil, fmt.Errorf("video %s has no audio stream", job.Filename)
	}

	wavPath := filepath.Join(work, "audio.wav")
	stageStart := time.Now()
	if err := p.opts.FFmpeg.ExtractAudio(ctx, job.VideoPath, wavPath, p.opts.SampleRate); err != nil {
		return nil, fmt.Errorf("extracting audio: %w", err)
	}
	metrics.ObserveStage("extract", time.Since(stageStart))

	stageStart = time.Now()
	tr, err := p.opts.Provider.Transcribe(ctx, wavPath, transcribe.Opts{SampleRate: p.opts.SampleRate})
	if err != nil {
		return nil, fmt.Errorf("transcribing audio: %w", err)
	}
	metrics.ObserveStage("transcribe", time.Since(stageStart))
	if len(tr.Words) == 0 {
		return nil, fmt.Errorf("no words were transcribed from %s", job.Filename)
	}
	metrics.TranscribedWordsTotal.Add(float64(len(tr.Words)))
	log.Debug().Int("words", len(tr.Words)).Msg("transcription complete")

	cues := make([]subtitle.Cue, 0, len(tr.Words))
	for _, w := range tr.Words {
		cues = append(cues, subtitle.Cue{Start: w.Start, End: w.End, Text: w.Word})
	}
	const srtName = "subtitles.srt"
	if err := subtitle.WriteFile(filepath.Join(work, srtName), cues); err != nil {
		return nil, fmt.Errorf("writing subtitles: %w", err)
	}

	out, err := os.CreateTemp("", "captioned-*.mp4")
	if err != nil {
		return nil, fmt.Errorf("creating output file: %w", err)
	}
	outPath := out.Name()
	out.Close()

	fontSize := job.FontSize
	if fontSize <= 0 {
		fontSize = p.opts.FontSize
	}
	yOffset := job.YOffset
	if yOffset <= 0 {
		yOffset = p.opts.YOffset
	}

	encoder := media.ChooseEncoder(p.opts.HWAccel, p.opts.Caps.UsableQSV(), p.opts.Caps.UsableVAAPI())
	stageStart = time.Now()
	used, err := p.opts.FFmpeg.BurnSubtitles(ctx, media.BurnOpts{
		VideoPath:    job.VideoPath,
		SubtitleName: srtName,
		OutputPath:   outPath,
		WorkDir:      work,
		FontsDir:     p.opts.FontsDir,
		FontName:     media.FontNameFromPath(p.opts.FontPath),
		FontSize:     fontSize,
		MarginV:      yOffset,
		Encoder:      encoder,
		VideoBitrate: p.opts.VideoBitrate,
	})
	if err != nil {
		os.Remove(outPath)
		return nil, fmt.Errorf("burning subtitles: %w", err)
	}
	metrics.ObserveStage("burn", time.Since(stageStart))

	return &Result{
		OutputPath:    outPath,
		Encoder:       used,
		WordCount:     len(tr.Words),
		VideoDuration: probe.Duration,
	}, nil
}

// processWatch runs a queued job and moves the result into the store.
// The input file is removed on success.
func (p *Pipeline) processWatch(log zerolog.Logger, job Job) error {
	res, err := p.run(context.Background(), job)
	if err != nil {
		return err
	}
	defer os.Remove(res.OutputPath)

	if p.opts.Store == nil {
		return fmt.Errorf("no result store configured for watch mode")
	}
	key := storageKey(job, time.Now())
	if err := p.opts.Store.SaveFile(context.Background(), key, res.OutputPath); err != nil {
		return fmt.Errorf("storing result: %w", err)
	}
	if err := os.Remove(job.VideoPath); err != nil {
		log.Warn().Err(err).Str("path", job.VideoPath).Msg("failed to remove source video")
	}
	return nil
}

// saveResult copies an HTTP-mode output into the result store and attaches
// a retrieval URL. Failures are logged and do not fail the job; the caller
// still streams the local file back.
func (p *Pipeline) saveResult(log zerolog.Logger, job Job, res *Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	key := storageKey(job, time.Now())
	if err := p.opts.Store.SaveFile(ctx, key, res.OutputPath); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to save result to store")
		return
	}
	url, err := p.opts.Store.URL(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to build result URL")
		return
	}
	res.ResultURL = url
}

func storageKey(job Job, now time.Time) string {
	name := strings.TrimSuffix(job.Filename, filepath.Ext(job.Filename)) + "_captioned.mp4"
	return storage.ResultKey(job.ID, name, now)
}

// fanOut publishes the job outcome to every configured sink. All sinks are
// best-effort and never fail the job.
func (p *Pipeline) fanOut(job Job, res *Result, jobErr error, elapsed time.Duration) {
	ev := JobEvent{
		JobID:      job.ID,
		Filename:   job.Filename,
		Mode:       job.Mode,
		Status:     "completed",
		DurationMs: int(elapsed.Milliseconds()),
	}
	if jobErr != nil {
		ev.Status = "failed"
		ev.Error = jobErr.Error()
	} else {
		ev.WordCount = res.WordCount
		ev.Encoder = res.Encoder
		ev.VideoDuration = res.VideoDuration
		ev.ResultURL = res.ResultURL
	}

	if p.opts.Hub != nil {
		p.opts.Hub.Publish("job."+ev.Status, ev)
	}
	if p.opts.Notifier != nil {
		p.opts.Notifier.Publish(ev)
	}
	if p.opts.History != nil {
		row := history.JobRow{
			ID:            job.ID,
			Filename:      job.Filename,
			Mode:          job.Mode,
			Status:        ev.Status,
			Error:         ev.Error,
			DurationMs:    ev.DurationMs,
			VideoDuration: ev.VideoDuration,
			WordCount:     ev.WordCount,
			Model:         p.opts.Provider.Model(),
			Provider:      p.opts.Provider.Name(),
			Encoder:       ev.Encoder,
			ResultURL:     ev.ResultURL,
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.opts.History.Insert(ctx, &row); err != nil {
			p.log.Warn().Err(err).Str("job_id", job.ID).Msg("failed to record job history")
		}
	}
}
