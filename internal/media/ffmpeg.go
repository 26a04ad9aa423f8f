package media

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// FFmpeg runs ffmpeg/ffprobe operations through a Runner.
type FFmpeg struct {
	run Runner
	log zerolog.Logger
}

// New creates an FFmpeg wrapper.
func New(run Runner, log zerolog.Logger) *FFmpeg {
	return &FFmpeg{run: run, log: log}
}

// ExtractAudio extracts the audio track as 16kHz mono 16-bit PCM WAV,
// the format the recognizer requires.
func (f *FFmpeg) ExtractAudio(ctx context.Context, videoPath, wavPath string, sampleRate int) error {
	args := []string{
		"-hide_banner",
		"-y",
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", sampleRate),
		wavPath,
	}

	if _, err := f.run.Run(ctx, "", "ffmpeg", args...); err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}
	if _, err := os.Stat(wavPath); err != nil {
		return fmt.Errorf("extract audio: output not created: %w", err)
	}

	f.log.Debug().Str("video", videoPath).Str("wav", wavPath).Msg("audio extracted")
	return nil
}
