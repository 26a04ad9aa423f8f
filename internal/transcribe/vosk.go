package transcribe

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	vosk "github.com/alphacep/vosk-api/go"
	"github.com/rs/zerolog"
)

// Engine runs Vosk speech recognition in-process against a model loaded
// once at startup. A fresh recognizer is created per request; the model
// itself is safe for concurrent recognizers.
type Engine struct {
	model     *vosk.VoskModel
	modelName string
	log       zerolog.Logger
}

// NewEngine loads the Vosk model from modelPath. Loading a large model can
// take several seconds and significant memory; call once at startup.
func NewEngine(modelPath string, log zerolog.Logger) (*Engine, error) {
	vosk.SetLogLevel(-1)

	model, err := vosk.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load vosk model %q: %w", modelPath, err)
	}

	log.Info().Str("model", modelPath).Msg("vosk model loaded")
	return &Engine{
		model:     model,
		modelName: filepath.Base(modelPath),
		log:       log,
	}, nil
}

// Name returns the provider name.
func (e *Engine) Name() string { return "vosk" }

// Model returns the model directory name.
func (e *Engine) Model() string { return e.modelName }

// Close releases the model.
func (e *Engine) Close() {
	e.model.Free()
}

// Transcribe recognizes speech in a mono 16-bit PCM WAV file and returns
// word-level timings.
func (e *Engine) Transcribe(ctx context.Context, wavPath string, opts Opts) (*Response, error) {
	f, info, err := openWav(wavPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sampleRate := info.SampleRate
	if opts.SampleRate > 0 && opts.SampleRate != sampleRate {
		return nil, fmt.Errorf("wav sample rate %d does not match expected %d", sampleRate, opts.SampleRate)
	}

	rec, err := vosk.NewRecognizer(e.model, float64(sampleRate))
	if err != nil {
		return nil, fmt.Errorf("create recognizer: %w", err)
	}
	defer rec.Free()
	rec.SetWords(1)

	var words []Word
	buf := make([]byte, frameChunk*2) // 16-bit samples

	remaining := info.DataLen
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chunk := buf
		if remaining < int64(len(buf)) {
			chunk = buf[:remaining]
		}
		n, err := io.ReadFull(f, chunk)
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			remaining = int64(n)
		} else if err != nil {
			return nil, fmt.Errorf("read pcm data: %w", err)
		}
		if n == 0 {
			break
		}
		remaining -= int64(n)

		if rec.AcceptWaveform(chunk[:n]) != 0 {
			words, err = parseResult(rec.Result(), words)
			if err != nil {
				return nil, fmt.Errorf("parse recognizer result: %w", err)
			}
		}
	}

	words, err = parseResult(rec.FinalResult(), words)
	if err != nil {
		return nil, fmt.Errorf("parse final result: %w", err)
	}

	return buildResponse(words), nil
}
