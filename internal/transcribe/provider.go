package transcribe

import "context"

// Provider is the interface for speech-to-text backends.
type Provider interface {
	// Transcribe recognizes speech in a WAV file (mono 16-bit PCM) and
	// returns the text with word-level timestamps.
	Transcribe(ctx context.Context, wavPath string, opts Opts) (*Response, error)
	Name() string  // "vosk", "vosk-server"
	Model() string // model identifier for logs/history
	Close()
}

// Opts are per-request transcription options.
type Opts struct {
	// SampleRate of the input audio. 0 means the provider default (16000).
	SampleRate int
}

// Response is the common transcription result from any provider.
type Response struct {
	Text  string
	Words []Word
}

// Word is a timestamped recognized word.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"` // seconds
	End   float64 `json:"end"`   // seconds
	Conf  float64 `json:"conf,omitempty"`
}
