package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ServerClient streams audio to a remote vosk-server over its websocket
// protocol. Useful when the model runs on another host or the binary is
// built without the cgo recognizer.
type ServerClient struct {
	url     string
	timeout time.Duration
	log     zerolog.Logger
}

// NewServerClient creates a client for the given ws:// URL.
func NewServerClient(url string, timeout time.Duration, log zerolog.Logger) *ServerClient {
	return &ServerClient{url: url, timeout: timeout, log: log}
}

// Name returns the provider name.
func (c *ServerClient) Name() string { return "vosk-server" }

// Model returns the remote endpoint; the server does not expose its model name.
func (c *ServerClient) Model() string { return c.url }

// Close is a no-op; connections are per-request.
func (c *ServerClient) Close() {}

// Transcribe streams the WAV's PCM payload to the server chunk by chunk.
// The server answers every chunk with either a partial or a final segment;
// only finals carry the word array.
func (c *ServerClient) Transcribe(ctx context.Context, wavPath string, opts Opts) (*Response, error) {
	f, info, err := openWav(wavPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial vosk-server %s: %w", c.url, err)
	}
	defer conn.Close()

	sampleRate := info.SampleRate
	if opts.SampleRate > 0 {
		sampleRate = opts.SampleRate
	}

	cfg := map[string]any{
		"config": map[string]any{
			"sample_rate": sampleRate,
			"words":       true,
		},
	}
	if err := conn.WriteJSON(cfg); err != nil {
		return nil, fmt.Errorf("send config: %w", err)
	}

	var words []Word
	buf := make([]byte, frameChunk*2)

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

		if err := conn.WriteMessage(websocket.BinaryMessage, chunk[:n]); err != nil {
			return nil, fmt.Errorf("send audio chunk: %w", err)
		}
		words, err = c.readSegment(conn, words)
		if err != nil {
			return nil, err
		}
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"eof" : 1}`)); err != nil {
		return nil, fmt.Errorf("send eof: %w", err)
	}
	words, err = c.readSegment(conn, words)
	if err != nil {
		return nil, err
	}

	return buildResponse(words), nil
}

// readSegment reads one server reply, collecting words from final segments
// and ignoring partials.
func (c *ServerClient) readSegment(conn *websocket.Conn, words []Word) ([]Word, error) {
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return words, fmt.Errorf("read server response: %w", err)
	}

	// Partial results look like {"partial": "..."} and carry no words.
	var probe struct {
		Partial *string `json:"partial"`
	}
	if err := json.Unmarshal(msg, &probe); err == nil && probe.Partial != nil {
		return words, nil
	}

	words, err = parseResult(string(msg), words)
	if err != nil {
		return words, fmt.Errorf("parse server result: %w", err)
	}
	return words, nil
}
