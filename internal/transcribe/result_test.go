package transcribe

import (
	"testing"
)

func TestParseResult(t *testing.T) {
	raw := `{
		"result": [
			{"conf": 1.0, "start": 0.33, "end": 0.81, "word": "hello"},
			{"conf": 0.97, "start": 0.84, "end": 1.20, "word": "world"}
		],
		"text": "hello world"
	}`

	words, err := parseResult(raw, nil)
	if err != nil {
		t.Fatalf("parseResult: %v", err)
	}
	if len(words) != 2 {
		t.Fatalf("got %d words, want 2", len(words))
	}
	if words[0].Word != "hello" || words[0].Start != 0.33 || words[0].End != 0.81 {
		t.Errorf("words[0] = %+v", words[0])
	}
	if words[1].Word != "world" || words[1].Conf != 0.97 {
		t.Errorf("words[1] = %+v", words[1])
	}
}

func TestParseResultSilence(t *testing.T) {
	// A silent segment has text but no result array.
	words, err := parseResult(`{"text": ""}`, nil)
	if err != nil {
		t.Fatalf("parseResult: %v", err)
	}
	if len(words) != 0 {
		t.Errorf("got %d words from silence, want 0", len(words))
	}
}

func TestParseResultAccumulates(t *testing.T) {
	words, err := parseResult(`{"result": [{"start": 0, "end": 1, "word": "one"}]}`, nil)
	if err != nil {
		t.Fatalf("first segment: %v", err)
	}
	words, err = parseResult(`{"result": [{"start": 1, "end": 2, "word": "two"}]}`, words)
	if err != nil {
		t.Fatalf("second segment: %v", err)
	}
	if len(words) != 2 || words[1].Word != "two" {
		t.Errorf("accumulated words = %+v", words)
	}
}

func TestParseResultInvalidJSON(t *testing.T) {
	if _, err := parseResult(`{not json`, nil); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestBuildResponse(t *testing.T) {
	resp := buildResponse([]Word{
		{Word: "good", Start: 0, End: 0.4},
		{Word: "morning", Start: 0.5, End: 1.1},
	})
	if resp.Text != "good morning" {
		t.Errorf("Text = %q, want %q", resp.Text, "good morning")
	}
	if len(resp.Words) != 2 {
		t.Errorf("len(Words) = %d, want 2", len(resp.Words))
	}
}

func TestBuildResponseEmpty(t *testing.T) {
	resp := buildResponse(nil)
	if resp.Text != "" {
		t.Errorf("Text = %q, want empty", resp.Text)
	}
	if len(resp.Words) != 0 {
		t.Errorf("len(Words) = %d, want 0", len(resp.Words))
	}
}
