package transcribe

import (
	"encoding/json"
	"strings"
)

// recognizerResult is the JSON emitted by a Vosk recognizer for a final
// segment: the recognized text plus, when word output is enabled, one entry
// per word with timestamps and confidence.
type recognizerResult struct {
	Text   string `json:"text"`
	Result []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Conf  float64 `json:"conf"`
	} `json:"result"`
}

// parseResult decodes one recognizer result and appends its words.
// Segments without a result array (silence, partials) contribute nothing.
func parseResult(raw string, words []Word) ([]Word, error) {
	var r recognizerResult
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return words, err
	}
	for _, w := range r.Result {
		words = append(words, Word{
			Word:  w.Word,
			Start: w.Start,
			End:   w.End,
			Conf:  w.Conf,
		})
	}
	return words, nil
}

// buildResponse assembles the provider response from accumulated words.
// Text is joined from word tokens; Vosk emits lowercase unpunctuated words,
// so the join is lossless.
func buildResponse(words []Word) *Response {
	tokens := make([]string, len(words))
	for i, w := range words {
		tokens[i] = w.Word
	}
	return &Response{
		Text:  strings.Join(tokens, " "),
		Words: words,
	}
}
