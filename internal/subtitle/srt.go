// Package subtitle generates SRT subtitle files from word timings.
package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Cue is a single subtitle entry.
type Cue struct {
	Start float64 // seconds
	End   float64 // seconds
	Text  string
}

// minCueDuration widens zero-length cues so the subtitles filter renders them.
const minCueDuration = 0.05

// FormatTime converts seconds to the SRT timestamp format HH:MM:SS,mmm.
func FormatTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60
	millis := int((seconds - float64(int(seconds))) * 1000)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// Normalize clamps cue times and enforces the minimum duration.
func Normalize(cues []Cue) []Cue {
	out := make([]Cue, len(cues))
	for i, c := range cues {
		if c.Start < 0 {
			c.Start = 0
		}
		if c.End < c.Start+minCueDuration {
			c.End = c.Start + minCueDuration
		}
		out[i] = c
	}
	return out
}

// Write emits cues in SRT format. Indices start at 1; each block is the
// index line, the timing line, the text, and a blank line.
func Write(w io.Writer, cues []Cue) error {
	bw := bufio.NewWriter(w)
	for i, c := range Normalize(cues) {
		fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n",
			i+1, FormatTime(c.Start), FormatTime(c.End), c.Text)
	}
	return bw.Flush()
}

// WriteFile writes cues to an SRT file.
func WriteFile(path string, cues []Cue) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create subtitle file: %w", err)
	}
	if err := Write(f, cues); err != nil {
		f.Close()
		return fmt.Errorf("write subtitle file: %w", err)
	}
	return f.Close()
}
