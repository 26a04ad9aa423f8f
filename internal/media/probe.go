package media

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// ProbeResult describes the container and streams of a media file.
type ProbeResult struct {
	Duration float64 // seconds
	Width    int
	Height   int
	HasAudio bool
	HasVideo bool
}

// ffprobeOutput matches the JSON from `ffprobe -print_format json`.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// Probe inspects a media file with ffprobe.
func (f *FFmpeg) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	out, err := f.run.Run(ctx, "", "ffprobe",
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbeOutput(out)
}

func parseProbeOutput(out string) (*ProbeResult, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	res := &ProbeResult{}
	if raw.Format.Duration != "" {
		d, err := strconv.ParseFloat(raw.Format.Duration, 64)
		if err != nil {
			return nil, fmt.Errorf("parse duration %q: %w", raw.Format.Duration, err)
		}
		res.Duration = d
	}

	for _, s := range raw.Streams {
		switch s.CodecType {
		case "audio":
			res.HasAudio = true
		case "video":
			res.HasVideo = true
			if s.Width > 0 {
				res.Width = s.Width
				res.Height = s.Height
			}
		}
	}

	return res, nil
}
