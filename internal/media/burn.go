package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Encoder names for the burn step.
const (
	EncoderQSV      = "h264_qsv"
	EncoderVAAPI    = "h264_vaapi"
	EncoderSoftware = "libx264"
)

// renderDevice is the DRI node used for VAAPI encoding.
const renderDevice = "/dev/dri/renderD128"

// BurnOpts configures subtitle burn-in.
type BurnOpts struct {
	VideoPath    string // absolute input path
	SubtitleName string // bare filename of the SRT inside WorkDir
	OutputPath   string // absolute output path
	WorkDir      string // directory containing the subtitle file; ffmpeg runs here
	FontsDir     string
	FontName     string
	FontSize     int
	MarginV      int
	Encoder      string // EncoderQSV, EncoderVAAPI, or EncoderSoftware
	VideoBitrate string // empty = encoder default / crf
}

// ChooseEncoder maps the configured mode and probed GPU capability to an
// encoder name. "auto" prefers QSV, then VAAPI, then software.
func ChooseEncoder(mode string, qsv, vaapi bool) string {
	switch mode {
	case "off":
		return EncoderSoftware
	case "qsv":
		if qsv {
			return EncoderQSV
		}
		return EncoderSoftware
	case "vaapi":
		if vaapi {
			return EncoderVAAPI
		}
		return EncoderSoftware
	default: // auto
		if qsv {
			return EncoderQSV
		}
		if vaapi {
			return EncoderVAAPI
		}
		return EncoderSoftware
	}
}

// subtitleFilter builds the ffmpeg subtitles filter expression. The SRT is
// referenced by bare filename because ffmpeg runs inside WorkDir; the filter
// parser chokes on absolute paths with colons.
func subtitleFilter(opts BurnOpts) string {
	filter := fmt.Sprintf("subtitles=%s", opts.SubtitleName)
	if opts.FontsDir != "" {
		filter += ":fontsdir=" + opts.FontsDir
	}
	filter += fmt.Sprintf(":force_style='FontName=%s,FontSize=%d,MarginV=%d'",
		opts.FontName, opts.FontSize, opts.MarginV)
	return filter
}

// buildBurnArgs assembles the full ffmpeg argument list for one encoder.
func buildBurnArgs(opts BurnOpts, encoder string) []string {
	args := []string{"-hide_banner", "-y"}

	if encoder == EncoderVAAPI {
		args = append(args, "-vaapi_device", renderDevice)
	}

	args = append(args, "-i", opts.VideoPath)

	filter := subtitleFilter(opts)
	switch encoder {
	case EncoderQSV:
		filter += ",hwupload=extra_hw_frames=64,format=qsv"
	case EncoderVAAPI:
		filter += ",format=nv12,hwupload"
	}
	args = append(args, "-vf", filter, "-c:v", encoder)

	if opts.VideoBitrate != "" {
		args = append(args, "-b:v", opts.VideoBitrate)
	} else if encoder == EncoderSoftware {
		args = append(args, "-preset", "fast", "-crf", "23")
	}

	args = append(args, "-c:a", "copy", opts.OutputPath)
	return args
}

// BurnSubtitles renders the subtitle file into the video. A hardware encode
// failure is retried once with the software encoder; software failures are
// final. The output must exist and be non-empty.
func (f *FFmpeg) BurnSubtitles(ctx context.Context, opts BurnOpts) (string, error) {
	encoder := opts.Encoder
	if encoder == "" {
		encoder = EncoderSoftware
	}

	_, err := f.run.Run(ctx, opts.WorkDir, "ffmpeg", buildBurnArgs(opts, encoder)...)
	if err != nil && encoder != EncoderSoftware {
		f.log.Warn().Err(err).Str("encoder", encoder).Msg("hardware encode failed, retrying with software encoder")
		encoder = EncoderSoftware
		_, err = f.run.Run(ctx, opts.WorkDir, "ffmpeg", buildBurnArgs(opts, encoder)...)
	}
	if err != nil {
		return "", fmt.Errorf("burn subtitles: %w", err)
	}

	st, statErr := os.Stat(opts.OutputPath)
	if statErr != nil || st.Size() == 0 {
		return "", fmt.Errorf("burn subtitles: output file was not created")
	}

	f.log.Debug().Str("output", opts.OutputPath).Str("encoder", encoder).Msg("subtitles burned")
	return encoder, nil
}

// FontNameFromPath derives an ASS font family name from a font file path:
// "Lexend-Bold.ttf" becomes "Lexend Bold".
func FontNameFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(base, "-", " ")
}
