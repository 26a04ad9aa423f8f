// Package gpu probes Intel GPU hardware acceleration for ffmpeg.
package gpu

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// runner executes external commands (satisfied by media.ExecRunner).
type runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (string, error)
}

const renderDevice = "/dev/dri/renderD128"

// intelEnvDefaults are applied to the process environment when unset, so
// ffmpeg child processes pick up the Intel media driver configuration.
var intelEnvDefaults = map[string]string{
	"LIBVA_DRIVER_NAME":   "iHD",
	"LIBVA_DRIVERS_PATH":  "/usr/lib/x86_64-linux-gnu/dri",
	"INTEL_GPU_MIN_FREQ":  "0",
	"INTEL_GPU_MAX_FREQ":  "2100",
	"INTEL_MEDIA_RUNTIME": "/usr/lib/x86_64-linux-gnu/dri",
	"MFX_IMPL_BASEDIR":    "/usr/lib/x86_64-linux-gnu",

	"FFMPEG_QSV_RUNTIME":        "/usr/lib/x86_64-linux-gnu",
	"INTEL_MEDIA_DRIVER_IOCTLS": "1",
}

// Caps reports the probed hardware acceleration capabilities.
type Caps struct {
	RenderDevice bool `json:"render_device"`
	VAAPI        bool `json:"vaapi"`
	H264         bool `json:"h264"`
	HEVC         bool `json:"hevc"`
	AV1          bool `json:"av1"`
	QSVEncoder   bool `json:"qsv_encoder"`
	VAAPIEncoder bool `json:"vaapi_encoder"`
}

// ApplyEnv sets the Intel driver environment defaults for any value not
// already present, leaving operator-provided values alone.
func ApplyEnv(log zerolog.Logger) {
	for k, v := range intelEnvDefaults {
		if _, ok := os.LookupEnv(k); ok {
			continue
		}
		os.Setenv(k, v)
		log.Debug().Str("var", k).Str("value", v).Msg("intel env default applied")
	}
}

// Probe inspects the render device, VA-API, and ffmpeg encoder support.
// Probing is best-effort: a missing vainfo or a timeout leaves VAAPI
// capability unknown rather than failing, since QSV may still work.
func Probe(ctx context.Context, run runner, log zerolog.Logger) Caps {
	var caps Caps

	if _, err := os.Stat(renderDevice); err != nil {
		log.Warn().Str("device", renderDevice).Msg("no GPU render device found, hardware encoding unavailable")
		return caps
	}
	caps.RenderDevice = true

	vaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	out, err := run.Run(vaCtx, "", "vainfo", "--display", "drm", "--device", renderDevice)
	if err != nil {
		// vainfo missing or failing does not rule out QSV.
		log.Warn().Err(err).Msg("vainfo probe failed, GPU may still work via QSV")
	} else {
		caps.VAAPI = true
		caps.H264, caps.HEVC, caps.AV1 = parseVAInfo(out)
		log.Info().
			Bool("h264", caps.H264).
			Bool("hevc", caps.HEVC).
			Bool("av1", caps.AV1).
			Msg("VA-API support confirmed")
	}

	encCtx, cancel2 := context.WithTimeout(ctx, 10*time.Second)
	defer cancel2()
	encOut, err := run.Run(encCtx, "", "ffmpeg", "-hide_banner", "-encoders")
	if err != nil {
		log.Warn().Err(err).Msg("ffmpeg encoder scan failed")
	} else {
		caps.QSVEncoder, caps.VAAPIEncoder = parseEncoders(encOut)
	}

	return caps
}

// parseVAInfo scans vainfo output for codec entrypoints.
func parseVAInfo(out string) (h264, hevc, av1 bool) {
	h264 = strings.Contains(out, "H264")
	hevc = strings.Contains(out, "HEVC")
	av1 = strings.Contains(out, "AV1")
	return
}

// parseEncoders scans `ffmpeg -encoders` output for the Intel encoders.
func parseEncoders(out string) (qsv, vaapi bool) {
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "h264_qsv") {
			qsv = true
		}
		if strings.Contains(line, "h264_vaapi") {
			vaapi = true
		}
	}
	return
}

// UsableQSV reports whether QSV encoding should be attempted.
func (c Caps) UsableQSV() bool { return c.RenderDevice && c.QSVEncoder }

// UsableVAAPI reports whether VAAPI encoding should be attempted.
func (c Caps) UsableVAAPI() bool { return c.RenderDevice && c.VAAPI && c.VAAPIEncoder }

// Summary is a short status string for /status and health output.
func (c Caps) Summary() string {
	switch {
	case c.UsableQSV():
		return "qsv"
	case c.UsableVAAPI():
		return "vaapi"
	case c.RenderDevice:
		return "device_only"
	default:
		return "none"
	}
}
