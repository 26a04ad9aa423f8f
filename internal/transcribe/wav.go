package transcribe

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// wavInfo describes the PCM stream inside a WAV file.
type wavInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
	DataLen    int64 // bytes of PCM data
}

// frameChunk is how many frames are fed to the recognizer per call.
// 4000 frames of 16-bit mono audio = 8000 bytes, a quarter second at 16kHz.
const frameChunk = 4000

// openWav opens a WAV file, validates the header, and positions the reader
// at the start of the PCM data. The recognizer requires mono 16-bit PCM.
func openWav(path string) (*os.File, wavInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wavInfo{}, fmt.Errorf("open wav: %w", err)
	}

	info, err := parseWavHeader(f)
	if err != nil {
		f.Close()
		return nil, wavInfo{}, err
	}

	if info.Channels != 1 || info.BitDepth != 16 {
		f.Close()
		return nil, wavInfo{}, fmt.Errorf(
			"audio must be WAV mono 16-bit PCM, got %d channels %d-bit", info.Channels, info.BitDepth)
	}

	return f, info, nil
}

// parseWavHeader reads RIFF/WAVE chunks until the data chunk, leaving r
// positioned at the PCM payload.
func parseWavHeader(r io.ReadSeeker) (wavInfo, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return wavInfo{}, fmt.Errorf("read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return wavInfo{}, fmt.Errorf("not a WAV file")
	}

	var info wavInfo
	sawFmt := false

	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return wavInfo{}, fmt.Errorf("read chunk header: %w", err)
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return wavInfo{}, fmt.Errorf("fmt chunk too small: %d bytes", size)
			}
			var fmtBody [16]byte
			if _, err := io.ReadFull(r, fmtBody[:]); err != nil {
				return wavInfo{}, fmt.Errorf("read fmt chunk: %w", err)
			}
			audioFormat := binary.LittleEndian.Uint16(fmtBody[0:2])
			if audioFormat != 1 {
				return wavInfo{}, fmt.Errorf("unsupported audio format %d: must be uncompressed PCM", audioFormat)
			}
			info.Channels = int(binary.LittleEndian.Uint16(fmtBody[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(fmtBody[4:8]))
			info.BitDepth = int(binary.LittleEndian.Uint16(fmtBody[14:16]))
			sawFmt = true
			// Skip any fmt extension bytes
			if size > 16 {
				if _, err := r.Seek(int64(size-16), io.SeekCurrent); err != nil {
					return wavInfo{}, err
				}
			}
		case "data":
			if !sawFmt {
				return wavInfo{}, fmt.Errorf("data chunk before fmt chunk")
			}
			info.DataLen = int64(size)
			return info, nil
		default:
			// Chunks are word-aligned; odd sizes have a pad byte.
			skip := int64(size)
			if size%2 == 1 {
				skip++
			}
			if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
				return wavInfo{}, err
			}
		}
	}
}
