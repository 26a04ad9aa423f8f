// Package modelfetch downloads and unpacks a Vosk model archive on first
// start, replacing the wget+unzip step of a container build.
package modelfetch

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Ensure makes sure a model directory exists at path. If it is missing and
// url is non-empty, the zip archive at url is downloaded and extracted. The
// final rename is atomic so a crashed download never leaves a half-extracted
// model at path.
func Ensure(ctx context.Context, path, url string, log zerolog.Logger) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if url == "" {
		return fmt.Errorf("model directory %s does not exist and no download URL is configured", path)
	}

	log.Info().Str("url", url).Str("path", path).Msg("downloading model")
	start := time.Now()

	archive, err := download(ctx, url)
	if err != nil {
		return fmt.Errorf("downloading model: %w", err)
	}
	defer os.Remove(archive)

	staging := path + ".download"
	defer os.RemoveAll(staging)
	if err := extractZip(archive, staging); err != nil {
		return fmt.Errorf("extracting model: %w", err)
	}

	// Vosk archives contain a single top-level directory named after the
	// model; promote it to the target path.
	root, err := singleRoot(staging)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.Rename(root, path); err != nil {
		return fmt.Errorf("installing model: %w", err)
	}

	log.Info().Dur("elapsed", time.Since(start)).Str("path", path).Msg("model installed")
	return nil
}

// download fetches url to a temp file and returns its path.
func download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp("", "vosk-model-*.zip")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// extractZip unpacks the archive into dest, rejecting entries whose paths
// escape dest.
func extractZip(archive, dest string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	for _, f := range r.File {
		target, err := sanitizePath(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return fmt.Errorf("extracting %s: %w", f.Name, err)
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode().Perm()|0o400)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// sanitizePath joins name under dest and rejects traversal outside dest.
func sanitizePath(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes extraction directory", name)
	}
	return target, nil
}

// singleRoot returns the lone directory inside dir, or an error if the
// archive layout is unexpected.
func singleRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return "", fmt.Errorf("model archive should contain exactly one directory, found %d entries", len(entries))
	}
	return filepath.Join(dir, entries[0].Name()), nil
}
