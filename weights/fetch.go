package weights

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/DaniruKun/yolotrain/logging"
	"github.com/DaniruKun/yolotrain/utils"
)

const (
	// DefaultURLTemplate is formatted with the canonical checkpoint filename
	DefaultURLTemplate = "https://huggingface.co/ultralytics/yolo11/resolve/main/%s?download=1"
	// MinCheckpointSize is the smallest byte count accepted as a real checkpoint
	MinCheckpointSize = 1024
	DefaultTimeout    = 10 * time.Minute
)

type Fetcher struct {
	Client      *http.Client
	URLTemplate string // fmt template with a single %s for the filename
	MinSize     int64
}

func NewFetcher(urlTemplate string, timeout time.Duration) *Fetcher {
	if urlTemplate == "" {
		urlTemplate = DefaultURLTemplate
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		Client:      &http.Client{Timeout: timeout},
		URLTemplate: urlTemplate,
		MinSize:     MinCheckpointSize,
	}
}

// URL returns the download location for a canonical checkpoint name
func (f *Fetcher) URL(name string) string {
	return fmt.Sprintf(f.URLTemplate, name)
}

// Ensure returns the local path of the checkpoint named by `modelPath`,
// downloading it first when it is not on disk.
func (f *Fetcher) Ensure(ctx context.Context, cwd, modelPath string) (string, error) {
	target, err := Resolve(cwd, modelPath)
	if err != nil {
		return "", err
	}
	if utils.Exists(target) {
		logging.Debug("Checkpoint found locally", logging.Checkpoint, "path", target)
		return target, nil
	}

	name := filepath.Base(target)
	url := f.URL(name)
	logging.Info(fmt.Sprintf("Checkpoint '%s' not found locally. Downloading", name), logging.Checkpoint, "url", url)

	n, err := f.download(ctx, url, target)
	if err != nil {
		os.Remove(target)
		return "", errors.Wrapf(err, "failed to download %s. Download manually and re-run", name)
	}

	if n < f.MinSize {
		os.Remove(target)
		return "", errors.Errorf("downloaded file for %s is unexpectedly small (%d bytes). Check the filename and try again", name, n)
	}

	logging.Info("Downloaded checkpoint", logging.Checkpoint, "path", target, "bytes", n)
	return target, nil
}

func (f *Fetcher) download(ctx context.Context, url, target string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, errors.Errorf("unexpected status %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}

	dst, err := os.Create(target)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(dst, resp.Body)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	return n, err
}
