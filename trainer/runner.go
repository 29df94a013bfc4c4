package trainer

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/DaniruKun/yolotrain/logging"
)

const DefaultExecutable = "yolo"

// ErrNotInstalled is returned when the trainer executable cannot be found
var ErrNotInstalled = errors.New("Ultralytics is required. Install it with `pip install ultralytics`")

// Result is what a finished training run reports back
type Result struct {
	SaveDir string
	Metrics []Metric
}

// Trainer runs one training job to completion
type Trainer interface {
	// Available reports ErrNotInstalled when the trainer cannot be started
	Available() error
	Train(ctx context.Context, config Config) (*Result, error)
}

// Runner drives the Ultralytics command-line trainer as a child process
type Runner struct {
	Executable string        // Path or name looked up on PATH
	Dir        string        // Working directory of the child, defaults to ours
	Stdout     io.Writer     // Receives the trainer's stdout
	Stderr     io.Writer     // Receives the trainer's stderr
	StopGrace  time.Duration // Time between interrupt and kill on cancellation
}

func NewRunner(executable string) *Runner {
	if executable == "" {
		executable = DefaultExecutable
	}
	return &Runner{
		Executable: executable,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		StopGrace:  30 * time.Second,
	}
}

func (r *Runner) lookPath() (string, error) {
	path, err := exec.LookPath(r.Executable)
	if err != nil {
		logging.Debug("Trainer executable not found", logging.Trainer, "executable", r.Executable, "error", err)
		return "", ErrNotInstalled
	}
	return path, nil
}

func (r *Runner) Available() error {
	_, err := r.lookPath()
	return err
}

func (r *Runner) Train(ctx context.Context, config Config) (*Result, error) {
	path, err := r.lookPath()
	if err != nil {
		return nil, err
	}

	stdoutWatcher, stderrWatcher := &saveDirWatcher{}, &saveDirWatcher{}
	cmd := exec.CommandContext(ctx, path, config.CommandLine()...)
	cmd.Dir = r.Dir
	cmd.Stdout = io.MultiWriter(orDiscard(r.Stdout), stdoutWatcher)
	cmd.Stderr = io.MultiWriter(orDiscard(r.Stderr), stderrWatcher)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = r.StopGrace

	logging.Debug("Starting trainer", logging.Trainer, "path", path, "args", cmd.Args[1:])
	started := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "training interrupted")
		}
		return nil, errors.Wrap(err, "training failed")
	}
	stdoutWatcher.flush()
	stderrWatcher.flush()

	saveDir := stdoutWatcher.SaveDir()
	if saveDir == "" {
		saveDir = stderrWatcher.SaveDir()
	}
	reported := saveDir != ""
	if !reported {
		saveDir = filepath.Join(config.Project, config.Name)
	}
	if !filepath.IsAbs(saveDir) && r.Dir != "" {
		saveDir = filepath.Join(r.Dir, saveDir)
	}
	resultsFile := filepath.Join(saveDir, ResultsFile)

	if !reported && !config.ExistOK && !writtenSince(resultsFile, started) {
		logging.Warn("Trainer did not report a save directory and no fresh results were found", logging.Trainer, "checked", saveDir)
		return &Result{}, nil
	}

	result := &Result{SaveDir: saveDir}
	metrics, err := ReadMetrics(resultsFile)
	if err != nil {
		logging.Warn("No metrics found for run", logging.Trainer, "dir", saveDir, "error", err)
		return result, nil
	}
	result.Metrics = metrics
	return result, nil
}

// Reports whether `path` was modified at or after `t`, at one second resolution
func writtenSince(path string, t time.Time) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.ModTime().Before(t.Truncate(time.Second))
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

var (
	ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)
	savedTo    = regexp.MustCompile(`Results saved to (.+)$`)
)

// Watches one output stream for the line naming the run directory.
// Each stream needs its own watcher so partial lines never interleave.
type saveDirWatcher struct {
	mu      sync.Mutex
	pending []byte
	dir     string
}

func (w *saveDirWatcher) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexAny(w.pending, "\r\n")
		if i < 0 {
			break
		}
		w.scan(w.pending[:i])
		w.pending = w.pending[i+1:]
	}
	return len(p), nil
}

func (w *saveDirWatcher) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) > 0 {
		w.scan(w.pending)
		w.pending = nil
	}
}

func (w *saveDirWatcher) scan(line []byte) {
	clean := ansiEscape.ReplaceAllString(string(line), "")
	if m := savedTo.FindStringSubmatch(strings.TrimSpace(clean)); m != nil {
		w.dir = strings.TrimSpace(m[1])
	}
}

func (w *saveDirWatcher) SaveDir() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dir
}
