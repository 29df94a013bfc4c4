package trainer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Writes an executable shell script standing in for the yolo CLI
func fakeYolo(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "yolo")
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestSaveDirWatcher(t *testing.T) {
	w := &saveDirWatcher{}
	w.Write([]byte("Epoch 1/2 ... 50%\r"))
	w.Write([]byte("Validating runs/train/x/weights/best.pt...\nResults saved to \x1b[1mruns/tr"))
	w.Write([]byte("ain/yolov11-merged2\x1b[0m\n"))
	assert.Equal(t, "runs/train/yolov11-merged2", w.SaveDir())

	w.Write([]byte("Results saved to /abs/run"))
	w.flush()
	assert.Equal(t, "/abs/run", w.SaveDir())
}

func TestSaveDirWatchersKeepStreamsApart(t *testing.T) {
	stdout, stderr := &saveDirWatcher{}, &saveDirWatcher{}
	stdout.Write([]byte("Results saved to \x1b[1mruns/detect/yolov11-mer"))
	stderr.Write([]byte("  1/50  2.1G  1.23: 100%|####|\r"))
	stdout.Write([]byte("ged3\x1b[0m\n"))
	stderr.Write([]byte("  2/50  2.1G  1.10:  40%|##  |"))
	stdout.flush()
	stderr.flush()

	assert.Equal(t, "runs/detect/yolov11-merged3", stdout.SaveDir())
	assert.Empty(t, stderr.SaveDir())
}

func TestRunnerInterleavedOutput(t *testing.T) {
	work := t.TempDir()
	yolo := fakeYolo(t, `
mkdir -p runs/detect/yolov11-merged3
printf 'epoch,fitness\n1,0.9\n' > runs/detect/yolov11-merged3/results.csv
printf 'Results saved to runs/detect/yolov11-mer'
printf '  1/50  2.1G  1.23: 100%%|####|\r' >&2
sleep 0.2
printf 'ged3\n'
printf '  2/50  2.1G  1.10:  40%%|##  |' >&2
`)

	r := NewRunner(yolo)
	r.Dir = work
	r.Stdout, r.Stderr = nil, nil

	res, err := r.Train(context.Background(), baseConfig())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(work, "runs", "detect", "yolov11-merged3"), res.SaveDir)
	assert.Equal(t, []Metric{{"epoch", 1}, {"fitness", 0.9}}, res.Metrics)
}

func TestRunnerIgnoresStaleFallbackResults(t *testing.T) {
	work := t.TempDir()
	stale := filepath.Join(work, "runs", "train", "yolov11-merged", ResultsFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("epoch,fitness\n40,0.8\n"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	r := NewRunner(fakeYolo(t, "exit 0"))
	r.Dir = work
	r.Stdout, r.Stderr = nil, nil

	res, err := r.Train(context.Background(), baseConfig())
	require.NoError(t, err)
	assert.Empty(t, res.SaveDir)
	assert.Empty(t, res.Metrics)

	cfg := baseConfig()
	cfg.ExistOK = true
	res, err = r.Train(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, filepath.Dir(stale), res.SaveDir)
	assert.Equal(t, []Metric{{"epoch", 40}, {"fitness", 0.8}}, res.Metrics)
}

func TestRunnerTrain(t *testing.T) {
	work := t.TempDir()
	argsFile := filepath.Join(work, "args.txt")
	yolo := fakeYolo(t, `
printf '%s\n' "$@" > "`+argsFile+`"
mkdir -p out/run7
printf 'epoch,metrics/mAP50(B)\n1,0.25\n2,0.5\n' > out/run7/results.csv
echo "Results saved to out/run7" >&2
`)

	var stdout, stderr bytes.Buffer
	r := NewRunner(yolo)
	r.Dir = work
	r.Stdout = &stdout
	r.Stderr = &stderr

	cfg := baseConfig()
	cfg.Resume = true
	res, err := r.Train(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(work, "out", "run7"), res.SaveDir)
	assert.Equal(t, []Metric{{"epoch", 2}, {"metrics/mAP50(B)", 0.5}}, res.Metrics)
	assert.Contains(t, stderr.String(), "Results saved to out/run7")

	raw, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	args := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Equal(t, cfg.CommandLine(), args)
	assert.Contains(t, args, "resume=True")
}

func TestRunnerFallsBackToProjectName(t *testing.T) {
	work := t.TempDir()
	yolo := fakeYolo(t, `mkdir -p runs/train/yolov11-merged
printf 'epoch,fitness\n1,0.7\n' > runs/train/yolov11-merged/results.csv`)

	r := NewRunner(yolo)
	r.Dir = work
	r.Stdout, r.Stderr = nil, nil

	res, err := r.Train(context.Background(), baseConfig())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(work, "runs", "train", "yolov11-merged"), res.SaveDir)
	assert.Equal(t, []Metric{{"epoch", 1}, {"fitness", 0.7}}, res.Metrics)
}

func TestRunnerMissingMetricsIsNotFatal(t *testing.T) {
	r := NewRunner(fakeYolo(t, "exit 0"))
	r.Dir = t.TempDir()
	r.Stdout, r.Stderr = nil, nil

	res, err := r.Train(context.Background(), baseConfig())
	require.NoError(t, err)
	assert.Empty(t, res.Metrics)
}

func TestRunnerPropagatesFailure(t *testing.T) {
	r := NewRunner(fakeYolo(t, "echo boom >&2; exit 3"))
	r.Dir = t.TempDir()
	var stderr bytes.Buffer
	r.Stdout, r.Stderr = nil, &stderr

	_, err := r.Train(context.Background(), baseConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "training failed")
	assert.Contains(t, stderr.String(), "boom")
}

func TestRunnerNotInstalled(t *testing.T) {
	r := NewRunner(filepath.Join(t.TempDir(), "no-such-yolo"))

	err := r.Available()
	require.Error(t, err)
	assert.Equal(t, ErrNotInstalled.Error(), err.Error())

	_, err = r.Train(context.Background(), baseConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotInstalled))
}

func TestRunnerAvailable(t *testing.T) {
	r := NewRunner(fakeYolo(t, "exit 0"))
	assert.NoError(t, r.Available())
}

func TestRunnerCancellation(t *testing.T) {
	r := NewRunner(fakeYolo(t, "sleep 30"))
	r.Dir = t.TempDir()
	r.Stdout, r.Stderr = nil, nil
	r.StopGrace = 100 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.Train(ctx, baseConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "training interrupted")
	assert.Less(t, time.Since(start), 10*time.Second)
}
