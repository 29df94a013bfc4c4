package device

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/DaniruKun/yolotrain/logging"
)

const (
	Auto = "auto"
	CPU  = "cpu"
	// FirstCUDA selects the first visible CUDA device
	FirstCUDA = "0"
)

// Probe reports whether a CUDA capable accelerator is usable
type Probe interface {
	CUDAAvailable(ctx context.Context) bool
}

// Resolve turns the requested device into the value forwarded to the trainer.
// Anything other than exactly `auto` passes through unchanged.
func Resolve(ctx context.Context, requested string, probe Probe) string {
	if requested != Auto {
		return requested
	}
	if probe.CUDAAvailable(ctx) {
		logging.Info("CUDA device detected", logging.Device, "device", FirstCUDA)
		return FirstCUDA
	}
	logging.Info("No CUDA device detected. Using CPU.", logging.Device)
	return CPU
}

// NvidiaSMI probes for GPUs by listing them with nvidia-smi
type NvidiaSMI struct {
	Path    string        // defaults to nvidia-smi on PATH
	Timeout time.Duration // defaults to 10s
	Getenv  func(string) (string, bool)
}

func (p NvidiaSMI) CUDAAvailable(ctx context.Context) bool {
	lookup := p.Getenv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if hiddenByEnv(lookup) {
		logging.Debug("CUDA_VISIBLE_DEVICES hides all GPUs", logging.Device)
		return false
	}

	bin := p.Path
	if bin == "" {
		bin = "nvidia-smi"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		logging.Debug("nvidia-smi not found", logging.Device, "error", err)
		return false
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "-L").Output()
	if err != nil {
		logging.Debug("nvidia-smi failed", logging.Device, "error", err)
		return false
	}
	return countGPUs(out) > 0
}

func hiddenByEnv(lookup func(string) (string, bool)) bool {
	v, ok := lookup("CUDA_VISIBLE_DEVICES")
	if !ok {
		return false
	}
	v = strings.TrimSpace(v)
	return v == "" || v == "-1"
}

// Counts `GPU <n>: ...` lines in nvidia-smi -L output
func countGPUs(out []byte) int {
	var n int
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if strings.HasPrefix(strings.TrimSpace(scanner.Text()), "GPU ") {
			n++
		}
	}
	return n
}
