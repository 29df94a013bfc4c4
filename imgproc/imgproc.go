package imgproc

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"

	"github.com/DaniruKun/yolotrain/logging"
)

var ErrEmptyImage = errors.New("image decoded empty")

// Decodes the image at `path` the way the trainer will and returns its size
func Inspect(path string) (image.Point, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	defer mat.Close()

	if mat.Empty() {
		return image.Point{}, ErrEmptyImage
	}
	return image.Point{X: mat.Cols(), Y: mat.Rows()}, nil
}

type Failure struct {
	Path string
	Err  error
}

type Report struct {
	Checked  int
	Failures []Failure
	Failed   int
	Min      image.Point
	Max      image.Point
}

func (r Report) OK() bool {
	return r.Failed == 0
}

func (r Report) String() string {
	if r.Checked == 0 {
		return "no images checked"
	}
	return fmt.Sprintf("%d images checked, %d unreadable, sizes %dx%d to %dx%d",
		r.Checked, r.Failed, r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
}

func (r *Report) add(path string, size image.Point, err error, maxFailures int) {
	r.Checked++
	if err != nil {
		r.Failed++
		if len(r.Failures) < maxFailures {
			r.Failures = append(r.Failures, Failure{Path: path, Err: err})
		}
		return
	}
	if r.Checked-r.Failed == 1 {
		r.Min, r.Max = size, size
		return
	}
	if size.X < r.Min.X {
		r.Min.X = size.X
	}
	if size.Y < r.Min.Y {
		r.Min.Y = size.Y
	}
	if size.X > r.Max.X {
		r.Max.X = size.X
	}
	if size.Y > r.Max.Y {
		r.Max.Y = size.Y
	}
}

// Sample walks `dirs` and decodes up to `config.Limit` images in total
func Sample(dirs []string, config Config) (Report, error) {
	return sample(dirs, config, Inspect)
}

func sample(dirs []string, config Config, inspect func(string) (image.Point, error)) (Report, error) {
	config = config.withDefaults()
	var report Report
	if config.Limit <= 0 {
		return report, nil
	}

	stop := errors.New("limit reached")
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !hasExt(path, config.Extensions) {
				return nil
			}
			size, inspectErr := inspect(path)
			if inspectErr != nil {
				logging.Debug("Unreadable image", logging.Dataset, "path", path, "error", inspectErr)
			}
			report.add(path, size, inspectErr, config.MaxFailures)
			if report.Checked >= config.Limit {
				return stop
			}
			return nil
		})
		if err == stop {
			break
		}
		if err != nil {
			return report, fmt.Errorf("walking %s: %w", dir, err)
		}
	}
	return report, nil
}

func hasExt(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
