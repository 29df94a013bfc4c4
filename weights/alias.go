package weights

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/DaniruKun/yolotrain/utils"
)

// Legacy checkpoint filenames mapped to the names published upstream
var aliases = map[string]string{
	"yolov11n.pt": "yolo11n.pt",
	"yolov11s.pt": "yolo11s.pt",
	"yolov11m.pt": "yolo11m.pt",
	"yolov11l.pt": "yolo11l.pt",
	"yolov11x.pt": "yolo11x.pt",
}

// ResolveName returns the canonical checkpoint filename for `filename`
func ResolveName(filename string) string {
	if resolved, ok := aliases[filename]; ok {
		return resolved
	}
	return filename
}

// Resolve anchors `modelPath` at `cwd` when relative and swaps a legacy
// base name for its canonical one, keeping the directory.
func Resolve(cwd, modelPath string) (string, error) {
	path, err := utils.AnchorAt(cwd, modelPath)
	if err != nil {
		return "", errors.Wrap(err, "invalid model path")
	}
	dir, name := filepath.Split(path)
	return filepath.Join(dir, ResolveName(name)), nil
}
