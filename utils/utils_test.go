package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory: ", err)
	}

	var tests = []struct {
		in   string
		want string
	}{
		{"~", home},
		{"~/data.yaml", filepath.Join(home, "data.yaml")},
		{"data.yaml", "data.yaml"},
		{"/abs/~/data.yaml", "/abs/~/data.yaml"},
		{"~other/data.yaml", "~other/data.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ExpandHome(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnchorAt(t *testing.T) {
	got, err := AnchorAt("/work", "yolo11n.pt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/work/yolo11n.pt" {
		t.Error("expected /work/yolo11n.pt, got: ", got)
	}

	got, err = AnchorAt("/work", "/weights/../weights/yolo11s.pt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/weights/yolo11s.pt" {
		t.Error("expected /weights/yolo11s.pt, got: ", got)
	}

	if _, err := AnchorAt("/work", ""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	if !Exists(dir) {
		t.Error("expected temp dir to exist")
	}
	if Exists(filepath.Join(dir, "missing")) {
		t.Error("expected missing file not to exist")
	}
}
