package dataset

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/DaniruKun/yolotrain/logging"
	"github.com/DaniruKun/yolotrain/utils"
)

// ErrNotFound is returned when the descriptor file does not exist
var ErrNotFound = errors.New("Dataset YAML not found")

// Descriptor is the subset of an Ultralytics data.yaml that the launcher reads.
// The trainer consumes the whole file on its own.
type Descriptor struct {
	Path  string  `yaml:"path"`
	Train Sources `yaml:"train"`
	Val   Sources `yaml:"val"`
	Test  Sources `yaml:"test"`
	NC    int     `yaml:"nc"`
	Names Names   `yaml:"names"`

	file string
}

// Sources is a single entry or a list of entries, each a directory or a .txt image list
type Sources []string

func (s *Sources) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value != "" {
			*s = Sources{node.Value}
		}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	}
	return errors.Errorf("line %d: expected string or list", node.Line)
}

// Names holds class labels. Both the list and the index map forms are accepted.
type Names []string

func (n *Names) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*n = list
		return nil
	case yaml.MappingNode:
		var byIndex map[int]string
		if err := node.Decode(&byIndex); err != nil {
			return err
		}
		idx := make([]int, 0, len(byIndex))
		for i := range byIndex {
			idx = append(idx, i)
		}
		sort.Ints(idx)
		list := make([]string, 0, len(idx))
		for _, i := range idx {
			list = append(list, byIndex[i])
		}
		*n = list
		return nil
	}
	return errors.Errorf("line %d: expected list or mapping of class names", node.Line)
}

// Resolve expands and absolutizes `path` and requires the file to exist
func Resolve(path string) (string, error) {
	expanded, err := utils.ExpandHome(path)
	if err != nil {
		return "", errors.Wrap(err, "expanding dataset path")
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", errors.Wrap(err, "resolving dataset path")
	}
	if !utils.Exists(abs) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, abs)
	}
	return abs, nil
}

// Parse reads the descriptor at the already resolved `file`
func Parse(file string) (*Descriptor, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "reading dataset YAML")
	}
	var d Descriptor
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", file)
	}
	d.file = file
	if d.NC != 0 && len(d.Names) != 0 && d.NC != len(d.Names) {
		logging.Warn("Class count does not match names", logging.Dataset, "nc", d.NC, "names", len(d.Names))
	}
	return &d, nil
}

// Load resolves and parses a descriptor. A missing file is an error, a file the
// launcher cannot parse is returned with a nil descriptor and logged, since the
// trainer is the authority on its contents.
func Load(path string) (string, *Descriptor, error) {
	file, err := Resolve(path)
	if err != nil {
		return "", nil, err
	}
	d, err := Parse(file)
	if err != nil {
		logging.Warn("Could not inspect dataset YAML", logging.Dataset, "file", file, "error", err)
		return file, nil, nil
	}
	logging.Info("Loaded dataset", logging.Dataset, "file", file, "classes", len(d.Names))
	return file, d, nil
}

// Root is the directory the train/val/test entries are relative to
func (d *Descriptor) Root() string {
	base := filepath.Dir(d.file)
	if d.Path == "" {
		return base
	}
	root, err := utils.ExpandHome(d.Path)
	if err != nil {
		root = d.Path
	}
	if filepath.IsAbs(root) {
		return filepath.Clean(root)
	}
	return filepath.Join(base, root)
}

// ImageDirs returns the train and val entries as absolute paths.
// Entries pointing at .txt lists are expanded to the directories of the listed images.
func (d *Descriptor) ImageDirs() ([]string, error) {
	root := d.Root()
	seen := map[string]bool{}
	var dirs []string
	add := func(dir string) {
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	for _, entry := range append(append(Sources{}, d.Train...), d.Val...) {
		p := entry
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		if strings.EqualFold(filepath.Ext(p), ".txt") {
			listed, err := readImageList(root, p)
			if err != nil {
				return nil, err
			}
			for _, img := range listed {
				add(filepath.Dir(img))
			}
			continue
		}
		add(p)
	}
	return dirs, nil
}

func readImageList(root, file string) ([]string, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, errors.Wrap(err, "opening image list")
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(root, line)
		}
		out = append(out, line)
	}
	return out, errors.Wrap(scanner.Err(), "reading image list")
}
