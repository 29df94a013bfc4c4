package trainer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Config holds the options forwarded to the Ultralytics trainer.
// Field tags match the launcher's flag names.
type Config struct {
	Data       string  `mapstructure:"data"`        // Absolute path to the dataset YAML
	Model      string  `mapstructure:"model"`       // Checkpoint to fine-tune
	Epochs     int     `mapstructure:"epochs"`      // Number of epochs to train
	ImgSize    int     `mapstructure:"img"`         // Training image size
	Batch      int     `mapstructure:"batch"`       // Batch size
	Device     string  `mapstructure:"device"`      // Resolved device, never "auto"
	Project    string  `mapstructure:"project"`     // Output project directory
	Name       string  `mapstructure:"name"`        // Run name under Project
	Workers    int     `mapstructure:"workers"`     // Dataloader workers
	Patience   int     `mapstructure:"patience"`    // Early stopping patience
	SavePeriod int     `mapstructure:"save-period"` // Checkpoint every N epochs, -1 disables
	Seed       int     `mapstructure:"seed"`
	LR0        float64 `mapstructure:"lr0"` // Initial learning rate
	LRF        float64 `mapstructure:"lrf"` // Final learning rate multiplier
	Resume     bool    `mapstructure:"resume"`
	ExistOK    bool    `mapstructure:"exist-ok"` // Overwrite an existing Project/Name
}

// Arg is one key=value pair in the trainer's own vocabulary
type Arg struct {
	Key   string
	Value string
}

func (a Arg) String() string {
	return a.Key + "=" + a.Value
}

// Args returns the trainer arguments sorted by key. `resume` is only present when set.
func (c Config) Args() []Arg {
	args := []Arg{
		{"batch", strconv.Itoa(c.Batch)},
		{"data", c.Data},
		{"device", c.Device},
		{"epochs", strconv.Itoa(c.Epochs)},
		{"exist_ok", pyBool(c.ExistOK)},
		{"imgsz", strconv.Itoa(c.ImgSize)},
		{"lr0", pyFloat(c.LR0)},
		{"lrf", pyFloat(c.LRF)},
		{"model", c.Model},
		{"name", c.Name},
		{"patience", strconv.Itoa(c.Patience)},
		{"project", c.Project},
		{"save_period", strconv.Itoa(c.SavePeriod)},
		{"seed", strconv.Itoa(c.Seed)},
		{"workers", strconv.Itoa(c.Workers)},
	}
	if c.Resume {
		args = append(args, Arg{"resume", pyBool(true)})
	}
	sort.Slice(args, func(i, j int) bool { return args[i].Key < args[j].Key })
	return args
}

// CommandLine returns the argv tail for `yolo`
func (c Config) CommandLine() []string {
	out := []string{"detect", "train"}
	for _, a := range c.Args() {
		out = append(out, a.String())
	}
	return out
}

func (c Config) Validate() error {
	switch {
	case c.Data == "":
		return fmt.Errorf("data path is required")
	case c.Model == "":
		return fmt.Errorf("model is required")
	case c.Epochs <= 0:
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	case c.ImgSize <= 0:
		return fmt.Errorf("image size must be positive, got %d", c.ImgSize)
	case c.Batch == 0 || c.Batch < -1:
		return fmt.Errorf("batch must be positive or -1 for auto batch, got %d", c.Batch)
	case c.Workers < 0:
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// Keeps a decimal point so the trainer parses the value as a float
func pyFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
