/*
Copyright © 2022 Daniils Petrovs <thedanpetrov@gmail.com>

*/
package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DaniruKun/yolotrain/device"
	"github.com/DaniruKun/yolotrain/logging"
	"github.com/DaniruKun/yolotrain/trainer"
	"github.com/DaniruKun/yolotrain/weights"
)

const envPrefix = "YOLOTRAIN"

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCmd(defaultDeps)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// deps are the collaborators of the launch flow, swapped out in tests
type deps struct {
	probe      device.Probe
	newTrainer func(executable string) trainer.Trainer
	getwd      func() (string, error)
}

var defaultDeps = deps{
	probe: device.NvidiaSMI{},
	newTrainer: func(executable string) trainer.Trainer {
		return trainer.NewRunner(executable)
	},
	getwd: os.Getwd,
}

func newRootCmd(d deps) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "yolotrain",
		Short: "YOLOv11 training launcher",
		Long: `Launches Ultralytics YOLOv11 training against a dataset YAML,
downloading the pretrained checkpoint first when it is not on disk.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(v)
			if err != nil {
				return err
			}
			return launch(cmd.Context(), cmd.OutOrStdout(), opts, d)
		},
	}

	pf := cmd.PersistentFlags()
	pf.String("config", "", "config file with any of the flags below (yaml, toml or json)")
	pf.String("data", "merged_dataset.yolov11/data.yaml", "Path to the dataset YAML file")
	pf.String("model", "yolo11n.pt", "Name or path of the YOLOv11 checkpoint to fine-tune (e.g. yolo11n.pt, yolo11s.pt)")
	pf.String("weights-url", weights.DefaultURLTemplate, "Checkpoint download URL, %s is replaced by the file name")
	pf.Duration("download-timeout", weights.DefaultTimeout, "Timeout for the checkpoint download")
	pf.Int("check-images", 0, "Decode up to N dataset images before training and fail on unreadable ones (0 disables)")
	pf.String("log-level", "info", "Log level: debug, info, warn or error")
	pf.String("log-format", "text", "Log format: text or json")

	f := cmd.Flags()
	f.Int("epochs", 50, "Number of epochs to train")
	f.Int("img", 640, "Image size for training")
	f.Int("batch", 16, "Batch size")
	f.String("device", device.Auto, "Training device (e.g. '0' for GPU, 'cpu', 'mps', or 'auto')")
	f.String("project", "runs/train", "Project directory for Ultralytics run outputs")
	f.String("name", "yolov11-merged", "Run name for Ultralytics outputs")
	f.Int("workers", 8, "Number of dataloader workers")
	f.Int("patience", 50, "Early stopping patience")
	f.Int("save-period", -1, "Save a checkpoint every N epochs (-1 disables periodic saves)")
	f.Int("seed", 0, "Random seed")
	f.Float64("lr0", 0.01, "Initial learning rate")
	f.Float64("lrf", 0.01, "Final learning rate multiplier")
	f.Bool("resume", false, "Resume training from the last checkpoint in the run directory")
	f.Bool("exist-ok", false, "Allow overwrite of existing project/name directory")
	f.String("yolo", trainer.DefaultExecutable, "Ultralytics command-line executable")
	f.Bool("dry-run", false, "Resolve everything and print the arguments without training")

	cmd.AddCommand(newCheckCmd(v), newFetchCmd(v, d), newVersionCmd())
	return cmd
}

// initConfig layers flags over environment over the optional config file
func initConfig(v *viper.Viper, cmd *cobra.Command) error {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return errors.Wrap(err, "binding flags")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "reading config %s", file)
		}
	}

	if err := logging.Setup(cmd.ErrOrStderr(), v.GetString("log-level"), v.GetString("log-format")); err != nil {
		return err
	}
	if used := v.ConfigFileUsed(); used != "" {
		logging.Debug("Using config file", logging.CLI, "file", used)
	}
	return nil
}
