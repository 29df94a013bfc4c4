package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/DaniruKun/yolotrain/dataset"
	"github.com/DaniruKun/yolotrain/device"
	"github.com/DaniruKun/yolotrain/imgproc"
	"github.com/DaniruKun/yolotrain/logging"
	"github.com/DaniruKun/yolotrain/trainer"
	"github.com/DaniruKun/yolotrain/weights"
)

type options struct {
	trainer.Config `mapstructure:",squash"`

	Yolo            string        `mapstructure:"yolo"`
	WeightsURL      string        `mapstructure:"weights-url"`
	DownloadTimeout time.Duration `mapstructure:"download-timeout"`
	CheckImages     int           `mapstructure:"check-images"`
	DryRun          bool          `mapstructure:"dry-run"`
}

func loadOptions(v *viper.Viper) (options, error) {
	var opts options
	if err := v.Unmarshal(&opts); err != nil {
		return opts, errors.Wrap(err, "decoding options")
	}
	return opts, nil
}

func launch(ctx context.Context, out io.Writer, opts options, d deps) error {
	tr := d.newTrainer(opts.Yolo)
	if !opts.DryRun {
		if err := tr.Available(); err != nil {
			return err
		}
	}

	dataFile, descriptor, err := dataset.Load(opts.Data)
	if err != nil {
		return err
	}
	opts.Data = dataFile

	if err := checkImages(descriptor, opts.CheckImages); err != nil {
		return err
	}

	cwd, err := d.getwd()
	if err != nil {
		return errors.Wrap(err, "getting working directory")
	}
	fetcher := weights.NewFetcher(opts.WeightsURL, opts.DownloadTimeout)
	opts.Model, err = fetcher.Ensure(ctx, cwd, opts.Model)
	if err != nil {
		return err
	}

	opts.Device = device.Resolve(ctx, opts.Device, d.probe)

	if err := opts.Config.Validate(); err != nil {
		return err
	}

	logging.Info("Using checkpoint", logging.Checkpoint, "path", opts.Model)
	fmt.Fprintln(out, "Launching training with arguments:")
	for _, a := range opts.Config.Args() {
		// the checkpoint selects the model, it is not a training option
		if a.Key == "model" {
			continue
		}
		fmt.Fprintf(out, "  %s: %s\n", a.Key, a.Value)
	}

	if opts.DryRun {
		logging.Info("Dry run, not starting the trainer", logging.CLI)
		return nil
	}

	result, err := tr.Train(ctx, opts.Config)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Training finished. Metrics summary:")
	for _, m := range result.Metrics {
		fmt.Fprintf(out, "  %s: %v\n", m.Name, m.Value)
	}
	if result.SaveDir != "" {
		fmt.Fprintf(out, "Run saved to %s\n", result.SaveDir)
	}
	return nil
}

func checkImages(descriptor *dataset.Descriptor, limit int) error {
	if limit <= 0 {
		return nil
	}
	if descriptor == nil {
		return errors.New("cannot check images: dataset YAML could not be parsed")
	}

	dirs, err := descriptor.ImageDirs()
	if err != nil {
		return err
	}
	report, err := imgproc.Sample(dirs, imgproc.Config{Limit: limit})
	if err != nil {
		return errors.Wrap(err, "checking dataset images")
	}
	logging.Info("Checked dataset images", logging.Dataset, "report", report.String())

	if !report.OK() {
		for _, f := range report.Failures {
			logging.Error("Unreadable image", logging.Dataset, "path", f.Path, "error", f.Err)
		}
		return errors.Errorf("%d of %d sampled images are unreadable", report.Failed, report.Checked)
	}
	return nil
}
