package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DaniruKun/yolotrain/dataset"
)

func newCheckCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the dataset YAML and decode a sample of its images",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, descriptor, err := dataset.Load(v.GetString("data"))
			if err != nil {
				return err
			}
			if descriptor == nil {
				return fmt.Errorf("could not parse %s", file)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Dataset: %s\n", file)
			fmt.Fprintf(out, "  root: %s\n", descriptor.Root())
			fmt.Fprintf(out, "  classes (%d): %v\n", len(descriptor.Names), []string(descriptor.Names))

			limit := v.GetInt("check-images")
			if limit <= 0 {
				limit = 100
			}
			return checkImages(descriptor, limit)
		},
	}
}
