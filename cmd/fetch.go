package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DaniruKun/yolotrain/weights"
)

func newFetchCmd(v *viper.Viper, d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [model]",
		Short: "Download a pretrained checkpoint if it is not on disk",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model := v.GetString("model")
			if len(args) == 1 {
				model = args[0]
			}
			cwd, err := d.getwd()
			if err != nil {
				return err
			}
			fetcher := weights.NewFetcher(v.GetString("weights-url"), v.GetDuration("download-timeout"))
			path, err := fetcher.Ensure(cmd.Context(), cwd, model)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
