package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tidelinelabs/tideline/pkg/dataset"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <dataset>",
	Short: "Re-verify a packaged dataset against its manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject()
		if err != nil {
			return err
		}
		defer p.Close()

		settings := p.Settings()
		w, err := dataset.NewWrapper(p.DatasetDir(args[0]), dataset.Options{
			Workers:         settings.Workers,
			VideoExtensions: settings.VideoExtensions,
		})
		if err != nil {
			return err
		}
		defer w.Close()

		if err := w.Validate(); err != nil {
			return err
		}

		fmt.Printf("Dataset %q matches its manifest\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
