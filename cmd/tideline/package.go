package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tidelinelabs/tideline/pkg/dataset"
	"github.com/tidelinelabs/tideline/pkg/errors"
)

var packageCmd = &cobra.Command{
	Use:   "package <dataset>",
	Short: "Compose pipelines' outputs into a packaged dataset",
	Long: `Ask every pipeline for its dataset contribution across the selected
collections, validate the merged mapping, then materialize the dataset with
its metadata document, summary and content manifest.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject()
		if err != nil {
			return err
		}
		defer p.Close()

		collections, err := cmd.Flags().GetStringSlice("collection")
		if err != nil {
			return err
		}
		extra, err := cmd.Flags().GetStringToString("extra")
		if err != nil {
			return err
		}
		opName, err := cmd.Flags().GetString("operation")
		if err != nil {
			return err
		}
		op, err := parseOperation(opName)
		if err != nil {
			return err
		}

		datasetName := args[0]
		m, err := p.Compose(cmd.Context(), datasetName, collections, extra)
		if err != nil {
			return err
		}

		w, err := p.CreateDataset(datasetName, m, op)
		if err != nil {
			return err
		}
		defer w.Close()

		fmt.Printf("Packaged dataset %q with %d file(s) at %s\n", datasetName, m.Count(), w.RootDir())
		return nil
	},
}

func parseOperation(name string) (dataset.Operation, error) {
	switch dataset.Operation(name) {
	case dataset.OpCopy, dataset.OpMove, dataset.OpLink:
		return dataset.Operation(name), nil
	default:
		return "", errors.Newf(errors.ErrInvalidInput, "unknown operation %q: expected copy, move or link", name)
	}
}

func init() {
	packageCmd.Flags().StringSlice("collection", nil, "Collections to draw from (default all)")
	packageCmd.Flags().StringToString("extra", nil, "Extra key=value arguments passed through to pipelines")
	packageCmd.Flags().String("operation", string(dataset.OpCopy), "How to materialize files: copy, move or link")
	rootCmd.AddCommand(packageCmd)
}
