package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run pipeline processing over collections",
	Long: `Run every selected pipeline's process operation against every selected
collection. With no selection flags, all pipelines run against all
collections. Failures in one pair do not stop the rest.`,
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
		pipelines, err := cmd.Flags().GetStringSlice("pipeline")
		if err != nil {
			return err
		}
		extra, err := cmd.Flags().GetStringToString("extra")
		if err != nil {
			return err
		}

		if err := p.RunProcess(cmd.Context(), collections, pipelines, extra); err != nil {
			return err
		}

		fmt.Println("Processing complete")
		return nil
	},
}

func init() {
	processCmd.Flags().StringSlice("collection", nil, "Collections to process (default all)")
	processCmd.Flags().StringSlice("pipeline", nil, "Pipelines to run (default all)")
	processCmd.Flags().StringToString("extra", nil, "Extra key=value arguments passed through to pipelines")
	rootCmd.AddCommand(processCmd)
}
