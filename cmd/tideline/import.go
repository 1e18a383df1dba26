package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <collection> <source>...",
	Short: "Import source data into a collection through every pipeline",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject()
		if err != nil {
			return err
		}
		defer p.Close()

		extra, err := cmd.Flags().GetStringToString("extra")
		if err != nil {
			return err
		}

		collectionName, sources := args[0], args[1:]
		if err := p.RunImport(cmd.Context(), collectionName, sources, extra); err != nil {
			return err
		}

		fmt.Printf("Imported %d source(s) into collection %q\n", len(sources), collectionName)
		return nil
	},
}

func init() {
	importCmd.Flags().StringToString("extra", nil, "Extra key=value arguments passed through to pipelines")
	rootCmd.AddCommand(importCmd)
}
