package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tidelinelabs/tideline/pkg/installer"
)

var installCmd = &cobra.Command{
	Use:   "install <pipeline>",
	Short: "Install a pipeline's dependencies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject()
		if err != nil {
			return err
		}
		defer p.Close()

		tool, err := cmd.Flags().GetString("tool")
		if err != nil {
			return err
		}
		runner, err := installer.NewExecRunner(tool)
		if err != nil {
			return err
		}

		h, err := p.Pipeline(args[0])
		if err != nil {
			return err
		}
		if err := h.Install(cmd.Context(), runner); err != nil {
			return err
		}

		fmt.Printf("Installed dependencies for pipeline %q\n", args[0])
		return nil
	},
}

func init() {
	installCmd.Flags().String("tool", "pip", "Installer executable to run")
	rootCmd.AddCommand(installCmd)
}
