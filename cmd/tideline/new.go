package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tidelinelabs/tideline/pkg/config"
	"github.com/tidelinelabs/tideline/pkg/project"
)

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a project, pipeline or collection",
}

var newProjectCmd = &cobra.Command{
	Use:   "project <path>",
	Short: "Create a new project directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := project.Create(args[0], dryRun)
		if err != nil {
			return err
		}
		defer p.Close()

		fmt.Printf("Created project %q at %s\n", p.Name(), p.RootDir())
		return nil
	},
}

var newPipelineCmd = &cobra.Command{
	Use:   "pipeline <name>",
	Short: "Register a new pipeline in the project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject()
		if err != nil {
			return err
		}
		defer p.Close()

		h, err := p.CreatePipeline(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Created pipeline %q; place its implementation under %s\n", h.Name(), h.RepoDir())
		return nil
	},
}

var newCollectionCmd = &cobra.Command{
	Use:   "collection <name>",
	Short: "Create a new collection in the project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject()
		if err != nil {
			return err
		}
		defer p.Close()

		cfg, err := configFromFlags(cmd)
		if err != nil {
			return err
		}

		w, err := p.CreateCollection(args[0], cfg, nil)
		if err != nil {
			return err
		}

		fmt.Printf("Created collection %q at %s\n", w.Name(), w.RootDir())
		return nil
	},
}

// configFromFlags turns repeated --set key=value flags into a configuration.
func configFromFlags(cmd *cobra.Command) (config.Config, error) {
	pairs, err := cmd.Flags().GetStringToString("set")
	if err != nil {
		return nil, err
	}

	cfg := make(config.Config, len(pairs))
	for key, raw := range pairs {
		cfg[key] = config.String(raw)
	}
	return cfg, nil
}

func init() {
	newCollectionCmd.Flags().StringToString("set", nil, "Collection configuration as key=value pairs")

	newCmd.AddCommand(newProjectCmd)
	newCmd.AddCommand(newPipelineCmd)
	newCmd.AddCommand(newCollectionCmd)
	rootCmd.AddCommand(newCmd)
}
