package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tidelinelabs/tideline/pkg/logging"
	"github.com/tidelinelabs/tideline/pkg/project"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	verbosity   int
	dryRun      bool
	projectPath string

	rootCmd = &cobra.Command{
		Use:   "tideline",
		Short: "A scientific imagery dataset lifecycle manager",
		Long: `tideline turns raw scientific imagery into packaged, verifiable datasets.
Pipelines import and process collections of source data; composing them
produces a dataset with merged metadata, a summary and a content manifest.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Preview changes without executing them")
	rootCmd.PersistentFlags().StringVar(&projectPath, "project", ".", "Project directory")

	rootCmd.AddCommand(versionCmd)
}

// openProject wraps the project named by --project. Callers close it when
// the command finishes.
func openProject() (*project.Project, error) {
	return project.NewProject(projectPath, dryRun)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tideline version %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}
