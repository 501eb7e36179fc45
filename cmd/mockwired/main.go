// mockwired serves mock file profiles as a standalone HTTP backend:
// a data plane answering the mocked routes and an admin plane for
// health, metrics, and captured requests.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mockwire/mockwire/internal/daemon"
	"github.com/mockwire/mockwire/internal/logger"
	"github.com/mockwire/mockwire/mockfile"
)

var (
	flagMockFile string
	flagProfile  string
)

var rootCmd = &cobra.Command{
	Use:           "mockwired",
	Short:         "Standalone mock HTTP backend",
	Long:          "mockwired serves canned HTTP responses from a YAML mock file,\nfor tests and local development that need a real listener.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the selected profile until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := daemon.Load()
		if err != nil {
			return err
		}
		if flagMockFile != "" {
			cfg.MockFile = flagMockFile
		}
		if flagProfile != "" {
			cfg.Profile = flagProfile
		}

		log := logger.Init("mockwired", cfg.LogLevel, cfg.PrettyLogs)
		d, err := daemon.New(cfg, log)
		if err != nil {
			return err
		}
		return d.Run(cmd.Context())
	},
}

var checkCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Validate a mock file and list its profiles",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := flagMockFile
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			cfg, err := daemon.Load()
			if err != nil {
				return err
			}
			path = cfg.MockFile
		}

		sets, err := mockfile.Load(path)
		if err != nil {
			return err
		}

		names := make([]string, 0, len(sets))
		for name := range sets {
			names = append(names, name)
		}
		sort.Strings(names)

		cmd.Printf("%s: %d profiles\n", path, len(names))
		for _, name := range names {
			cmd.Printf("  %-20s %d handlers\n", name, sets[name].Len())
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagMockFile, "mock-file", "",
		"mock file path (overrides MOCKWIRED_MOCK_FILE)")
	serveCmd.Flags().StringVar(&flagProfile, "profile", "",
		"profile to serve (overrides MOCKWIRED_PROFILE)")
	rootCmd.AddCommand(serveCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
