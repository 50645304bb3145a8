// triage is the support-inbox triage service and its offline tools.
//
// Usage:
//
//	triage serve
//	triage classify <csv>
//	triage reply <csv> <record-id>
//	triage stats <csv>
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/triage/internal/config"
	"github.com/MikeSquared-Agency/triage/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Classify, search and draft replies for customer support email",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(replyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.Version = version
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}

	// Offline commands print results on stdout, so their logs go to stderr.
	w := cmd.ErrOrStderr()
	if cmd == serveCmd {
		w = os.Stdout
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat, w)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
