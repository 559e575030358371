package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/koggi/koggi/internal/config"
	"github.com/koggi/koggi/internal/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "dev"

	// Global flags.
	envFile    string
	verbose    bool
	quiet      bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "koggi",
	Short: "PostgreSQL backup & restore CLI",
	Long: `koggi is a profile-driven PostgreSQL backup & restore CLI that wraps
the standard client tools:
  - pg_dump for backups, streamed to timestamped artifact files
  - pg_restore / psql for restores, from the latest or a named artifact
  - psql for lightweight connection tests

Profiles come from KOGGI_<PROFILE>_* environment variables, optionally
seeded from a .env file.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&envFile, "env-file", "e", "", "env file with KOGGI_* variables (default .env if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "enable quiet mode (errors only)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output logs in JSON format")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(pgCmd)
}

func setupLogging() {
	// Set output format
	if jsonOutput {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
		output.FormatLevel = func(i interface{}) string {
			if s, ok := i.(string); ok {
				return strings.ToUpper(s)
			}
			return ""
		}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set log level
	switch {
	case quiet:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// loadRegistry builds the profile registry once per invocation. An
// explicitly named env file must exist; the implicit .env is optional.
func loadRegistry() (*config.Registry, error) {
	parser := config.NewParser()

	path := envFile
	if path == "" {
		if _, err := os.Stat(".env"); err == nil {
			path = ".env"
		}
	}

	if path == "" {
		return parser.LoadEnviron(os.Environ()), nil
	}

	reg, err := parser.LoadFile(path, os.Environ())
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("failed to load env file")
		return nil, err
	}
	return reg, nil
}

// exitError carries a per-failure-class exit code out of Execute.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit code %d", e.code)
}

func (e *exitError) Unwrap() error { return e.err }

// failure logs an operation failure and converts it to an exitError.
func failure(outcome *models.OperationOutcome) error {
	log.Error().
		Err(outcome.Err).
		Str("reason", string(outcome.Kind)).
		Dur("duration", outcome.Duration).
		Msg("operation failed")
	return &exitError{code: outcome.Kind.ExitCode(), err: outcome.Err}
}

// resolveFailure logs a profile resolution error and converts it to an
// exitError.
func resolveFailure(err error) error {
	log.Error().Err(err).Msg("cannot resolve profile")
	return &exitError{code: models.KindOf(err).ExitCode(), err: err}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
