package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/koggi/koggi/internal/config"
	"github.com/koggi/koggi/internal/services/prober"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configTestTimeout time.Duration

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration & profiles",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles detected in the environment",
	RunE:  runConfigList,
}

var configTestCmd = &cobra.Command{
	Use:   "test [profile]",
	Short: "Test the database connection for a profile",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigTest,
}

func init() {
	configTestCmd.Flags().DurationVar(&configTestTimeout, "timeout", prober.DefaultTimeout, "probe timeout")

	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configTestCmd)
}

func runConfigList(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	if reg.Len() == 0 {
		fmt.Println("No profiles detected. Set KOGGI_<PROFILE>_* environment variables or provide an env file.")
		return &exitError{code: 1}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROFILE\tDB NAME\tHOST\tPORT\tSSL\tBACKUP DIR")
	for _, spec := range reg.Specs() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			spec.Name,
			orDefault(spec.DBName, "-"),
			orDefault(spec.Host, config.DefaultHost),
			orDefault(spec.Port, fmt.Sprintf("%d", config.DefaultPort)),
			orDefault(spec.SSLMode, config.DefaultSSLMode),
			orDefault(spec.BackupDir, "-"),
		)
	}
	return w.Flush()
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func runConfigTest(cmd *cobra.Command, args []string) error {
	profileName := "DEFAULT"
	if len(args) > 0 {
		profileName = args[0]
	}

	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	profile, err := reg.Resolve(profileName)
	if err != nil {
		return resolveFailure(err)
	}

	proberSvc := prober.New(log.Logger)
	outcome, err := proberSvc.Test(cmd.Context(), profile, configTestTimeout)
	if err != nil {
		return err
	}
	if !outcome.Success {
		return failure(outcome)
	}

	fmt.Printf("Connection OK - %s\n", outcome.Target)
	return nil
}
