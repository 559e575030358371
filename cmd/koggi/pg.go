package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/koggi/koggi/internal/artifact"
	"github.com/koggi/koggi/internal/models"
	"github.com/koggi/koggi/internal/services/backup"
	"github.com/koggi/koggi/internal/services/restore"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	pgProfile       string
	backupFormat    string
	backupTimeout   time.Duration
	restoreArtifact string
	restoreTimeout  time.Duration
)

var pgCmd = &cobra.Command{
	Use:   "pg",
	Short: "PostgreSQL operations",
}

var pgBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create a database backup using pg_dump",
	RunE:  runPgBackup,
}

var pgRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore a database from a backup artifact",
	Long: `Restore a database from a backup artifact.

Without --artifact the newest artifact for the profile is used. Custom
format artifacts (.dump, .backup) are restored with pg_restore, plain SQL
(.sql) with psql. The restore is not transactional at this layer: if the
tool fails part way, the target database may be left partially restored.`,
	RunE: runPgRestore,
}

var pgListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backup artifacts for a profile",
	RunE:  runPgList,
}

func init() {
	pgBackupCmd.Flags().StringVarP(&pgProfile, "profile", "p", "DEFAULT", "profile name")
	pgBackupCmd.Flags().StringVar(&backupFormat, "format", models.FormatCustom, "backup format: custom|plain")
	pgBackupCmd.Flags().DurationVar(&backupTimeout, "timeout", backup.DefaultTimeout, "backup timeout")

	pgRestoreCmd.Flags().StringVarP(&pgProfile, "profile", "p", "DEFAULT", "profile name")
	pgRestoreCmd.Flags().StringVar(&restoreArtifact, "artifact", "", "artifact filename (default: latest)")
	pgRestoreCmd.Flags().DurationVar(&restoreTimeout, "timeout", restore.DefaultTimeout, "restore timeout")

	pgListCmd.Flags().StringVarP(&pgProfile, "profile", "p", "DEFAULT", "profile name")

	pgCmd.AddCommand(pgBackupCmd)
	pgCmd.AddCommand(pgRestoreCmd)
	pgCmd.AddCommand(pgListCmd)
}

func runPgBackup(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	backupSvc := backup.New(log.Logger)
	outcome, err := backupSvc.Backup(cmd.Context(), reg, pgProfile, backup.Options{
		Format:  backupFormat,
		Timeout: backupTimeout,
	})
	if err != nil {
		return err
	}
	if !outcome.Success {
		return failure(outcome)
	}

	fmt.Printf("Backup completed: %s (%s)\n",
		outcome.Artifact.Path, humanize.Bytes(uint64(outcome.Artifact.SizeBytes)))
	return nil
}

func runPgRestore(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	selector := restore.SelectorLatest
	if restoreArtifact != "" {
		selector = restoreArtifact
	}

	restoreSvc := restore.New(log.Logger)
	outcome, err := restoreSvc.Restore(cmd.Context(), reg, pgProfile, selector, restore.Options{
		Timeout: restoreTimeout,
	})
	if err != nil {
		return err
	}
	if !outcome.Success {
		return failure(outcome)
	}

	fmt.Printf("Restore completed: %s\n", outcome.Target)
	return nil
}

func runPgList(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	profile, err := reg.Resolve(pgProfile)
	if err != nil {
		return resolveFailure(err)
	}

	artifacts, err := artifact.List(profile.BackupDir, profile.Name)
	if err != nil {
		log.Error().Err(err).Str("dir", profile.BackupDir).Msg("cannot list backup directory")
		return &exitError{code: models.KindNoArtifactsFound.ExitCode(), err: err}
	}
	if len(artifacts) == 0 {
		fmt.Printf("No backup artifacts for profile %s in %s\n", profile.Name, profile.BackupDir)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ARTIFACT\tFORMAT\tSIZE\tAGE")
	for _, a := range artifacts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			filepath.Base(a.Path),
			a.Format,
			humanize.Bytes(uint64(a.SizeBytes)),
			humanize.Time(a.Timestamp),
		)
	}
	return w.Flush()
}
