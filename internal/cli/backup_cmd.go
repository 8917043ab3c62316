package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ecmcloud/ecm/internal/backup"
)

// backupService builds the snapshot service from configuration. The master
// registry is only copied when it is a SQLite file.
func (e *env) backupService(withUploader bool) *backup.Service {
	opts := backup.Options{
		DataDir:       e.cfg.DataDir,
		BackupDir:     e.cfg.SystemBackupDir,
		RetentionDays: e.cfg.SystemBackupRetentionDays,
	}
	if !e.cfg.UsesPostgres() {
		opts.MasterPath = e.cfg.MasterDatabase
	}
	var uploader backup.Uploader
	if withUploader && e.cfg.S3.Enabled() {
		uploader = backup.NewS3Uploader(e.cfg.S3)
	}
	return backup.NewService(opts, uploader, e.notifier, e.log.Named("backup"))
}

func newBackupCmd(e *env) *cobra.Command {
	var noUpload bool

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Take a system snapshot of the master registry and all tenant stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := e.backupService(!noUpload).Run(cmd.Context())
			if snap != nil {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s written (%s)\n", snap.Name, humanize.Bytes(uint64(snap.SizeBytes)))
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&noUpload, "no-upload", false, "Skip the off-site upload even when S3 is configured")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List system snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snaps, err := e.backupService(false).List()
			if err != nil {
				return err
			}
			if len(snaps) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no snapshots")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "NAME\tCREATED\tSIZE")
			for _, s := range snaps {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, s.CreatedAt.Format("2006-01-02 15:04:05"), humanize.Bytes(uint64(s.SizeBytes)))
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete snapshots older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			removed, err := e.backupService(false).Prune()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %d snapshot(s)\n", removed)
			return err
		},
	})

	return cmd
}

func newRestoreCmd(e *env) *cobra.Command {
	var latest, yes bool

	cmd := &cobra.Command{
		Use:   "restore [snapshot]",
		Short: "Replace the master registry and data directory with a snapshot",
		Long: "Replace the master registry and data directory with a snapshot.\n" +
			"Current data is overwritten. Stop the server first and confirm with --yes.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := e.backupService(false)

			var name string
			switch {
			case latest && len(args) > 0:
				return errors.New("pass either a snapshot name or --latest, not both")
			case latest:
				snap, err := svc.Latest()
				if err != nil {
					return err
				}
				name = snap.Name
			case len(args) == 1:
				name = args[0]
			default:
				return errors.New("a snapshot name or --latest is required")
			}

			if !yes {
				return fmt.Errorf("restoring %s overwrites all current data; stop the server and re-run with --yes", name)
			}
			if err := svc.Restore(cmd.Context(), name); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "restored %s\n", name)
			return nil
		},
	}
	cmd.Flags().BoolVar(&latest, "latest", false, "Restore the newest snapshot")
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm that the server is stopped and current data may be overwritten")

	return cmd
}
