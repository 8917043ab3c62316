package cli

import (
	"errors"
	"fmt"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ecmcloud/ecm/internal/backup"
)

func newCheckDiskCmd(e *env) *cobra.Command {
	var threshold float64

	cmd := &cobra.Command{
		Use:   "check-disk [path...]",
		Short: "Report free disk space and alert when it is low",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := e.cfg.DiskCheckPaths
			if len(args) > 0 {
				paths = args
			}
			if !cmd.Flags().Changed("threshold") {
				threshold = e.cfg.DiskWarningPercent
			}

			low, err := backup.CheckDisks(cmd.Context(), paths, threshold, e.notifier, e.log.Named("disk"))
			if err != nil {
				return err
			}
			if len(low) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "disk space ok")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "PATH\tFREE\tTOTAL\tFREE%")
			for _, u := range low {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\n", u.Path, humanize.Bytes(u.Free), humanize.Bytes(u.Total), u.PercentFree)
			}
			_ = tw.Flush()
			return fmt.Errorf("%d path(s) below %.1f%% free", len(low), threshold)
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 10, "Warn when free space is at or below this percentage")

	return cmd
}

func newMonitorCmd(e *env) *cobra.Command {
	var (
		url     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Probe the server health endpoint and alert when it is unreachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if url == "" {
				url = e.cfg.HealthCheckURL
			}
			if url == "" {
				return errors.New("no health check URL configured")
			}
			client := &http.Client{Timeout: timeout}
			if err := backup.ProbeHealth(cmd.Context(), client, url, timeout, e.notifier, e.log.Named("monitor")); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is healthy\n", url)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Health endpoint to probe (default HEALTH_CHECK_URL)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Probe timeout")

	return cmd
}
