/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/ssargent/binderdump/pkg/storage"
)

// sessionsCmd represents the sessions command
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded capture sessions",
	Long: `List the capture sessions recorded in the catalog, oldest first.

Examples:
  binderdump sessions
  binderdump sessions show 2Zf0jJkM8mQb1Qn4a6Z9Yh1q3Xy
  binderdump sessions delete 2Zf0jJkM8mQb1Qn4a6Z9Yh1q3Xy`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatalog(cmd, func(catalog *storage.Catalog) error {
			sessions, err := catalog.List()
			if err != nil {
				return err
			}
			return listSessions(cmd.OutOrStdout(), sessions, time.Now())
		})
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one capture session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := ksuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid session id: %w", err)
		}
		return withCatalog(cmd, func(catalog *storage.Catalog) error {
			s, err := catalog.Read(id)
			if err != nil {
				return err
			}
			showSession(cmd.OutOrStdout(), s)
			return nil
		})
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a session from the catalog",
	Long:  `Remove a session from the catalog. The capture file itself is kept.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := ksuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid session id: %w", err)
		}
		return withCatalog(cmd, func(catalog *storage.Catalog) error {
			if err := catalog.Delete(id); err != nil {
				return err
			}
			cmd.Printf("Deleted session %s\n", id)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}

func withCatalog(cmd *cobra.Command, fn func(*storage.Catalog) error) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if container == nil {
		return fmt.Errorf("dependency container not initialized")
	}
	catalog, err := container.GetCatalogFactory().Open(cfg.CatalogDir())
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, catalog.Close())
	}()
	return fn(catalog)
}

func listSessions(w io.Writer, sessions []*storage.Session, now time.Time) error {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No capture sessions recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tSTATE\tPACKETS\tSIZE\tOUTPUT")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID,
			humanize.RelTime(s.Started(), now, "ago", "from now"),
			sessionDuration(s, now),
			s.State,
			humanize.Comma(int64(s.Packets)),
			humanize.Bytes(s.Bytes),
			s.Output,
		)
	}
	return tw.Flush()
}

func sessionDuration(s *storage.Session, now time.Time) string {
	if s.FinishedAt == 0 {
		return now.Sub(s.Started()).Round(time.Second).String()
	}
	return s.Duration().Round(time.Millisecond).String()
}

func showSession(w io.Writer, s *storage.Session) {
	fmt.Fprintf(w, "Session:   %s\n", s.ID)
	fmt.Fprintf(w, "State:     %s\n", s.State)
	fmt.Fprintf(w, "Started:   %s\n", s.Started().Format(time.RFC3339))
	if s.FinishedAt != 0 {
		fmt.Fprintf(w, "Duration:  %s\n", s.Duration().Round(time.Millisecond))
	}
	fmt.Fprintf(w, "Output:    %s\n", s.Output)
	if s.Spool != "" {
		fmt.Fprintf(w, "Spool:     %s\n", s.Spool)
	}
	if s.Replay {
		fmt.Fprintln(w, "Source:    replay")
	}
	fmt.Fprintf(w, "Device:    %s %s (kernel %s)\n", s.Model, s.OS, s.KernelVersion)
	fmt.Fprintf(w, "Events:    %s (%s dropped)\n", humanize.Comma(int64(s.Events)), humanize.Comma(int64(s.Dropped)))
	fmt.Fprintf(w, "Packets:   %s (%s)\n", humanize.Comma(int64(s.Packets)), humanize.Bytes(s.Bytes))
	if s.Error != "" {
		fmt.Fprintf(w, "Error:     %s\n", s.Error)
	}
}
