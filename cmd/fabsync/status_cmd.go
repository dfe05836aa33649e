package main

import (
	"fmt"
	"io"

	"github.com/openmined/fabsync/internal/sync"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the git divergence of a workspace and whether the local tree is current",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.RequireWorkspace(); err != nil {
				return err
			}

			client := newClient(cfg)
			defer client.Close()

			engine, err := newEngine(cfg, client)
			if err != nil {
				return err
			}

			report, err := engine.Status(cmd.Context(), cfg.WorkspaceID)
			if err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), format, report, func(w io.Writer) error {
				return printStatus(w, report)
			})
		},
	}
}

func printStatus(w io.Writer, report *sync.StatusReport) error {
	fmt.Fprintf(w, "%s %s\n", bold.Render("Workspace"), report.WorkspaceID)

	if !report.Configured {
		_, err := fmt.Fprintln(w, yellow.Render("Git not configured"))
		return err
	}

	if report.Outcome == sync.OutcomeSynced {
		fmt.Fprintln(w, green.Render("Synced with Git"))
	} else {
		rows := make([][]string, 0, len(report.Changes))
		for _, c := range report.Changes {
			rows = append(rows, []string{c.DisplayName, c.ItemType, string(c.Kind), c.WorkspaceChange, c.RemoteChange})
		}
		if err := renderTable(w, []string{"ITEM", "TYPE", "KIND", "WORKSPACE", "REMOTE"}, rows); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "%-16s %s\n", "Workspace head", cyan.Render(orNone(report.WorkspaceHead)))
	fmt.Fprintf(w, "%-16s %s\n", "Local revision", cyan.Render(orNone(report.LocalRevision)))

	action := "Sync / checkout"
	if report.Action == sync.ActionShowDiff {
		action = "Show diff"
	}
	_, err := fmt.Fprintf(w, "%-16s %s\n", "Action", bold.Render(action))
	return err
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
