package main

import (
	"fmt"
	"io"
	"path"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/openmined/fabsync/internal/sync"
	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [item-id...]",
		Short: "Export item definitions into the local tree",
		Long: `Export item definitions into the local tree.

Without arguments the items changed according to the workspace's git status are
synced. Pass item ids, or --all, to sync items of workspaces without git integration.`,
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

			req := &sync.SyncRequest{WorkspaceID: cfg.WorkspaceID, ItemIDs: args}
			req.All, _ = cmd.Flags().GetBool("all")
			req.Types, _ = cmd.Flags().GetStringSlice("type")
			req.Include, _ = cmd.Flags().GetStringSlice("include")
			req.Format, _ = cmd.Flags().GetString("format")
			req.Prune, _ = cmd.Flags().GetBool("prune")
			req.DryRun, _ = cmd.Flags().GetBool("dry-run")

			result, runErr := engine.Sync(cmd.Context(), req)
			if runErr != nil && result == nil {
				return runErr
			}

			if err := render(cmd.OutOrStdout(), format, result, func(w io.Writer) error {
				return printSyncResult(w, result)
			}); err != nil {
				return err
			}

			if runErr != nil {
				return runErr
			}
			switch result.Status {
			case sync.StatusPartialFailure, sync.StatusCancelled:
				return fmt.Errorf("sync finished with status %s", result.Status)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.SortFlags = false
	flags.BoolP("all", "a", false, "sync every item of the workspace")
	flags.StringSliceP("type", "t", nil, "only sync items of these types, e.g. Notebook")
	flags.StringSlice("include", nil, "only sync items whose path matches one of these globs")
	flags.String("format", "", "definition format, e.g. ipynb")
	flags.Bool("prune", false, "remove files of synced items that are no longer part of their definition")
	flags.Bool("dry-run", false, "show what would be written without touching the tree")
	flags.Int("workers", 0, "items exported in parallel (default 1)")
	flags.Duration("poll-interval", 0, "delay between export job polls (default 2s)")
	flags.Int("max-polls", 0, "maximum polls per export job (default 150)")
	flags.Duration("poll-timeout", 0, "maximum time to wait for an export job (default 10m)")

	return cmd
}

func printSyncResult(w io.Writer, result *sync.SyncResult) error {
	if result.DryRun {
		fmt.Fprintln(w, yellow.Render("Dry run, nothing was written"))
	}

	if result.Status == sync.StatusNotConfigured {
		_, err := fmt.Fprintln(w, yellow.Render("Git not configured for workspace.")+" Pass item ids or --all to sync without git.")
		return err
	}

	var total int64
	for _, s := range result.Succeeded {
		total += s.Bytes
		fmt.Fprintf(w, "%s %s %s\n", green.Render("synced "), s.Path,
			gray.Render(fmt.Sprintf("(%d written, %d unchanged, %s)", s.Written, s.Unchanged, humanize.Bytes(uint64(s.Bytes)))))
	}
	for _, f := range result.Failed {
		fmt.Fprintf(w, "%s %s %s\n", red.Render("failed "), orNone(f.Path), gray.Render(fmt.Sprintf("[%s] %s", f.Kind, f.Reason)))
		for _, part := range f.Written {
			fmt.Fprintf(w, "        %s\n", yellow.Render("left on disk: "+path.Join(f.Path, part)))
		}
	}
	for _, s := range result.Skipped {
		name := s.Path
		if name == "" {
			name = orNone(s.DisplayName)
		}
		fmt.Fprintf(w, "%s %s %s\n", yellow.Render("skipped"), name, gray.Render(s.Reason))
	}

	status := green
	switch result.Status {
	case sync.StatusPartialFailure, sync.StatusCancelled:
		status = yellow
	case sync.StatusError:
		status = red
	}

	_, err := fmt.Fprintf(w, "%s %d synced, %d failed, %d skipped, %s in %s\n",
		status.Render(string(result.Status)),
		len(result.Succeeded), len(result.Failed), len(result.Skipped),
		humanize.Bytes(uint64(total)), result.Duration.Round(time.Millisecond))
	return err
}
