package main

import (
	"io"

	"github.com/spf13/cobra"
)

func newWorkspacesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workspaces",
		Short: "List the workspaces visible to the credential",
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

			cred, client, err := connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			workspaces, err := client.ListWorkspaces(cmd.Context(), cred.Token)
			if err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), format, workspaces, func(w io.Writer) error {
				rows := make([][]string, 0, len(workspaces))
				for _, ws := range workspaces {
					rows = append(rows, []string{ws.ID, ws.Name})
				}
				return renderTable(w, []string{"ID", "NAME"}, rows)
			})
		},
	}
}
