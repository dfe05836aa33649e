package main

import (
	"io"
	"slices"
	"strings"

	"github.com/openmined/fabsync/internal/sync"
	"github.com/spf13/cobra"
)

type itemView struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Type        string `json:"type"`
	FolderID    string `json:"folderId,omitempty"`
	Path        string `json:"path"`
}

func newItemsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "List the items of a workspace with the path they sync to",
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

			cred, client, err := connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			items, err := client.ListItems(cmd.Context(), cred.Token, cfg.WorkspaceID)
			if err != nil {
				return err
			}
			folders, err := client.ListFolders(cmd.Context(), cred.Token, cfg.WorkspaceID)
			if err != nil {
				return err
			}

			types, _ := cmd.Flags().GetStringSlice("type")
			tree := sync.NewFolderTree(folders, nil)

			views := make([]itemView, 0, len(items))
			for _, item := range items {
				if len(types) > 0 && !slices.ContainsFunc(types, func(t string) bool { return strings.EqualFold(t, item.Type) }) {
					continue
				}
				views = append(views, itemView{
					ID:          item.ID,
					DisplayName: item.DisplayName,
					Type:        item.Type,
					FolderID:    item.FolderID,
					Path:        tree.ItemPath(&item),
				})
			}

			return render(cmd.OutOrStdout(), format, views, func(w io.Writer) error {
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{v.ID, v.Type, v.DisplayName, v.Path})
				}
				return renderTable(w, []string{"ID", "TYPE", "NAME", "PATH"}, rows)
			})
		},
	}

	cmd.Flags().StringSliceP("type", "t", nil, "only list items of these types, e.g. Notebook")
	return cmd
}
