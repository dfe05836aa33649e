package main

import (
	"bytes"
	"io"
	"testing"

	"github.com/openmined/fabsync/internal/sync"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	WorkspaceID string   `json:"workspaceId"`
	Items       []string `json:"items,omitempty"`
}

func TestRender(t *testing.T) {
	v := sample{WorkspaceID: "w1", Items: []string{"a", "b"}}

	var out bytes.Buffer
	require.NoError(t, render(&out, outputJSON, v, nil))
	assert.JSONEq(t, `{"workspaceId":"w1","items":["a","b"]}`, out.String())

	out.Reset()
	require.NoError(t, render(&out, outputYAML, v, nil))
	assert.Contains(t, out.String(), "workspaceId: w1\n")
	assert.Contains(t, out.String(), "- a\n")
	assert.NotContains(t, out.String(), "{")

	out.Reset()
	require.NoError(t, render(&out, outputText, v, func(w io.Writer) error {
		_, err := w.Write([]byte("text form"))
		return err
	}))
	assert.Equal(t, "text form", out.String())
}

func TestRenderTable(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, renderTable(&out, []string{"ID", "NAME"}, [][]string{{"w1", "Sales"}, {"w2", "Ops"}}))

	got := stripANSI(out.String())
	assert.Contains(t, got, "ID")
	assert.Contains(t, got, "Sales")
	assert.Contains(t, got, "w2")
}

func TestOutputFormat(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().String("output", "", "")

	format, err := outputFormat(cmd)
	require.NoError(t, err)
	assert.Equal(t, outputText, format)

	require.NoError(t, cmd.Flags().Set("output", "yaml"))
	format, err = outputFormat(cmd)
	require.NoError(t, err)
	assert.Equal(t, outputYAML, format)

	require.NoError(t, cmd.Flags().Set("output", "xml"))
	_, err = outputFormat(cmd)
	assert.Error(t, err)
}

func TestPrintSyncResult_ReportsPartialWrites(t *testing.T) {
	result := &sync.SyncResult{
		Status: sync.StatusPartialFailure,
		Failed: []sync.FailedItem{{
			ItemRef: sync.ItemRef{ID: "a", Path: "Dev/NB1.Notebook"},
			Kind:    sync.KindFilesystem,
			Reason:  "disk full",
			Written: []string{"notebook-content.py"},
		}},
	}

	var out bytes.Buffer
	require.NoError(t, printSyncResult(&out, result))
	text := stripANSI(out.String())
	assert.Contains(t, text, "Dev/NB1.Notebook")
	assert.Contains(t, text, "left on disk: Dev/NB1.Notebook/notebook-content.py")
}
