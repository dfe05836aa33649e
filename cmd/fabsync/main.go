package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/fabsync/internal/auth"
	"github.com/openmined/fabsync/internal/config"
	"github.com/openmined/fabsync/internal/fabricsdk"
	"github.com/openmined/fabsync/internal/utils"
	"github.com/openmined/fabsync/internal/version"
	"github.com/spf13/cobra"
)

var logLevel = new(slog.LevelVar)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "fabsync",
		Short:         "Sync Microsoft Fabric workspace items into a local git tree",
		Version:       version.Detailed(),
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				logLevel.Set(slog.LevelDebug)
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.SortFlags = false
	flags.StringP("config", "c", config.DefaultConfigPath, "fabsync config file")
	flags.StringP("root", "r", "", "local git tree items are written to (default: current directory)")
	flags.StringP("workspace", "w", "", "workspace id")
	flags.String("auth", "", "credential source: token, client_credentials or azcli")
	flags.String("fabric-url", "", "Fabric API base url")
	flags.String("powerbi-url", "", "Power BI API base url")
	flags.Float64("rate", 0, "client side request limit per second (default 5)")
	flags.StringP("output", "o", outputText, "output format: text, json or yaml")
	flags.BoolP("verbose", "v", false, "debug logging")

	cmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newWorkspacesCmd(),
		newItemsCmd(),
		newStatusCmd(),
		newSyncCmd(),
	)

	return cmd
}

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	logFile, err := openLogFile(config.DefaultLogFilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	setupLogger(os.Stderr, logFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, red.Render("Error: ")+err.Error())
		if hint := errorHint(err); hint != "" {
			fmt.Fprintln(os.Stderr, gray.Render(hint))
		}
		stop()
		os.Exit(1)
	}
}

// errorHint suggests a next step for errors the user can act on
func errorHint(err error) string {
	var remoteErr *fabricsdk.RemoteError
	if errors.As(err, &remoteErr) && remoteErr.IsUnauthorized() {
		return "The credential was rejected. Check --auth and that the account can access the workspace."
	}
	if errors.Is(err, auth.ErrNoSession) {
		return "No credential available. Set FABSYNC_TOKEN, configure client credentials or run az login."
	}
	return ""
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// setupLogger sends leveled, colored logs to the terminal and everything to the log file.
// stdout is reserved for command output.
func setupLogger(term *os.File, file io.Writer) {
	logLevel.Set(slog.LevelInfo)

	termHandler := tint.NewHandler(term, &tint.Options{
		Level:      logLevel,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(term.Fd()),
	})
	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})

	slog.SetDefault(slog.New(utils.NewMultiLogHandler(termHandler, fileHandler)))
}
