// Command assistant is the terminal client of the reasoning assistant.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/piotrzwolinski/synapseos-sub000/internal/config"
)

var (
	configPath string
	logPath    string
	cfg        *config.Config

	rootCmd = &cobra.Command{
		Use:           "assistant",
		Short:         "Terminal client for the streaming reasoning assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if it exists
			_ = godotenv.Load()

			var err error
			cfg, err = config.LoadFile(configPath)
			if err != nil {
				return err
			}
			return nil
		},
	}

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		Long: `Start an interactive session. Type a question and press enter; reasoning
steps stream in while the answer is prepared. Commands:
  /rate N     rate the last evaluated answer (1-5)
  /graph [N]  show the reasoning graph of the last answer at step N
  /reset      start a new session
  /quit       exit`,
		Args: cobra.NoArgs,
		RunE: runChat,
	}

	graphCmd = &cobra.Command{
		Use:   "graph <file>",
		Short: "Transform traversal records into a graph",
		Long: `Read a JSON file holding a list of traversal records, or an answer object
with "graph_traversals", and print the resulting graph. With --step the
playback state at that step is printed instead.`,
		Args: cobra.ExactArgs(1),
		RunE: runGraph,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "config file")
	rootCmd.PersistentFlags().StringVar(&logPath, "log-file", "", "write JSON logs to this file")

	graphCmd.Flags().IntVar(&graphStep, "step", -1, "print playback state at this step")
	graphCmd.Flags().StringVarP(&graphFormat, "output", "o", "text", "output format: text or json")

	rootCmd.AddCommand(chatCmd, graphCmd)
}

// newLogger returns a JSON logger writing to --log-file. Without one, logs
// are discarded so they do not corrupt the terminal UI.
func newLogger() (*slog.Logger, func() error, error) {
	if logPath == "" {
		return slog.New(slog.NewJSONHandler(io.Discard, nil)), func() error { return nil }, nil
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	return logger, f.Close, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
