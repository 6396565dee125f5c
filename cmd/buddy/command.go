package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/newthinker/buddy/internal/app"
	"github.com/newthinker/buddy/internal/command"
	"github.com/spf13/cobra"
)

var commandCmd = &cobra.Command{
	Use:   "command <text>...",
	Short: "Run a chat command locally",
	Long: `Run one chat command (buddy, stock, show_all, ticker, ping, help) and print
the replies. Reports produced by buddy and stock are also sent to the
configured notifiers.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

func init() {
	rootCmd.AddCommand(commandCmd)
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := app.Build(cfg, log)
	if err != nil {
		return fmt.Errorf("building app: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	reply := a.Dispatcher().Handle(ctx, command.Message{
		Author: "cli",
		Text:   strings.Join(args, " "),
	})
	for _, m := range reply.Messages {
		fmt.Println(strings.TrimRight(m, "\n"))
	}
	return nil
}
