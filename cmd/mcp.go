package cmd

import (
	"context"
	"errors"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/joescharf/lift/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for Claude Code integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an assistant run your workout with you: start a routine, log
sets as you call them out and review your history. Configure it with:

  {
    "mcpServers": {
      "lift": { "command": "lift", "args": ["mcp"] }
    }
  }

Available tools: lift_list_routines, lift_start_workout, lift_workout_state,
lift_complete_set, lift_skip_set, lift_skip_rest, lift_finish_workout,
lift_abandon_workout, lift_history`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun() error {
	owner := currentOwner()
	release, err := acquireOwnerLock(owner)
	if err != nil {
		return err
	}
	defer release()

	s, err := getStore()
	if err != nil {
		return err
	}
	m, err := getManager()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
	defer stop()
	if err := resumeForServing(ctx, m, owner); err != nil {
		return err
	}

	logger.Info("mcp server starting", "owner", owner)
	serveErr := mcp.NewServer(s, m, owner, buildVersion).ServeStdio(ctx)
	if errors.Is(serveErr, context.Canceled) {
		serveErr = nil
	}
	if err := m.Close(context.Background()); err != nil && serveErr == nil {
		serveErr = err
	}
	return serveErr
}
