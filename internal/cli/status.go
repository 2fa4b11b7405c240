package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bunko/bunko/pkg/setup"
)

// statusCmd checks the collaborators a session depends on
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the search service and inference providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmdContext(cmd), 30*time.Second)
		defer cancel()

		stack, release, err := openStack(ctx)
		if err != nil {
			return err
		}
		defer release()

		return showStatus(ctx, cmd.OutOrStdout(), stack)
	},
}

func showStatus(ctx context.Context, w io.Writer, stack *setup.Stack) error {
	fmt.Fprintln(w, "=== Search Service ===")
	fmt.Fprintln(w)
	state := "offline"
	if stack.Client.IsAvailable(ctx) {
		state = "ready"
	}
	fmt.Fprintf(w, "Endpoint: %s\n", stack.Config.Archive.BaseURL)
	fmt.Fprintf(w, "Status:   %s\n", state)
	fmt.Fprintf(w, "Circuit:  %s\n", stack.Client.BreakerState())
	cache := "disabled"
	if stack.Config.Cache.Enabled {
		cache = stack.Config.Cache.Addr
	}
	fmt.Fprintf(w, "Cache:    %s\n", cache)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Inference Providers ===")
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tDEFAULT\tSTATUS")
	fmt.Fprintln(tw, "--------\t-------\t------")
	for _, p := range stack.Providers.Status(ctx) {
		def := ""
		if p.Default {
			def = "*"
		}
		status := "offline"
		if p.Available {
			status = "ready"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, def, status)
	}
	tw.Flush()

	fmt.Fprintln(w)
	if err := setup.QuickCheck(ctx, stack.Providers); err != nil {
		fmt.Fprintf(w, "Warning: %v\n", err)
		if stack.Config.Inference.Provider == "ollama" {
			fmt.Fprintln(w, "Start Ollama with: ollama serve")
		}
	}
	return nil
}
