package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/tgin/internal/api"
	"github.com/dgnsrekt/tgin/internal/config"
)

func routesCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Inspect and edit the route tree of a running router",
	}
	cmd.PersistentFlags().StringVar(&serverURL, "url", "", "router base URL (default derived from server.addr)")

	newClient := func() *api.HTTPClient {
		base := serverURL
		if base == "" {
			base = baseURL(cfg.Server.Addr)
		}
		return api.NewClient(base, 5, 10*time.Second, 500*time.Millisecond, 2, logger)
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Print the route tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newClient().ListRoutes(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(d)
		},
	}

	var sublevel []int
	addCmd := &cobra.Command{
		Use:   "add longpoll PATH | add webhook URL",
		Short: "Add a route to a strategy",
		Long: `Add a long-poll or webhook route to the root strategy, or to a nested
strategy selected by --sublevel, an index path from the root.

Examples:
  # New long-poll endpoint on the root strategy
  tgin routes add longpoll /bot3

  # Relay to a webhook from the second child of the root
  tgin routes add webhook https://example.com/hook --sublevel 1`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.AddRouteRequest{Type: args[0], Sublevel: sublevel}
			switch args[0] {
			case config.TypeLongPoll:
				req.Path = args[1]
			case config.TypeWebhook:
				req.URL = args[1]
			default:
				return fmt.Errorf("unknown route type %q (valid: longpoll, webhook)", args[0])
			}

			d, err := newClient().AddRoute(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(d)
		},
	}
	addCmd.Flags().IntSliceVar(&sublevel, "sublevel", nil, "index path of the target strategy (e.g. 0,1)")

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Print router health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newClient().Health(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(h)
		},
	}

	cmd.AddCommand(listCmd, addCmd, healthCmd)
	return cmd
}

// baseURL turns a listen address into a URL reachable from this host.
func baseURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
