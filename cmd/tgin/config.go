package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/tgin/internal/route"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and print the route tree it builds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load already validated the file; building catches the rest.
			root, err := route.Build(cfg.Route, route.Deps{
				Relay:  relayConfig(cfg.Relay),
				Logger: logger,
			})
			if err != nil {
				return err
			}

			fmt.Printf("configuration OK: %d update source(s)\n", len(cfg.Updates))
			return printJSON(root.Describe())
		},
	})
	return cmd
}
