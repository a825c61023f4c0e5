package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rickgao/realtime-client/internal/version"
)

func versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), version.Version)
				return
			}
			info := version.Get()
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
			fmt.Fprintf(cmd.OutOrStdout(), "  Go version: %s\n", info.GoVersion)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only version number")

	return cmd
}
