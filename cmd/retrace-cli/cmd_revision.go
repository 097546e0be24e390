package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newRevisionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revision",
		Short: "Reconstruct point-in-time entity revisions",
	}
	cmd.AddCommand(revisionGetCmd())
	return cmd
}

func revisionGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <type> <id> <version>",
		Short: "Materialize an entity as it was at a version",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			version, err := strconv.Atoi(args[2])
			if err != nil {
				fatal("parse version", err)
			}
			if version < 1 {
				fatal("parse version", fmt.Errorf("version must be >= 1, got %d", version))
			}
			snap, err := apiClient.Revisions.Get(context.Background(), args[0], args[1], version)
			if err != nil {
				fatal("get revision", err)
			}
			output(snap, strconv.Itoa(snap.Version))
		},
	}
}

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the audited types registered on the server",
		Run: func(cmd *cobra.Command, args []string) {
			types, err := apiClient.Types(context.Background())
			if err != nil {
				fatal("list types", err)
			}
			if flagFmt == "quiet" {
				for _, t := range types {
					formatQuiet(t)
				}
				return
			}
			output(types, "")
		},
	}
}
