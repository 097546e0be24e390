package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/retracehq/retrace/client"
)

func newEntityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Manage tracked entities",
	}
	cmd.AddCommand(entityCreateCmd())
	cmd.AddCommand(entityGetCmd())
	cmd.AddCommand(entityUpdateCmd())
	cmd.AddCommand(entityDeleteCmd())
	cmd.AddCommand(entityHistoryCmd())
	return cmd
}

func entityCreateCmd() *cobra.Command {
	var attrsJSON string
	cmd := &cobra.Command{
		Use:   "create <type> <id>",
		Short: "Create a tracked entity",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			req := &client.CreateEntityRequest{ID: args[1]}
			if attrsJSON != "" {
				if err := json.Unmarshal([]byte(attrsJSON), &req.Attributes); err != nil {
					fatal("parse attrs", err)
				}
			}
			change, err := apiClient.Entities.Create(context.Background(), args[0], req)
			if err != nil {
				fatal("create entity", err)
			}
			output(change, change.Entity.ID)
		},
	}
	cmd.Flags().StringVar(&attrsJSON, "attrs", "", "Attributes as JSON")
	return cmd
}

func entityGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <type> <id>",
		Short: "Get a tracked entity",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			entity, err := apiClient.Entities.Get(context.Background(), args[0], args[1])
			if err != nil {
				fatal("get entity", err)
			}
			output(entity, entity.ID)
		},
	}
}

func entityUpdateCmd() *cobra.Command {
	var attrsJSON string
	cmd := &cobra.Command{
		Use:   "update <type> <id>",
		Short: "Replace a tracked entity's attributes",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			var attrs map[string]json.RawMessage
			if err := json.Unmarshal([]byte(attrsJSON), &attrs); err != nil {
				fatal("parse attrs", err)
			}
			change, err := apiClient.Entities.Update(context.Background(), args[0], args[1], attrs)
			if err != nil {
				fatal("update entity", err)
			}
			if change.Audit == nil {
				fmt.Println("no change")
				return
			}
			output(change, fmt.Sprintf("%d", change.Audit.Version))
		},
	}
	cmd.Flags().StringVar(&attrsJSON, "attrs", "", "Attributes as JSON (required)")
	_ = cmd.MarkFlagRequired("attrs")
	return cmd
}

func entityDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Delete a tracked entity (its audit chain survives)",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			rec, err := apiClient.Entities.Delete(context.Background(), args[0], args[1])
			if err != nil {
				fatal("delete entity", err)
			}
			output(rec, fmt.Sprintf("%d", rec.Version))
		},
	}
}

func entityHistoryCmd() *cobra.Command {
	var uptoVersion int
	cmd := &cobra.Command{
		Use:   "history <type> <id>",
		Short: "Show an entity's audit chain, oldest first",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			records, err := apiClient.Audits.History(context.Background(), args[0], args[1], uptoVersion)
			if err != nil {
				fatal("get history", err)
			}
			if flagFmt == "table" {
				formatTable(auditHeaders(), auditRows(records))
				return
			}
			output(records, "")
		},
	}
	cmd.Flags().IntVar(&uptoVersion, "upto-version", 0, "Only records up to this version (0 = all)")
	return cmd
}
