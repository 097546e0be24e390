package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/retracehq/retrace/client"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Record and query audit records",
	}
	cmd.AddCommand(auditCreateCmd())
	cmd.AddCommand(auditQueryCmd())
	cmd.AddCommand(auditPurgeCmd())
	return cmd
}

func auditCreateCmd() *cobra.Command {
	var diffJSON string
	cmd := &cobra.Command{
		Use:   "create <type> <id> <action>",
		Short: "Record a change observed outside the server's entity store",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			req := &client.CreateAuditRequest{
				Auditable: client.EntityRef{Type: args[0], ID: args[1]},
				Action:    args[2],
			}
			if diffJSON != "" {
				if err := json.Unmarshal([]byte(diffJSON), &req.Diff); err != nil {
					fatal("parse diff", err)
				}
			}
			rec, err := apiClient.Audits.Create(context.Background(), req)
			if err != nil {
				fatal("create audit record", err)
			}
			output(rec, strconv.FormatInt(rec.ID, 10))
		},
	}
	cmd.Flags().StringVar(&diffJSON, "diff", "", `Diff as JSON, e.g. '{"name":{"old":"a","new":"b"}}'`)
	return cmd
}

func auditQueryCmd() *cobra.Command {
	var entityType, entityID, action, actorID, groupTag, since string
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query audit records, newest first",
		Run: func(cmd *cobra.Command, args []string) {
			opts := &client.AuditQueryOptions{
				EntityType: entityType,
				EntityID:   entityID,
				Action:     action,
				ActorID:    actorID,
				GroupTag:   groupTag,
				Limit:      limit,
				Offset:     offset,
			}
			if since != "" {
				t, err := time.Parse(time.RFC3339, since)
				if err != nil {
					fatal("parse since", err)
				}
				opts.Since = &t
			}
			records, hasMore, err := apiClient.Audits.Query(context.Background(), opts)
			if err != nil {
				fatal("query audit records", err)
			}
			if flagFmt == "table" {
				formatTable(auditHeaders(), auditRows(records))
				if hasMore {
					fmt.Println("(more records available, use --offset)")
				}
				return
			}
			if flagFmt == "quiet" {
				for _, r := range records {
					fmt.Println(r.ID)
				}
				return
			}
			output(map[string]any{"data": records, "has_more": hasMore}, "")
		},
	}
	cmd.Flags().StringVar(&entityType, "entity-type", "", "Filter by entity type")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "Filter by entity id")
	cmd.Flags().StringVar(&action, "action", "", "Filter by action: create|update|delete")
	cmd.Flags().StringVar(&actorID, "actor-filter", "", "Filter by actor id")
	cmd.Flags().StringVar(&groupTag, "group", "", "Filter by change-group tag")
	cmd.Flags().StringVar(&since, "since", "", "Only records created after this RFC3339 timestamp")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Offset")
	return cmd
}

func auditPurgeCmd() *cobra.Command {
	var retentionDays int
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete audit records older than the retention window",
		Run: func(cmd *cobra.Command, args []string) {
			deleted, err := apiClient.Audits.Purge(context.Background(), retentionDays)
			if err != nil {
				fatal("purge audit records", err)
			}
			output(map[string]int{"deleted": deleted}, strconv.Itoa(deleted))
		},
	}
	cmd.Flags().IntVar(&retentionDays, "retention-days", 90, "Keep records newer than this many days")
	return cmd
}

func auditHeaders() []string {
	return []string{"ID", "ENTITY", "ACTION", "VERSION", "ACTOR", "GROUP", "CREATED"}
}

func auditRows(records []client.AuditRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		actor := ""
		if r.Actor != nil {
			if r.Actor.Name != "" {
				actor = r.Actor.Name
			} else {
				actor = r.Actor.Type + "/" + r.Actor.ID
			}
		}
		group := ""
		if r.GroupTag != nil {
			group = *r.GroupTag
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.Auditable.Type + "/" + r.Auditable.ID,
			r.Action,
			strconv.Itoa(r.Version),
			actor,
			group,
			r.CreatedAt.Format(time.RFC3339),
		})
	}
	return rows
}
