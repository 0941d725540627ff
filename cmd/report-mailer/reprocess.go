package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sungwon/report-mailer/internal/queue"
)

func newReprocessCmd(configPath *string) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "reprocess [entry-id...]",
		Short: "Move dead-lettered deliveries back to the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !list && len(args) == 0 {
				return errors.New("give DLQ entry ids or --list")
			}

			ctx := cmd.Context()
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.openQueue(ctx); err != nil {
				return err
			}

			if list {
				rdlq, ok := a.backend.DLQ.(*queue.RedisDLQ)
				if !ok {
					return fmt.Errorf("--list is only supported by the redis queue, not %s", a.cfg.Queue.Type)
				}
				entries, err := rdlq.List(ctx, 100)
				if err != nil {
					return err
				}
				ids := make([]string, 0, len(entries))
				for id := range entries {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				out := cmd.OutOrStdout()
				for _, id := range ids {
					e := entries[id]
					reportID := "-"
					if e.OriginalMessage != nil {
						reportID = e.OriginalMessage.ReportID
					} else if e.RawPayload != "" {
						reportID = "raw:" + strconv.Quote(e.RawPayload)
					}
					fmt.Fprintf(out, "%s\t%s\tattempts=%d\t%s\t%s\n",
						id, reportID, e.Attempts, e.MovedAt.Format(time.RFC3339), e.FinalError)
				}
				return nil
			}

			n, err := a.backend.DLQ.Reprocess(ctx, args)
			if err != nil {
				return fmt.Errorf("reprocess: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reprocessed %d of %d\n", n, len(args))
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list DLQ entries instead of reprocessing")
	return cmd
}
