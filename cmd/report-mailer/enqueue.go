package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sungwon/report-mailer/internal/delivery"
	"github.com/sungwon/report-mailer/internal/report"
	"github.com/sungwon/report-mailer/internal/storage"
)

func newEnqueueCmd(configPath *string) *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "enqueue [report-id...]",
		Short: "Publish delivery payloads for reports",
		Long: "Publish delivery payloads for the given report ids, or for every report " +
			"in --status (pending or failed). Reports already sent are skipped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && status == "" {
				return errors.New("give report ids or --status")
			}
			if status != "" && status != string(report.StatusPending) && status != string(report.StatusFailed) {
				return fmt.Errorf("--status must be pending or failed, got %q", status)
			}

			ctx := cmd.Context()
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.openDB(ctx); err != nil {
				return err
			}
			if err := a.openQueue(ctx); err != nil {
				return err
			}
			reports := storage.NewReportStore(a.db)

			ids := args
			if status != "" {
				found, err := reports.ListIDsByStatus(ctx, report.Status(status), limit)
				if err != nil {
					return err
				}
				ids = append(ids, found...)
			}

			d := delivery.NewDispatcher(reports, a.backend.Enqueuer, a.log)
			var enqueued, skipped int
			for _, id := range ids {
				msg, entryID, err := d.Enqueue(ctx, id)
				switch {
				case errors.Is(err, report.ErrAlreadySent):
					skipped++
					continue
				case err != nil:
					return err
				}
				enqueued++
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", id, msg.ID, entryID)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "enqueued %d, skipped %d already sent\n", enqueued, skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "enqueue every report in this status (pending or failed)")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum reports selected by --status")
	return cmd
}
