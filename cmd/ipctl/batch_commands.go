package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"ipstudio/internal/domain"
	"ipstudio/internal/domain/jsoncfg"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Inspect batches of sibling tasks",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <batch-id>",
		Short: "List a batch's tasks with their summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.client()
			if err != nil {
				return err
			}
			b, err := c.GetBatch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return ctx.printBatch(cmd, b)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "wait <batch-id>",
		Short: "Poll until every task in the batch is terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.client()
			if err != nil {
				return err
			}
			if _, err := ctx.poller().UntilBatchTerminal(cmd.Context(), c, args[0]); err != nil {
				return err
			}
			b, err := c.GetBatch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return ctx.printBatch(cmd, b)
		},
	})
	return cmd
}

func (c *commandContext) printBatch(cmd *cobra.Command, b jsoncfg.BatchJSON) error {
	if c.jsonOutput {
		return writeJSON(cmd, b)
	}
	rows := make([][]string, 0, len(b.Tasks))
	for _, t := range b.Tasks {
		result := ""
		if t.Result != nil {
			result = t.Result.ImageURL
			if t.Result.ModelURL != "" {
				result = t.Result.ModelURL
			}
		}
		errMsg := ""
		if t.Error != nil {
			errMsg = *t.Error
		}
		rows = append(rows, []string{shortID(t.ID), t.TaskType, t.Status, result, errMsg})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable([]string{"task", "type", "status", "result", "error"}, rows, nil))
	fmt.Fprintln(out, summaryLine(b.Summary))
	return nil
}

func summaryLine(s domain.BatchSummary) string {
	state := "in progress"
	if s.Terminal() {
		state = "done"
	}
	return "total " + strconv.Itoa(s.Total) +
		", pending " + strconv.Itoa(s.Pending) +
		", processing " + strconv.Itoa(s.Processing) +
		", completed " + strconv.Itoa(s.Completed) +
		", failed " + strconv.Itoa(s.Failed) +
		" (" + state + ")"
}
