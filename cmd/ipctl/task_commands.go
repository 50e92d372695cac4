package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ipstudio/internal/domain"
	"ipstudio/internal/domain/jsoncfg"
)

func newTaskCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create, inspect, wait on and retry tasks",
	}
	cmd.AddCommand(newTaskCreateCommand(ctx))
	cmd.AddCommand(newTaskGetCommand(ctx))
	cmd.AddCommand(newTaskWaitCommand(ctx))
	cmd.AddCommand(newTaskRetryCommand(ctx))
	return cmd
}

func newTaskCreateCommand(ctx *commandContext) *cobra.Command {
	var req jsoncfg.CreateTaskJSON
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.client()
			if err != nil {
				return err
			}
			req.Normalize()
			if err := req.Validate(); err != nil {
				return err
			}
			created, err := c.CreateTask(cmd.Context(), req)
			if err != nil {
				return err
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, created)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", created.TaskID, created.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.TaskType, "type", "", "Task type, e.g. ip_generation or keychain")
	cmd.Flags().StringVar(&req.Prompt, "prompt", "", "Generation prompt")
	cmd.Flags().StringVar(&req.OriginalImageURL, "image", "", "Source image URL")
	cmd.Flags().StringVar(&req.BatchID, "batch", "", "Batch id to join")
	cmd.Flags().StringVar(&req.ParentCharacterID, "character", "", "Parent character id")
	return cmd
}

func newTaskGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <task-id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.client()
			if err != nil {
				return err
			}
			t, err := c.GetTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return ctx.printTask(cmd, t)
		},
	}
}

func newTaskWaitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "wait <task-id>",
		Short: "Poll a task until it completes or fails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.client()
			if err != nil {
				return err
			}
			t, err := ctx.poller().UntilTerminal(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}
			if err := ctx.printTask(cmd, t); err != nil {
				return err
			}
			if t.Status == domain.TaskStatusFailed {
				return fmt.Errorf("task %s failed", t.ID)
			}
			return nil
		},
	}
}

func newTaskRetryCommand(ctx *commandContext) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "retry <task-id>",
		Short: "Reset a failed task and resubmit it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.client()
			if err != nil {
				return err
			}
			t, err := c.RetryTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if wait {
				if t, err = ctx.poller().UntilTerminal(cmd.Context(), c, args[0]); err != nil {
					return err
				}
			}
			return ctx.printTask(cmd, t)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the retried task is terminal")
	return cmd
}

func (c *commandContext) printTask(cmd *cobra.Command, t *domain.GenerationTask) error {
	if c.jsonOutput {
		return writeJSON(cmd, jsoncfg.NewTaskJSON(*t))
	}
	rows := [][]string{
		{"id", t.ID},
		{"type", string(t.TaskType)},
		{"status", string(t.Status)},
	}
	if v := domain.Deref(t.ResultImageURL); v != "" {
		rows = append(rows, []string{"image", v})
	}
	if v := t.ModelURL(); v != "" {
		rows = append(rows, []string{"model", v})
	}
	if v := domain.Deref(t.ErrorMessage); v != "" {
		rows = append(rows, []string{"error", v})
	}
	if v := domain.Deref(t.BatchID); v != "" {
		rows = append(rows, []string{"batch", v})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"field", "value"}, rows, nil))
	return nil
}

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
