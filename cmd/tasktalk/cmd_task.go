package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/user/tasktalk/internal/runtime"
	"github.com/user/tasktalk/internal/runtime/tools"
	"github.com/user/tasktalk/internal/types"
)

// Source tags tool calls made from the command line.
const Source = "cli"

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskListCmd, taskAddCmd, taskDoneCmd, taskUpdateCmd, taskRemoveCmd)

	taskListCmd.Flags().String("status", "all", "filter: all, pending or completed")
	taskAddCmd.Flags().String("description", "", "task description")
	taskDoneCmd.Flags().Bool("undo", false, "mark the task pending again")
	taskUpdateCmd.Flags().String("title", "", "new title")
	taskUpdateCmd.Flags().String("description", "", "new description")
}

// withRegistry opens the configured stores and runs fn against a task tool
// registry for the current user.
func withRegistry(fn func(ctx context.Context, reg *runtime.Registry, user string) error) error {
	cfg := loadConfig()
	setupLogging(cfg)
	ctx := runtime.WithSource(context.Background(), Source)

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	reg, err := newRegistry(ctx, cfg, st.tasks)
	if err != nil {
		return err
	}
	return fn(ctx, reg, currentUser())
}

// dispatch runs a tool and turns a failed result into an error.
func dispatch(ctx context.Context, reg *runtime.Registry, tool, user string, args runtime.Args) (any, error) {
	res := reg.Dispatch(ctx, tool, user, args)
	if !res.Success {
		return nil, fmt.Errorf("%s: %s", res.Kind, res.Error)
	}
	return res.Payload, nil
}

func renderTasks(tasks []*types.Task) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Title", "Status", "Description", "Created"})
	for _, t := range tasks {
		status := "pending"
		if t.Completed {
			status = "done"
		}
		tw.AppendRow(table.Row{t.ID, t.Title, status, t.Description, t.CreatedAt.Local().Format("2006-01-02 15:04")})
	}
	tw.Render()
}

func printTask(verb string, payload any) error {
	p, ok := payload.(tools.TaskPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", payload)
	}
	if viper.GetBool("json") {
		return printJSON(p.Task)
	}
	fmt.Fprintf(os.Stdout, "%s task %d: %s\n", verb, p.Task.ID, p.Task.Title)
	return nil
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		return withRegistry(func(ctx context.Context, reg *runtime.Registry, user string) error {
			payload, err := dispatch(ctx, reg, tools.ListTasks, user, runtime.Args{"status_filter": status})
			if err != nil {
				return err
			}
			list := payload.(tools.ListPayload)
			if viper.GetBool("json") {
				return printJSON(list)
			}
			if len(list.Tasks) == 0 {
				fmt.Println("No tasks found.")
				return nil
			}
			renderTasks(list.Tasks)
			fmt.Fprintf(os.Stdout, "%d total, %d pending, %d completed\n",
				list.Summary.Total, list.Summary.Pending, list.Summary.Completed)
			return nil
		})
	},
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, _ := cmd.Flags().GetString("description")
		return withRegistry(func(ctx context.Context, reg *runtime.Registry, user string) error {
			payload, err := dispatch(ctx, reg, tools.AddTask, user, runtime.Args{"title": args[0], "description": desc})
			if err != nil {
				return err
			}
			return printTask("Created", payload)
		})
	},
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseTaskID(args[0])
		if err != nil {
			return err
		}
		undo, _ := cmd.Flags().GetBool("undo")
		return withRegistry(func(ctx context.Context, reg *runtime.Registry, user string) error {
			payload, err := dispatch(ctx, reg, tools.CompleteTask, user, runtime.Args{"task_id": id, "completed": !undo})
			if err != nil {
				return err
			}
			verb := "Completed"
			if undo {
				verb = "Reopened"
			}
			return printTask(verb, payload)
		})
	},
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change a task's title or description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseTaskID(args[0])
		if err != nil {
			return err
		}
		toolArgs := runtime.Args{"task_id": id}
		if cmd.Flags().Changed("title") {
			title, _ := cmd.Flags().GetString("title")
			toolArgs["title"] = title
		}
		if cmd.Flags().Changed("description") {
			desc, _ := cmd.Flags().GetString("description")
			toolArgs["description"] = desc
		}
		return withRegistry(func(ctx context.Context, reg *runtime.Registry, user string) error {
			payload, err := dispatch(ctx, reg, tools.UpdateTask, user, toolArgs)
			if err != nil {
				return err
			}
			return printTask("Updated", payload)
		})
	},
}

var taskRemoveCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"remove"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseTaskID(args[0])
		if err != nil {
			return err
		}
		return withRegistry(func(ctx context.Context, reg *runtime.Registry, user string) error {
			payload, err := dispatch(ctx, reg, tools.DeleteTask, user, runtime.Args{"task_id": id})
			if err != nil {
				return err
			}
			p := payload.(tools.DeletePayload)
			fmt.Fprintln(os.Stdout, p.Message)
			return nil
		})
	},
}
