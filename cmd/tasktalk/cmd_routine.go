package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/user/tasktalk/internal/gateway"
	"github.com/user/tasktalk/internal/scheduler"
	"github.com/user/tasktalk/internal/state"
	"github.com/user/tasktalk/internal/types"
)

func init() {
	rootCmd.AddCommand(routineCmd)
	routineCmd.AddCommand(routineListCmd, routineAddCmd, routineRemoveCmd, routineEnableCmd, routineDisableCmd, routineRunCmd)

	routineAddCmd.Flags().String("name", "", "routine name (required)")
	routineAddCmd.Flags().String("prompt", "", "prompt text (required)")
	routineAddCmd.Flags().String("schedule", "", "cron schedule expression")
	routineAddCmd.Flags().String("deliver-to", "", "session key that receives the reply, e.g. telegram:42:42")
	_ = routineAddCmd.MarkFlagRequired("name")
	_ = routineAddCmd.MarkFlagRequired("prompt")
}

var routineCmd = &cobra.Command{
	Use:   "routine",
	Short: "Manage scheduled routines",
}

var routineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all routines",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		routines, err := routineStore(loadConfig()).List()
		if err != nil {
			return fmt.Errorf("list routines: %w", err)
		}
		if viper.GetBool("json") {
			return printJSON(routines)
		}
		if len(routines) == 0 {
			fmt.Println("No routines configured.")
			return nil
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"Name", "Schedule", "Enabled", "Owner", "Deliver To"})
		for _, r := range routines {
			tw.AppendRow(table.Row{r.Name, r.Schedule, r.Enabled, r.Owner, r.DeliverTo})
		}
		tw.Render()
		return nil
	},
}

var routineAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a routine owned by the current user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		prompt, _ := cmd.Flags().GetString("prompt")
		schedule, _ := cmd.Flags().GetString("schedule")
		deliverTo, _ := cmd.Flags().GetString("deliver-to")

		if schedule != "" {
			if err := scheduler.ValidateSchedule(schedule); err != nil {
				return err
			}
		}

		routine := &state.Routine{
			Name:      name,
			Prompt:    prompt,
			Schedule:  schedule,
			Owner:     currentUser(),
			DeliverTo: types.SessionKey(deliverTo),
			Enabled:   true,
		}
		if err := routineStore(loadConfig()).Add(routine); err != nil {
			return fmt.Errorf("add routine: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Routine %q added.\n", name)
		return nil
	},
}

var routineRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a routine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := routineStore(loadConfig()).Remove(args[0]); err != nil {
			return fmt.Errorf("remove routine: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Routine %q removed.\n", args[0])
		return nil
	},
}

var routineEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a routine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := routineStore(loadConfig()).SetEnabled(args[0], true); err != nil {
			return fmt.Errorf("enable routine: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Routine %q enabled.\n", args[0])
		return nil
	},
}

var routineDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a routine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := routineStore(loadConfig()).SetEnabled(args[0], false); err != nil {
			return fmt.Errorf("disable routine: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Routine %q disabled.\n", args[0])
		return nil
	},
}

var routineRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run a routine now and print its reply",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		st, err := openStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.close()

		registry, err := newRegistry(ctx, cfg, st.tasks)
		if err != nil {
			return err
		}
		ag, err := newAgent(cfg, registry)
		if err != nil {
			return err
		}
		gw := gateway.New(st.conversations, ag, 1)
		gw.Start(ctx)
		defer gw.Stop()

		res, err := scheduler.New(routineStore(cfg), gw, nil).Run(ctx, args[0], currentUser())
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, res.Reply.Text)
		return nil
	},
}
