package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/user/tasktalk/internal/gateway"
	"github.com/user/tasktalk/internal/types"
)

func init() {
	rootCmd.AddCommand(conversationCmd)
	conversationCmd.AddCommand(conversationListCmd, conversationShowCmd)
	conversationShowCmd.Flags().Int("limit", 50, "number of most recent messages to show")
}

var conversationCmd = &cobra.Command{
	Use:     "conversation",
	Aliases: []string{"conv"},
	Short:   "Inspect conversations",
}

func withConversations(fn func(ctx context.Context, store types.ConversationStore, user string) error) error {
	cfg := loadConfig()
	setupLogging(cfg)
	ctx := context.Background()
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()
	return fn(ctx, st.conversations, currentUser())
}

var conversationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, most recently updated first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConversations(func(ctx context.Context, store types.ConversationStore, user string) error {
			list, err := store.ListConversations(ctx, user)
			if err != nil {
				return fmt.Errorf("list conversations: %w", err)
			}
			if viper.GetBool("json") {
				return printJSON(list)
			}
			if len(list) == 0 {
				fmt.Println("No conversations found.")
				return nil
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Key", "Messages", "Updated"})
			for _, c := range list {
				count, err := store.CountTurns(ctx, c.ID)
				if err != nil {
					count = 0
				}
				tw.AppendRow(table.Row{c.ID, c.Key, count, c.UpdatedAt.Local().Format("2006-01-02 15:04:05")})
			}
			tw.Render()
			return nil
		})
	},
}

var conversationShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the messages of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withConversations(func(ctx context.Context, store types.ConversationStore, user string) error {
			sessions := gateway.NewSessionManager(store)
			id := types.ConversationID(args[0])
			if _, err := sessions.Get(ctx, id, user); err != nil {
				return err
			}
			turns, err := store.RecentTurns(ctx, id, limit)
			if err != nil {
				return fmt.Errorf("read turns: %w", err)
			}
			if viper.GetBool("json") {
				return printJSON(turns)
			}
			for _, t := range turns {
				fmt.Fprintf(os.Stdout, "[%s] %s: %s\n", t.CreatedAt.Local().Format("15:04:05"), t.Role, t.Content)
				if t.ActionTaken != "" {
					fmt.Fprintf(os.Stdout, "    %s via %s\n", t.ActionTaken, t.ToolUsed)
				}
			}
			return nil
		})
	},
}
