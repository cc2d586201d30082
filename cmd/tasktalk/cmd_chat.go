package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/user/tasktalk/internal/gateway"
	"github.com/user/tasktalk/internal/runtime"
	"github.com/user/tasktalk/internal/types"
)

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("conversation", "", "continue this conversation id instead of the CLI session")
}

// cliKey is the session key that keeps the CLI in one ongoing conversation
// per user.
func cliKey(user string) types.SessionKey {
	return types.NewSessionKey(Source, user)
}

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat with the task agent; without a message, read lines from stdin",
	Args:  cobra.MaximumNArgs(1),
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

		convID, _ := cmd.Flags().GetString("conversation")
		user := currentUser()
		req := gateway.Request{Owner: user, Source: Source}
		if convID != "" {
			req.ConversationID = types.ConversationID(convID)
		} else {
			req.Key = cliKey(user)
		}

		if len(args) == 1 {
			req.Message = args[0]
			return chatOnce(ctx, gw, req, os.Stdout)
		}
		return chatLoop(ctx, gw, req, os.Stdin, os.Stdout)
	},
}

func chatOnce(ctx context.Context, gw *gateway.Gateway, req gateway.Request, out io.Writer) error {
	res, err := gw.Submit(ctx, req)
	if err != nil {
		return err
	}
	if viper.GetBool("json") {
		return printJSON(res.Reply)
	}
	fmt.Fprintln(out, res.Reply.Text)
	if res.Reply.ActionTaken != "" {
		fmt.Fprintf(out, "  (%s)\n", res.Reply.ActionTaken)
	}
	return nil
}

// chatLoop submits each non-empty input line as a turn until EOF or "exit".
// Validation failures are printed and the loop continues.
func chatLoop(ctx context.Context, gw *gateway.Gateway, req gateway.Request, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			fmt.Fprint(out, "> ")
			continue
		case "exit", "quit":
			return nil
		}
		req.Message = line
		if err := chatOnce(ctx, gw, req, out); err != nil {
			var verr *runtime.ValidationError
			if !errors.As(err, &verr) {
				return err
			}
			fmt.Fprintf(out, "⚠️ %s\n", verr.Msg)
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}
