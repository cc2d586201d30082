package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/user/tasktalk/internal/intent"
)

func init() {
	rootCmd.AddCommand(intentCmd)
}

var intentCmd = &cobra.Command{
	Use:   "intent <message>",
	Short: "Show how the rule matcher classifies a message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m := intent.Classify(args[0])
		if viper.GetBool("json") {
			return printJSON(m)
		}
		fmt.Fprintf(os.Stdout, "intent: %s\n", m.Intent)
		if m.Tool != "" {
			fmt.Fprintf(os.Stdout, "tool:   %s\n", m.Tool)
		}
		if m.Title != "" {
			fmt.Fprintf(os.Stdout, "title:  %s\n", m.Title)
		}
		return nil
	},
}
