package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/user/tasktalk/internal/config"
)

// generalSection holds top-level keys such as data_dir and log_level.
const generalSection = "general"

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd)
	configGetCmd.Flags().Bool("reveal", false, "print secret values unmasked")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

// splitKey returns the section and the remainder of a dot-separated key.
func splitKey(key string) (section, rest string) {
	section, rest, ok := strings.Cut(key, ".")
	if !ok {
		return generalSection, key
	}
	return section, rest
}

var configListCmd = &cobra.Command{
	Use:   "list [section]",
	Short: "List configuration values by section, secrets masked",
	Long: "List configuration values grouped by section (general, http, storage, auth,\n" +
		"agent, llm, telegram, notify). Pass a section name to show only that group.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := config.ListValues(loadConfig(), true)
		if err != nil {
			return fmt.Errorf("list config: %w", err)
		}

		keys := make([]string, 0, len(values))
		for k := range values {
			if section, _ := splitKey(k); len(args) == 1 && section != args[0] {
				continue
			}
			keys = append(keys, k)
		}
		if len(args) == 1 && len(keys) == 0 {
			return fmt.Errorf("no config section %q", args[0])
		}
		sort.Slice(keys, func(i, j int) bool {
			si, _ := splitKey(keys[i])
			sj, _ := splitKey(keys[j])
			if (si == generalSection) != (sj == generalSection) {
				return si == generalSection
			}
			return keys[i] < keys[j]
		})

		if viper.GetBool("json") {
			out := make(map[string]any, len(keys))
			for _, k := range keys {
				out[k] = values[k]
			}
			return printJSON(out)
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"Section", "Key", "Value"})
		tw.SetColumnConfigs([]table.ColumnConfig{{Number: 1, AutoMerge: true}})
		prev := ""
		for _, k := range keys {
			section, rest := splitKey(k)
			if prev != "" && section != prev {
				tw.AppendSeparator()
			}
			prev = section
			tw.AppendRow(table.Row{section, rest, values[k]})
		}
		tw.Render()
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		val, err := config.GetValue(cfgPath, args[0])
		if err != nil {
			return err
		}
		if reveal, _ := cmd.Flags().GetBool("reveal"); !reveal && config.IsSecretKey(args[0]) {
			val = config.MaskSecrets(map[string]any{args[0]: val})[args[0]]
		}
		fmt.Fprintln(os.Stdout, val)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value. The result is validated before it is written,\n" +
		"so set storage.url before switching storage.driver to postgres.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetValue(cfgPath, args[0], args[1]); err != nil {
			return err
		}
		display := args[1]
		if config.IsSecretKey(args[0]) {
			display = "***"
		}
		fmt.Fprintf(os.Stdout, "Set %s = %s\n", args[0], display)
		if section, _ := splitKey(args[0]); section == "storage" {
			fmt.Fprintln(os.Stdout, "Restart the server for storage changes to take effect.")
		}
		return nil
	},
}
