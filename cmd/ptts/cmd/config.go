package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ptts-corpus/ptts/internal/config"
	"github.com/ptts-corpus/ptts/internal/output"
)

// configPath returns the path to the selected database's persisted
// configuration snapshot, stored alongside its .db file.
func configPath() (string, error) {
	name, err := resolveDBName()
	if err != nil {
		return "", err
	}
	return filepath.Join(storageDir(), name+".config.yaml"), nil
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Get or set the selected database's configuration",
	}

	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())

	return cmd
}

func newConfigGetCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Print one configuration value, or the whole snapshot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			c, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			value, err := c.Get(key)
			if err != nil {
				return fmt.Errorf("get %q: %w", key, err)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(value)
			}

			out := output.New(cmd.OutOrStdout())
			if key != "" {
				out.Statusf("", "%s = %v", key, value)
				return nil
			}
			snapshot, ok := value.(map[string]any)
			if !ok {
				out.Statusf("", "%v", value)
				return nil
			}
			for k, v := range snapshot {
				out.Statusf("", "%s = %v", k, v)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newConfigSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a mutable configuration value and persist it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			c, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			key, raw := args[0], args[1]
			var value any = raw
			if n, err := strconv.Atoi(raw); err == nil {
				value = n
			}

			if err := c.Set(key, value); err != nil {
				return fmt.Errorf("set %q: %w", key, err)
			}
			if err := c.Save(); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			output.New(cmd.OutOrStdout()).Success(fmt.Sprintf("%s = %v", key, value))
			return nil
		},
	}

	return cmd
}
