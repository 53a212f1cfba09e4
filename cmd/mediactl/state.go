package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Read or write persisted state values",
}

var stateGetCmd = &cobra.Command{
	Use:   "get <key>...",
	Short: "Print state values",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := cache.GetState(cmd.Context(), args)
		if err != nil {
			return fmt.Errorf("get state: %w", err)
		}
		for _, key := range args {
			value, ok := state[key]
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t(unset)\n", key)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", key, value)
		}
		return nil
	},
}

var stateSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a state value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cache.SetState(cmd.Context(), map[string]string{args[0]: args[1]}); err != nil {
			return fmt.Errorf("set state: %w", err)
		}
		return nil
	},
}

func init() {
	stateCmd.AddCommand(stateGetCmd)
	stateCmd.AddCommand(stateSetCmd)
}
