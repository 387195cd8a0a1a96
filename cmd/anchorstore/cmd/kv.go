package cmd

import (
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "print the raw value stored at key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := registry.KV.GetValue(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		cmd.Println(value)
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "store a raw value at key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return registry.KV.SetValue(cmd.Context(), args[0], args[1])
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "list every key value pair of the collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := registry.KV.GetValues(cmd.Context())
		if err != nil {
			return err
		}

		return printJson(cmd, values)
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "delete the whole collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		return registry.Payloads.Clear(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(getCmd, setCmd, listCmd, clearCmd)
}
