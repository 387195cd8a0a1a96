package cmd

import (
	"encoding/json"
	"log/slog"
	"os"

	"github.com/pandodao/anchor-store/provider"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var registry *provider.Registry

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "anchorstore",
	Short:        "manage anchor payloads stored in kvstore",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupRegistry()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().String("api-key", "", "kvstore api key")
	rootCmd.PersistentFlags().StringP("endpoint", "l", "", "kvstore endpoint")
	rootCmd.PersistentFlags().String("collection", "", "kvstore collection")
	rootCmd.PersistentFlags().Bool("debug", false, "debug mode")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("kvstore.api_key", rootCmd.PersistentFlags().Lookup("api-key"))
	viper.BindPFlag("kvstore.endpoint", rootCmd.PersistentFlags().Lookup("endpoint"))
	viper.BindPFlag("kvstore.collection", rootCmd.PersistentFlags().Lookup("collection"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func setupRegistry() error {
	v := viper.GetViper()
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	}

	level := slog.LevelWarn
	if v.GetBool("debug") {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := provider.LoadConfig(v)
	if err != nil {
		return err
	}

	registry, err = provider.New(cfg, logger)
	return err
}

func printJson(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	cmd.Println(string(b))
	return nil
}
