package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cumulo-io/cumulo-client/cmd/cumulo/commands"
	"github.com/cumulo-io/cumulo-client/internal/constants"
)

var (
	version = constants.ClientVersion
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "cumulo",
	Short: "Cumulo infrastructure CLI",
	Long: `A command-line interface for the Cumulo infrastructure API.

This CLI provides access to compute resources (instances, volumes,
snapshots) and identity resources (users, groups, access keys).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.cumulo/config.yml)")
	rootCmd.PersistentFlags().String("endpoint", "", "explicit API endpoint URL")
	rootCmd.PersistentFlags().StringP("region", "r", "", "region for derived service endpoints")
	rootCmd.PersistentFlags().String("protocol", "", "wire protocol (query, json)")
	rootCmd.PersistentFlags().StringP("output", "o", constants.FormatTable, "output format (table, json, yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "verbose HTTP request/response logging")
	rootCmd.PersistentFlags().Bool("cache", false, "cache read responses in memory")

	// Bind flags to viper
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("endpoint", rootCmd.PersistentFlags().Lookup("endpoint"))
	viper.BindPFlag("region", rootCmd.PersistentFlags().Lookup("region"))
	viper.BindPFlag("protocol", rootCmd.PersistentFlags().Lookup("protocol"))
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("cache", rootCmd.PersistentFlags().Lookup("cache"))

	// Add commands
	rootCmd.AddCommand(commands.NewVersionCommand(version, commit, date))
	rootCmd.AddCommand(commands.NewConfigureCommand())
	rootCmd.AddCommand(commands.NewInstancesCommand())
	rootCmd.AddCommand(commands.NewVolumesCommand())
	rootCmd.AddCommand(commands.NewSnapshotsCommand())
	rootCmd.AddCommand(commands.NewUsersCommand())
	rootCmd.AddCommand(commands.NewAccessKeysCommand())
	rootCmd.AddCommand(commands.NewCallCommand())
}

func initConfig() {
	cfgFile := viper.GetString("config")

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		// Search config in ~/.cumulo/config.yml
		viper.AddConfigPath(filepath.Join(home, ".cumulo"))
		viper.SetConfigType("yml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match
	viper.SetEnvPrefix("CUMULO")
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("debug") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
