package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/andywolf/reqsync/internal/config"
	"github.com/andywolf/reqsync/internal/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "reqsync",
	Short: "reqsync - GitHub issues as requirement documents",
	Long: `reqsync treats GitHub issues as requirements. It serves a REST API over
the GitHub Issues API and exports issues as markdown files that live next to
the code they describe.

Example:
  reqsync serve
  reqsync export acme/widgets --issues 12,17-24`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Set version for --version flag
	rootCmd.Version = version.Short()
	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .reqsync.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable verbose output")
	rootCmd.PersistentFlags().String("server", "", "reqsync server URL; commands call it instead of GitHub")
	rootCmd.PersistentFlags().String("token", "", "GitHub token (overrides configured credentials)")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("client.server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("github.token", rootCmd.PersistentFlags().Lookup("token"))
}

func initConfig() {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error getting working directory:", err)
		os.Exit(1)
	}

	if err := config.LoadDotEnv(cwd); err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(cwd)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".reqsync")
	}

	if err := config.BindEnv(viper.GetViper()); err != nil {
		fmt.Fprintln(os.Stderr, "Error reading environment:", err)
		os.Exit(1)
	}

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

func verbose() bool {
	return viper.GetBool("verbose")
}
