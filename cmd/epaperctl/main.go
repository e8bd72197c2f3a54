package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version info (set by build)
	Version = "dev"

	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "epaperctl",
	Short: "Control an ePaper display over its HTTP control plane",
	Long: `epaperctl sends control actions to an ePaper display, flashes
firmware images and enters network credentials on a display in setup mode.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/epaper/ctl.yaml)")
	rootCmd.PersistentFlags().String("url", "", "device URL")
	rootCmd.PersistentFlags().String("api-key", "", "device API key")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
	_ = viper.BindPFlag("api_key", rootCmd.PersistentFlags().Lookup("api-key"))
	viper.SetDefault("url", "http://epaper.local")

	rootCmd.AddCommand(
		newActionCmd(),
		newRebootCmd(),
		newResetCmd(),
		newHostCmd(),
		newLanguageCmd(),
		newMessageCmd(),
		newSetAPICmd(),
		newFlashCmd(),
		newWifiCmd(),
		newVersionCmd(),
	)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("ctl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("$HOME/.config/epaper")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("EPAPER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func client() *Client {
	return newClient(viper.GetString("url"), viper.GetString("api_key"))
}

func report(msg string, err error) error {
	if err != nil {
		return err
	}
	color.Green("✓ %s", msg)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}
