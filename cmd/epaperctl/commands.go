package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/zeebo/blake3"
)

func newActionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "action <name> [value]",
		Short: "Send a raw control action",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := ""
			if len(args) == 2 {
				value = args[1]
			}
			return report(client().Action(args[0], value))
		},
	}
}

func newRebootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reboot",
		Short: "Restart the display",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(client().Action("reboot", "true"))
		},
	}
}

func newResetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Erase the configuration and restart",
		Long: `Erase the stored configuration and restart. The display comes back
in setup mode with factory credentials and the factory API key.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				color.Red("⚠️  This erases network credentials, passwords and the API key.")
				confirm := false
				if err := survey.AskOne(&survey.Confirm{Message: "Erase configuration?", Default: false}, &confirm); err != nil {
					return err
				}
				if !confirm {
					return nil
				}
			}
			return report(client().Action("reset", "true"))
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newHostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "host <hostname>",
		Short: "Set the network hostname",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(client().Action("set_host", args[0]))
		},
	}
}

func newLanguageCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "language <0|1>",
		Short:     "Set the display language (0 = EN, 1 = NL)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"0", "1"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(client().Action("set_language", args[0]))
		},
	}
}

func newMessageCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "message <0|1>",
		Short:     "Select the displayed message",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"0", "1"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(client().Action("set_message_id", args[0]))
		},
	}
}

func newSetAPICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-api <key>",
		Short: "Replace the factory API key (allowed once)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(client().Action("set_api", args[0]))
		},
	}
}

func newFlashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flash <image>",
		Short: "Upload a firmware image",
		Long: `Upload a firmware image. The display restarts after the upload,
also when the image was refused.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			st, err := f.Stat()
			if err != nil {
				return err
			}

			digest := blake3.New()
			bar := progressbar.DefaultBytes(st.Size(), "flashing")
			body := io.TeeReader(f, io.MultiWriter(bar, digest))
			msg, err := client().Flash(args[0], st.Size(), body)
			_ = bar.Finish()
			if err != nil {
				return err
			}
			fmt.Printf("blake3: %s\n", hex.EncodeToString(digest.Sum(nil)))
			return report(msg, nil)
		},
	}
}

func newWifiCmd() *cobra.Command {
	var ssid, password string
	cmd := &cobra.Command{
		Use:   "wifi",
		Short: "Enter network credentials on a display in setup mode",
		Long: `Join the display's setup network first, then run this command.
The display stores the credentials and restarts to join the network.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ssid == "" {
				if err := survey.AskOne(&survey.Input{Message: "Network name:"}, &ssid, survey.WithValidator(survey.Required)); err != nil {
					return err
				}
			}
			if password == "" {
				if err := survey.AskOne(&survey.Password{Message: "Network password:"}, &password); err != nil {
					return err
				}
			}
			return report(client().SetupWifi(ssid, password))
		},
	}
	cmd.Flags().StringVar(&ssid, "ssid", "", "network name")
	cmd.Flags().StringVar(&password, "password", "", "network password")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("epaperctl %s\n", Version)
		},
	}
}
