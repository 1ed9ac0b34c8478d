// Package cmd wires the command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configcmd "github.com/tphakala/push-dispatcher/cmd/config"
	"github.com/tphakala/push-dispatcher/cmd/notify"
	"github.com/tphakala/push-dispatcher/cmd/serve"
	"github.com/tphakala/push-dispatcher/internal/buildinfo"
	"github.com/tphakala/push-dispatcher/internal/conf"
)

// RootCommand creates and returns the root command. Settings are loaded in
// PersistentPreRunE so every subcommand sees the same values.
func RootCommand(build *buildinfo.Context) *cobra.Command {
	settings := &conf.Settings{}
	v := viper.New()

	var configFile string

	rootCmd := &cobra.Command{
		Use:          "push-dispatcher",
		Short:        "Asynchronous FCM push notification dispatcher",
		Version:      build.GetVersion(),
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	if err := v.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		panic(fmt.Sprintf("binding debug flag: %v", err))
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := conf.Load(v, configFile)
		if err != nil {
			return err
		}
		*settings = *loaded
		return nil
	}

	rootCmd.AddCommand(
		serve.Command(settings, build),
		notify.Command(settings, build),
		configcmd.Command(settings),
	)

	return rootCmd
}
