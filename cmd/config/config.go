// Package config implements the command that prints the effective settings.
package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/push-dispatcher/internal/conf"
)

const redacted = "[REDACTED]"

// Command prints the merged configuration as YAML with secrets masked.
func Command(settings *conf.Settings) *cobra.Command {
	var showSecrets bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := *settings
			if !showSecrets {
				redact(&out)
			}

			data, err := yaml.Marshal(&out)
			if err != nil {
				return fmt.Errorf("error marshaling settings: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print passwords and DSNs unmasked")

	return cmd
}

func redact(s *conf.Settings) {
	if s.Invalidation.MQTT.Password != "" {
		s.Invalidation.MQTT.Password = redacted
	}
	if s.Invalidation.Store.DSN != "" {
		s.Invalidation.Store.DSN = redacted
	}
	if s.Sentry.DSN != "" {
		s.Sentry.DSN = redacted
	}
}
