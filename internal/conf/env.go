package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// CredentialsEnvVar names the service account file, following the Google
// application default credentials convention.
const CredentialsEnvVar = "GOOGLE_APPLICATION_CREDENTIALS"

// envBinding maps an environment variable onto a config key
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"fcm.credentialsfile", CredentialsEnvVar, validateEnvFile},
		{"fcm.projectid", "PUSH_FCM_PROJECT_ID", nil},
		{"push.workers", "PUSH_WORKERS", validateEnvPositiveInt},
		{"push.queue.capacity", "PUSH_QUEUE_CAPACITY", validateEnvNonNegativeInt},
		{"api.listen", "PUSH_API_LISTEN", nil},
		{"debug", "PUSH_DEBUG", validateEnvBool},
		{"sentry.dsn", "PUSH_SENTRY_DSN", validateEnvURL},
		{"invalidation.mqtt.broker", "PUSH_MQTT_BROKER", validateEnvURL},
	}
}

// bindEnvVars binds every variable and validates the ones that are set,
// returning all problems at once.
func bindEnvVars(v *viper.Viper) error {
	var problems []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			problems = append(problems, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if value := os.Getenv(binding.EnvVar); value != "" {
			if err := binding.Validate(value); err != nil {
				problems = append(problems, fmt.Sprintf("invalid %s value %q: %v", binding.EnvVar, value, err))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	_, err := strconv.ParseBool(value)
	return err
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return err
	}
	if n < 1 {
		return fmt.Errorf("must be at least 1")
	}
	return nil
}

func validateEnvNonNegativeInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must be an absolute URL")
	}
	return nil
}

// validateEnvFile only rejects directories; existence is checked when the
// credentials are first used.
func validateEnvFile(value string) error {
	info, err := os.Stat(value)
	if err != nil {
		return nil //nolint:nilerr // missing file is reported at first delivery
	}
	if info.IsDir() {
		return fmt.Errorf("is a directory")
	}
	return nil
}
