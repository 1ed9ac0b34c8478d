package config

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/push-dispatcher/internal/conf"
)

func secretSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Push.Workers = 3
	s.Invalidation.MQTT.Password = "hunter2"
	s.Invalidation.Store.DSN = "user:pass@tcp(db:3306)/push"
	s.Sentry.DSN = "https://key@sentry.example.test/1"
	return s
}

func TestConfigRedactsSecrets(t *testing.T) {
	t.Parallel()

	settings := secretSettings()
	cmd := Command(settings)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)

	require.NoError(t, cmd.Execute())

	text := out.String()
	assert.NotContains(t, text, "hunter2")
	assert.NotContains(t, text, "user:pass")
	assert.NotContains(t, text, "key@sentry")
	assert.Contains(t, text, redacted)

	var decoded conf.Settings
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, 3, decoded.Push.Workers)

	// the shared settings are not modified
	assert.Equal(t, "hunter2", settings.Invalidation.MQTT.Password)
}

func TestConfigShowSecrets(t *testing.T) {
	t.Parallel()

	cmd := Command(secretSettings())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--show-secrets"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "hunter2")
}
