package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Delivery defaults. The retry schedule yields waits of 1.5, 3.0, 4.5, 6.0
// and 7.5 seconds before attempts 1..5.
const (
	DefaultWorkers     = 4
	DefaultMaxAttempts = 6
	DefaultBackoffStep = 1500 * time.Millisecond
	DefaultSendTimeout = 5 * time.Second
)

func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/push.log")
	v.SetDefault("logging.file_output.level", "info")

	v.SetDefault("push.workers", DefaultWorkers)
	v.SetDefault("push.queue.capacity", 0)
	v.SetDefault("push.retry.maxattempts", DefaultMaxAttempts)
	v.SetDefault("push.retry.backoffstep", DefaultBackoffStep)
	v.SetDefault("push.ratelimit.enabled", false)
	v.SetDefault("push.ratelimit.requestspersecond", 50)
	v.SetDefault("push.ratelimit.burst", 10)

	v.SetDefault("fcm.credentialsfile", "")
	v.SetDefault("fcm.projectid", "")
	v.SetDefault("fcm.timeout", DefaultSendTimeout)
	v.SetDefault("fcm.endpoint", "")

	v.SetDefault("invalidation.cachettl", time.Hour)
	v.SetDefault("invalidation.store.enabled", false)
	v.SetDefault("invalidation.store.type", "sqlite")
	v.SetDefault("invalidation.store.path", "data/invalid_recipients.db")
	v.SetDefault("invalidation.store.dsn", "")
	v.SetDefault("invalidation.mqtt.enabled", false)
	v.SetDefault("invalidation.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("invalidation.mqtt.clientid", "push-dispatcher")
	v.SetDefault("invalidation.mqtt.topic", "push/invalidated")
	v.SetDefault("invalidation.mqtt.qos", 1)

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.listen", ":8080")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
}
