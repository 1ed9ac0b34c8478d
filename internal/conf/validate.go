package conf

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tphakala/push-dispatcher/internal/errors"
)

// ValidationError collects every problem found in the settings
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings checks ranges and cross-field requirements.
func ValidateSettings(s *Settings) error {
	var problems []string

	if s.Push.Workers < 1 {
		problems = append(problems, "push.workers must be at least 1")
	}
	if s.Push.Queue.Capacity < 0 {
		problems = append(problems, "push.queue.capacity must not be negative")
	}
	if s.Push.Retry.MaxAttempts < 1 {
		problems = append(problems, "push.retry.maxattempts must be at least 1")
	}
	if s.Push.Retry.BackoffStep < 0 {
		problems = append(problems, "push.retry.backoffstep must not be negative")
	}
	if s.Push.RateLimit.Enabled {
		if s.Push.RateLimit.RequestsPerSecond <= 0 {
			problems = append(problems, "push.ratelimit.requestspersecond must be positive")
		}
		if s.Push.RateLimit.Burst < 1 {
			problems = append(problems, "push.ratelimit.burst must be at least 1")
		}
	}

	if s.FCM.Timeout <= 0 {
		problems = append(problems, "fcm.timeout must be positive")
	}
	if s.FCM.Endpoint != "" {
		if u, err := url.Parse(s.FCM.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			problems = append(problems, "fcm.endpoint must be an absolute URL")
		}
	}

	problems = append(problems, validateInvalidation(&s.Invalidation)...)

	if s.API.Enabled && s.API.Listen == "" {
		problems = append(problems, "api.listen is required when the API is enabled")
	}
	if s.Sentry.Enabled && s.Sentry.DSN == "" {
		problems = append(problems, "sentry.dsn is required when Sentry is enabled")
	}

	if len(problems) > 0 {
		return errors.New(ValidationError{Errors: problems}).
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

func validateInvalidation(s *InvalidationSettings) []string {
	var problems []string

	if s.Store.Enabled {
		switch s.Store.Type {
		case "sqlite":
			if s.Store.Path == "" {
				problems = append(problems, "invalidation.store.path is required for sqlite")
			}
		case "mysql":
			if s.Store.DSN == "" {
				problems = append(problems, "invalidation.store.dsn is required for mysql")
			}
		default:
			problems = append(problems, fmt.Sprintf("invalidation.store.type %q is not sqlite or mysql", s.Store.Type))
		}
	}

	if s.MQTT.Enabled {
		if s.MQTT.Broker == "" {
			problems = append(problems, "invalidation.mqtt.broker is required")
		}
		if s.MQTT.Topic == "" {
			problems = append(problems, "invalidation.mqtt.topic is required")
		}
		if s.MQTT.QoS > 2 {
			problems = append(problems, "invalidation.mqtt.qos must be 0, 1 or 2")
		}
	}

	return problems
}
