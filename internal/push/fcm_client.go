package push

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/fcm/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/tphakala/push-dispatcher/internal/logger"
)

const (
	// CredentialsEnvVar is consulted when no credentials file is configured.
	CredentialsEnvVar = "GOOGLE_APPLICATION_CREDENTIALS"

	// FirebaseMessagingScope is the OAuth2 scope required by messages:send.
	FirebaseMessagingScope = "https://www.googleapis.com/auth/firebase.messaging"
)

// FCMConfig configures the production client factory.
type FCMConfig struct {
	CredentialsFile string
	ProjectID       string
	Endpoint        string
}

// FCMClient delivers messages through the FCM HTTP v1 API.
type FCMClient struct {
	svc    *fcm.Service
	parent string
}

// NewFCMClient creates a client for projectID. opts carry authentication or,
// in tests, a custom HTTP client.
func NewFCMClient(ctx context.Context, projectID string, opts ...option.ClientOption) (*FCMClient, error) {
	if projectID == "" {
		return nil, ErrNoProjectID
	}

	svc, err := fcm.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create fcm service: %w", err)
	}

	return &FCMClient{
		svc:    svc,
		parent: "projects/" + projectID,
	}, nil
}

// Send posts msg to projects/{id}/messages:send.
func (c *FCMClient) Send(ctx context.Context, msg *Message) error {
	_, err := c.svc.Projects.Messages.
		Send(c.parent, &fcm.SendMessageRequest{Message: msg}).
		Context(ctx).
		Do()
	if err != nil {
		return toDeliveryError(err)
	}
	return nil
}

func toDeliveryError(err error) *DeliveryError {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		body := apiErr.Body
		if body == "" {
			body = apiErr.Message
		}
		return &DeliveryError{Kind: ErrorKindStatus, StatusCode: apiErr.Code, Body: body, Err: err}
	}
	if isTimeout(err) {
		return &DeliveryError{Kind: ErrorKindTimeout, Err: err}
	}
	return &DeliveryError{Kind: ErrorKindOther, Err: err}
}

// ServiceAccountFactory returns the production ClientFactory. On first use it
// reads the service account file, completes the OAuth2 token exchange and
// resolves the project id. Any failure there is fatal to the caller.
func ServiceAccountFactory(cfg FCMConfig, log logger.Logger) ClientFactory {
	if log == nil {
		log = logger.NewDiscardLogger()
	}

	return func(ctx context.Context) (DeliveryClient, error) {
		path := cfg.CredentialsFile
		if path == "" {
			path = os.Getenv(CredentialsEnvVar)
		}
		if path == "" {
			return nil, fmt.Errorf("%w: set %s or fcm.credentialsfile", ErrNoCredentials, CredentialsEnvVar)
		}

		data, err := os.ReadFile(path) //nolint:gosec // operator-supplied credentials path
		if err != nil {
			return nil, fmt.Errorf("read credentials %s: %w", path, err)
		}

		creds, err := google.CredentialsFromJSON(ctx, data, FirebaseMessagingScope)
		if err != nil {
			return nil, fmt.Errorf("parse credentials %s: %w", path, err)
		}

		start := time.Now()
		if _, err := creds.TokenSource.Token(); err != nil {
			return nil, fmt.Errorf("authenticate with google: %w", err)
		}

		projectID := cfg.ProjectID
		if projectID == "" {
			projectID = creds.ProjectID
		}

		opts := []option.ClientOption{option.WithTokenSource(creds.TokenSource)}
		if cfg.Endpoint != "" {
			opts = append(opts, option.WithEndpoint(cfg.Endpoint))
		}

		client, err := NewFCMClient(ctx, projectID, opts...)
		if err != nil {
			return nil, err
		}

		log.Info("fcm client ready",
			logger.String("project_id", projectID),
			logger.Duration("auth_elapsed", time.Since(start)))
		return client, nil
	}
}
