// Package notify implements a one-shot command that sends a single
// notification through the dispatcher.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/push-dispatcher/internal/app"
	"github.com/tphakala/push-dispatcher/internal/buildinfo"
	"github.com/tphakala/push-dispatcher/internal/conf"
	"github.com/tphakala/push-dispatcher/internal/push"
)

// Command returns a cobra command that sends a test notification.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var (
		token string
		topic string
		title string
		body  string
		image string
		wait  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send one push notification and wait for the outcome",
		Long: `Send one push notification through FCM.

Examples:
  # Notify a single device
  push-dispatcher notify --token=dGVzdC10b2tlbg --title="Test" --body="Hello"

  # Notify every subscriber of a topic, waiting as long as it takes
  push-dispatcher notify --topic=news --body="Breaking" --wait=0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			recipient, err := recipientFromFlags(token, topic)
			if err != nil {
				return err
			}
			if title == "" && body == "" {
				return errors.New("--title or --body is required")
			}

			payload := &push.Notification{Title: title, Body: body, Image: image}
			return send(cmd, settings, build, recipient, payload, wait)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Device registration token")
	cmd.Flags().StringVar(&topic, "topic", "", "Topic name")
	cmd.Flags().StringVar(&title, "title", "Test Notification", "Notification title")
	cmd.Flags().StringVar(&body, "body", "This is a test push notification", "Notification body")
	cmd.Flags().StringVar(&image, "image", "", "Notification image URL")
	cmd.Flags().DurationVar(&wait, "wait", 30*time.Second, "Time to wait for the delivery outcome (0 waits without a deadline)")
	cmd.MarkFlagsMutuallyExclusive("token", "topic")
	cmd.MarkFlagsOneRequired("token", "topic")

	return cmd
}

func recipientFromFlags(token, topic string) (push.Recipient, error) {
	switch {
	case token != "" && topic != "":
		return push.Recipient{}, errors.New("only one of --token or --topic may be set")
	case token != "":
		return push.Token(token), nil
	case topic != "":
		return push.Topic(topic), nil
	default:
		return push.Recipient{}, errors.New("--token or --topic is required")
	}
}

// send queues one notification and blocks until it reaches a terminal state.
// A non-positive wait removes the deadline.
func send(cmd *cobra.Command, settings *conf.Settings, build *buildinfo.Context,
	recipient push.Recipient, payload *push.Notification, wait time.Duration, opts ...app.Option,
) error {
	cli := *settings
	cli.API.Enabled = false
	cli.Push.Workers = 1

	results := make(chan push.Result, 1)
	fatal := make(chan error, 1)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	opts = append(opts,
		app.WithResultHook(func(_ *push.Task, r push.Result) { results <- r }),
		app.WithFatalHandler(func(err error) { fatal <- err }),
	)
	a, err := app.New(ctx, &cli, build, opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.Start(ctx); err != nil {
		return err
	}

	taskID := a.Dispatcher.PushTo(recipient, payload)
	fmt.Fprintf(cmd.OutOrStdout(), "Notification queued: task=%s recipient=%s\n", taskID, recipient)

	var deadline <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case r := <-results:
		fmt.Fprintf(cmd.OutOrStdout(), "Outcome: state=%s attempts=%d\n", r.State, r.Attempts)
		if r.State != push.StateDelivered {
			if r.LastErr != nil {
				return fmt.Errorf("notification not delivered (%s): %w", r.State, r.LastErr)
			}
			return fmt.Errorf("notification not delivered (%s)", r.State)
		}
		return nil
	case err := <-fatal:
		return fmt.Errorf("push delivery unavailable: %w", err)
	case <-deadline:
		return fmt.Errorf("no delivery outcome within %s", wait)
	case <-ctx.Done():
		return ctx.Err()
	}
}
