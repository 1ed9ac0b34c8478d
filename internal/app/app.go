// Package app assembles the dispatcher and its supporting services from
// settings. Commands build an App, start it and close it on exit.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/tphakala/push-dispatcher/internal/api"
	"github.com/tphakala/push-dispatcher/internal/buildinfo"
	"github.com/tphakala/push-dispatcher/internal/conf"
	"github.com/tphakala/push-dispatcher/internal/logger"
	"github.com/tphakala/push-dispatcher/internal/mqtt"
	"github.com/tphakala/push-dispatcher/internal/observability"
	"github.com/tphakala/push-dispatcher/internal/push"
	"github.com/tphakala/push-dispatcher/internal/telemetry"
	"github.com/tphakala/push-dispatcher/internal/tokenstore"
)

const sentryFlushTimeout = 2 * time.Second

// App holds every long-lived component.
type App struct {
	Settings   *conf.Settings
	Build      *buildinfo.Context
	Log        logger.Logger
	Metrics    *observability.Metrics
	Store      *tokenstore.Store // nil when disabled
	MQTT       mqtt.Client       // nil when disabled
	Provider   *push.ClientProvider
	Dispatcher *push.Dispatcher
	API        *api.Server // nil when disabled

	central   *logger.CentralLogger
	sentry    bool
	fatalOnce sync.Once
	fatal     func(error)
}

type options struct {
	factory  push.ClientFactory
	fatal    func(error)
	log      logger.Logger
	onResult func(*push.Task, push.Result)
}

// Option customizes New.
type Option func(*options)

// WithClientFactory replaces the service account client factory.
func WithClientFactory(f push.ClientFactory) Option {
	return func(o *options) { o.factory = f }
}

// WithFatalHandler replaces the default handler, which logs, flushes
// telemetry and exits the process.
func WithFatalHandler(fn func(error)) Option {
	return func(o *options) { o.fatal = fn }
}

// WithLogger uses log instead of building one from settings.
func WithLogger(log logger.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithResultHook observes terminal task results.
func WithResultHook(fn func(*push.Task, push.Result)) Option {
	return func(o *options) { o.onResult = fn }
}

// New builds the application. Optional sinks that fail to initialize are
// logged and skipped; only logger, metrics and store errors are returned.
func New(ctx context.Context, settings *conf.Settings, build *buildinfo.Context, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if build == nil {
		build = buildinfo.New("", "")
	}

	a := &App{Settings: settings, Build: build}

	if err := a.initLogger(o.log); err != nil {
		return nil, err
	}

	enabled, err := telemetry.InitSentry(&settings.Sentry, build, a.Log.Module("telemetry"))
	if err != nil {
		a.Log.Warn("sentry disabled", logger.Error(err))
	}
	a.sentry = enabled

	a.Metrics, err = observability.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	sinks, err := a.initSinks(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.fatal = o.fatal
	if a.fatal == nil {
		a.fatal = a.exit
	}

	factory := o.factory
	if factory == nil {
		factory = push.ServiceAccountFactory(push.FCMConfig{
			CredentialsFile: settings.FCM.CredentialsFile,
			ProjectID:       settings.FCM.ProjectID,
			Endpoint:        settings.FCM.Endpoint,
		}, a.Log.Module("fcm"))
	}
	if rl := settings.Push.RateLimit; rl.Enabled {
		factory = push.WithRateLimit(factory, rl.RequestsPerSecond, rl.Burst)
	}
	a.Provider = push.NewClientProvider(factory, a.Metrics.Push.ClientBuilt)

	dispatcherOpts := []push.Option{
		push.WithLogger(a.Log),
		push.WithMetrics(a.Metrics.Push),
		push.WithInvalidators(sinks...),
		push.WithFatalHandler(a.onFatal),
	}
	if o.onResult != nil {
		dispatcherOpts = append(dispatcherOpts, push.WithResultHook(o.onResult))
	}
	a.Dispatcher = push.NewDispatcher(push.Config{
		QueueCapacity: settings.Push.Queue.Capacity,
		MaxAttempts:   settings.Push.Retry.MaxAttempts,
		BackoffStep:   settings.Push.Retry.BackoffStep,
		SendTimeout:   settings.FCM.Timeout,
	}, a.Provider, dispatcherOpts...)

	if settings.API.Enabled {
		apiOpts := []api.Option{
			api.WithLogger(a.Log),
			api.WithBuildInfo(build),
			api.WithMetricsHandler(a.Metrics.Handler()),
		}
		if a.Store != nil {
			apiOpts = append(apiOpts, api.WithStore(a.Store))
		}
		a.API = api.New(api.ConfigFromSettings(settings), a.Dispatcher, apiOpts...)
	}

	return a, nil
}

func (a *App) initLogger(log logger.Logger) error {
	if log != nil {
		a.Log = log
		return nil
	}

	cfg := a.Settings.Logging
	if a.Settings.Debug {
		cfg.DefaultLevel = "debug"
		if cfg.Console != nil {
			console := *cfg.Console
			console.Level = "debug"
			cfg.Console = &console
		}
	}

	central, err := logger.NewCentralLogger(&cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.central = central
	a.Log = central.Module("main")
	return nil
}

// initSinks opens the invalid recipient store and the MQTT publisher.
// The store is required once enabled; MQTT is best effort.
func (a *App) initSinks(ctx context.Context) ([]push.Invalidator, error) {
	var sinks []push.Invalidator
	inv := a.Settings.Invalidation

	if inv.Store.Enabled {
		store, err := tokenstore.Open(tokenstore.Config{
			Type:      inv.Store.Type,
			Path:      inv.Store.Path,
			DSN:       inv.Store.DSN,
			DedupeTTL: inv.CacheTTL,
			Debug:     a.Settings.Debug,
		}, a.Log.Module("tokenstore"), tokenstore.WithRecorder(a.Metrics.Store))
		if err != nil {
			return nil, fmt.Errorf("open invalid recipient store: %w", err)
		}
		a.Store = store
		sinks = append(sinks, store)
	}

	if inv.MQTT.Enabled {
		client, err := mqtt.NewClient(mqtt.Config{
			Broker:   inv.MQTT.Broker,
			ClientID: inv.MQTT.ClientID,
			Username: inv.MQTT.Username,
			Password: inv.MQTT.Password,
			Topic:    inv.MQTT.Topic,
			QoS:      inv.MQTT.QoS,
		}, a.Log.Module("mqtt"), a.Metrics.MQTT)
		if err != nil {
			a.Log.Warn("mqtt invalidation events disabled", logger.Error(err))
			return sinks, nil
		}
		if err := client.Connect(ctx); err != nil {
			// paho retries only after a successful first connect
			a.Log.Warn("mqtt broker unreachable, invalidation events disabled",
				logger.String("broker", inv.MQTT.Broker),
				logger.Error(err))
			return sinks, nil
		}
		a.MQTT = client
		sinks = append(sinks, mqtt.NewPublisher(client, inv.MQTT.Topic, a.Metrics.MQTT))
	}

	return sinks, nil
}

// Start launches the workers and, when enabled, the API server. API errors
// are sent on the returned channel.
func (a *App) Start(ctx context.Context) (<-chan error, error) {
	if err := a.Dispatcher.StartWorkers(ctx, a.Settings.Push.Workers); err != nil {
		return nil, err
	}

	errCh := make(chan error, 1)
	if a.API != nil {
		go func() {
			if err := a.API.Start(); err != nil {
				errCh <- err
			}
		}()
	}
	return errCh, nil
}

// Shutdown stops the API server and waits for the workers, which exit once
// ctx passed to Start is cancelled.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.API != nil {
		if err := a.API.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("api shutdown: %w", err))
		}
	}

	done := make(chan error, 1)
	go func() { done <- a.Dispatcher.Wait() }()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("workers did not stop: %w", ctx.Err()))
	}

	return errors.Join(errs...)
}

// Close releases external resources. It is safe to call more than once.
func (a *App) Close() {
	if a.MQTT != nil {
		a.MQTT.Disconnect()
		a.MQTT = nil
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Log.Warn("closing invalid recipient store", logger.Error(err))
		}
		a.Store = nil
	}
	if a.sentry {
		telemetry.Flush(sentryFlushTimeout)
	}
	if a.central != nil {
		_ = a.central.Close()
		a.central = nil
	}
}

func (a *App) onFatal(err error) {
	a.fatalOnce.Do(func() { a.fatal(err) })
}

func (a *App) exit(err error) {
	a.Log.Error("push delivery cannot continue", logger.Error(err))
	a.Close()
	os.Exit(1)
}
