package capture

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zulandar/notary/internal/capture/slackbridge"
	"github.com/zulandar/notary/internal/docstore"
)

// EventSource delivers platform interactions. *slackbridge.Bridge is the
// production implementation.
type EventSource interface {
	Connect(ctx context.Context) error
	Events(ctx context.Context) (<-chan slackbridge.Interaction, error)
	Close() error
}

// Daemon is the capture service: it connects the event source, builds the
// workflow components, and pumps interactions until the context is
// cancelled. Each interaction is an independent unit of work; no state is
// shared between them beyond the read-only allow-list.
type Daemon struct {
	source EventSource
	chat   Chat
	store  docstore.Client
	allow  Allowlist
	log    zerolog.Logger
}

// DaemonOpts holds parameters for creating a Daemon.
type DaemonOpts struct {
	Source EventSource
	Chat   Chat
	Store  docstore.Client
	Allow  Allowlist
	Logger zerolog.Logger
}

// NewDaemon creates a Daemon.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("capture: daemon: event source is required")
	}
	if opts.Chat == nil {
		return nil, fmt.Errorf("capture: daemon: chat is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("capture: daemon: store is required")
	}
	return &Daemon{
		source: opts.Source,
		chat:   opts.Chat,
		store:  opts.Store,
		allow:  opts.Allow,
		log:    opts.Logger,
	}, nil
}

// Run starts the daemon and blocks until the context is cancelled. On
// shutdown it waits for deferred augmentation work before closing the
// event source.
func (d *Daemon) Run(ctx context.Context) error {
	d.log.Info().Bool("allowlist_restricted", !d.allow.Unrestricted()).Msg("notary connecting")
	if err := d.source.Connect(ctx); err != nil {
		return fmt.Errorf("capture: connect: %w", err)
	}

	providers, err := NewOptionProviders(d.store, d.allow, d.log)
	if err != nil {
		d.source.Close()
		return err
	}
	submit, err := NewSubmissionHandler(SubmissionHandlerOpts{
		Store:  d.store,
		Chat:   d.chat,
		Logger: d.log,
	})
	if err != nil {
		d.source.Close()
		return err
	}
	router, err := NewRouter(RouterOpts{
		Chat:      d.chat,
		Providers: providers,
		Submit:    submit,
		Logger:    d.log,
	})
	if err != nil {
		d.source.Close()
		return err
	}

	events, err := d.source.Events(ctx)
	if err != nil {
		d.source.Close()
		return fmt.Errorf("capture: events: %w", err)
	}

	d.log.Info().Msg("notary online")

	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("notary shutting down")
			submit.Wait()
			if err := d.source.Close(); err != nil {
				d.log.Warn().Err(err).Msg("close event source")
			}
			return nil

		case in, ok := <-events:
			if !ok {
				d.log.Info().Msg("interaction channel closed")
				submit.Wait()
				return nil
			}
			// One goroutine per interaction; the event carries its own
			// deadline and handlers ack before slow work.
			go func(in slackbridge.Interaction) {
				eventLog := d.log.With().
					Str("event_id", uuid.NewString()).
					Str("interaction", string(in.Callback.Type)).
					Logger()
				router.Handle(eventLog.WithContext(ctx), in)
			}(in)
		}
	}
}
