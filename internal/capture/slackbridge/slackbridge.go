// Package slackbridge connects the capture workflow to Slack over Socket
// Mode and exposes the handful of Web API calls the workflow needs.
package slackbridge

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

const (
	// baseBackoff is the initial backoff duration for reconnection.
	baseBackoff = 2 * time.Second
	// maxBackoff caps the exponential backoff for reconnection.
	maxBackoff = 2 * time.Minute
	// maxReconnectAttempts limits reconnection retries before giving up.
	maxReconnectAttempts = 10
)

// Interaction is one inbound interactive event plus its acknowledgment.
// The platform expects an ack within a short deadline; handlers call Ack
// before slow work, optionally attaching a response payload.
type Interaction struct {
	Callback slackapi.InteractionCallback
	Ack      func(payload ...interface{})
}

// slackClient abstracts the Web API methods we use, enabling test mocks.
type slackClient interface {
	AuthTestContext(ctx context.Context) (*slackapi.AuthTestResponse, error)
	OpenViewContext(ctx context.Context, triggerID string, view slackapi.ModalViewRequest) (*slackapi.ViewResponse, error)
	UpdateViewContext(ctx context.Context, view slackapi.ModalViewRequest, externalID, hash, viewID string) (*slackapi.ViewResponse, error)
	GetPermalinkContext(ctx context.Context, params *slackapi.PermalinkParameters) (string, error)
}

// socketClient abstracts the Socket Mode client methods we use.
type socketClient interface {
	RunContext(ctx context.Context) error
	EventsChan() chan socketmode.Event
	Ack(req socketmode.Request, payload ...interface{})
}

// realSocketClient wraps *socketmode.Client to implement socketClient.
type realSocketClient struct {
	client *socketmode.Client
}

func (r *realSocketClient) RunContext(ctx context.Context) error { return r.client.RunContext(ctx) }
func (r *realSocketClient) EventsChan() chan socketmode.Event    { return r.client.Events }
func (r *realSocketClient) Ack(req socketmode.Request, payload ...interface{}) {
	r.client.Ack(req, payload...)
}

// Bridge is the Slack connection: a Socket Mode event stream in, Web API
// calls out.
type Bridge struct {
	client       slackClient
	socket       socketClient
	log          zerolog.Logger
	appToken     string
	botToken     string
	botUserID    string
	mu           sync.Mutex
	connected    bool
	closed       bool
	interactions chan Interaction
	cancelFunc   context.CancelFunc
	baseBackoff  time.Duration
	maxBackoff   time.Duration
	maxReconnect int
}

// Opts holds parameters for creating a Bridge.
type Opts struct {
	AppToken string // xapp-... app-level token for Socket Mode
	BotToken string // xoxb-... bot token
	Logger   zerolog.Logger
	// For testing: inject mock clients instead of the real Slack API.
	Client slackClient
	Socket socketClient
}

// New creates a Bridge.
func New(opts Opts) (*Bridge, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slackbridge: bot token is required")
	}
	if opts.Socket == nil && opts.AppToken == "" {
		return nil, fmt.Errorf("slackbridge: app token is required for socket mode")
	}

	b := &Bridge{
		appToken:     opts.AppToken,
		botToken:     opts.BotToken,
		log:          opts.Logger,
		interactions: make(chan Interaction, 100),
		baseBackoff:  baseBackoff,
		maxBackoff:   maxBackoff,
		maxReconnect: maxReconnectAttempts,
	}
	if opts.Client != nil {
		b.client = opts.Client
	}
	if opts.Socket != nil {
		b.socket = opts.Socket
	}
	return b, nil
}

// Connect establishes the Socket Mode connection and verifies credentials.
func (b *Bridge) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("slackbridge: bridge already closed")
	}
	if b.connected {
		return nil
	}

	// Create real clients if not injected (production path).
	if b.client == nil {
		api := slackapi.New(b.botToken, slackapi.OptionAppLevelToken(b.appToken))
		b.client = api
		b.socket = &realSocketClient{client: socketmode.New(api)}
	}

	auth, err := b.client.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slackbridge: auth test: %w", err)
	}
	b.botUserID = auth.UserID

	b.connected = true
	return nil
}

// Events returns the inbound interaction channel and starts the Socket
// Mode event pump in the background. Must be called after Connect.
func (b *Bridge) Events(ctx context.Context) (<-chan Interaction, error) {
	b.mu.Lock()
	if !b.connected {
		b.mu.Unlock()
		return nil, fmt.Errorf("slackbridge: not connected")
	}
	b.mu.Unlock()

	pumpCtx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancelFunc = cancel
	b.mu.Unlock()

	go b.runWithReconnect(pumpCtx)
	go b.pumpEvents(pumpCtx)

	return b.interactions, nil
}

// OpenView opens a modal with a single-use trigger id.
func (b *Bridge) OpenView(ctx context.Context, triggerID string, view slackapi.ModalViewRequest) error {
	if _, err := b.client.OpenViewContext(ctx, triggerID, view); err != nil {
		return fmt.Errorf("slackbridge: open view: %w", err)
	}
	return nil
}

// UpdateView replaces an open modal in place.
func (b *Bridge) UpdateView(ctx context.Context, viewID string, view slackapi.ModalViewRequest) error {
	if _, err := b.client.UpdateViewContext(ctx, view, "", "", viewID); err != nil {
		return fmt.Errorf("slackbridge: update view: %w", err)
	}
	return nil
}

// Permalink resolves a durable URL for a message.
func (b *Bridge) Permalink(ctx context.Context, channelID, messageTS string) (string, error) {
	link, err := b.client.GetPermalinkContext(ctx, &slackapi.PermalinkParameters{
		Channel: channelID,
		Ts:      messageTS,
	})
	if err != nil {
		return "", fmt.Errorf("slackbridge: permalink: %w", err)
	}
	return link, nil
}

// BotUserID returns the bot's user ID (available after Connect).
func (b *Bridge) BotUserID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.botUserID
}

// Close shuts down the bridge and closes the interaction channel.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.connected = false
	if b.cancelFunc != nil {
		b.cancelFunc()
	}
	close(b.interactions)
	return nil
}

// runWithReconnect runs the Socket Mode client and retries with exponential
// backoff when it returns an error.
func (b *Bridge) runWithReconnect(ctx context.Context) {
	for attempt := 0; attempt < b.maxReconnect; attempt++ {
		err := b.socket.RunContext(ctx)
		if err == nil {
			return // clean shutdown
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * b.baseBackoff
		if wait > b.maxBackoff {
			wait = b.maxBackoff
		}

		b.log.Warn().Err(err).Int("attempt", attempt+1).Int("max", b.maxReconnect).
			Dur("wait", wait).Msg("socket mode disconnected; reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
	b.log.Error().Int("attempts", b.maxReconnect).Msg("socket mode reconnection attempts exhausted")
}

// pumpEvents reads Socket Mode events and converts interactive callbacks
// into Interactions. Other event types are acknowledged and dropped.
func (b *Bridge) pumpEvents(ctx context.Context) {
	events := b.socket.EventsChan()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			b.handleSocketEvent(ctx, evt)
		}
	}
}

// handleSocketEvent processes a single Socket Mode event.
func (b *Bridge) handleSocketEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeInteractive:
		callback, ok := evt.Data.(slackapi.InteractionCallback)
		if !ok {
			return
		}
		req := evt.Request
		interaction := Interaction{
			Callback: callback,
			Ack: func(payload ...interface{}) {
				if req != nil {
					b.socket.Ack(*req, payload...)
				}
			},
		}
		select {
		case b.interactions <- interaction:
		case <-ctx.Done():
		}

	case socketmode.EventTypeEventsAPI, socketmode.EventTypeSlashCommand:
		// Not subscribed to these; ack so Slack does not redeliver.
		if evt.Request != nil {
			b.socket.Ack(*evt.Request)
		}

	case socketmode.EventTypeConnecting:
		b.log.Debug().Msg("connecting to socket mode")

	case socketmode.EventTypeConnected:
		b.log.Info().Msg("connected to socket mode")

	case socketmode.EventTypeConnectionError:
		b.log.Warn().Interface("data", evt.Data).Msg("socket mode connection error")

	case socketmode.EventTypeDisconnect:
		b.log.Info().Msg("server requested disconnect; will reconnect")
	}
}
