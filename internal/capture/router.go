package capture

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/zulandar/notary/internal/capture/slackbridge"
)

// Chat is the platform surface the workflow calls back into.
type Chat interface {
	// OpenView opens a modal using a single-use trigger id. The trigger
	// expires within seconds; an expired trigger fails and is not retried.
	OpenView(ctx context.Context, triggerID string, view slack.ModalViewRequest) error
	// UpdateView replaces an open modal in place.
	UpdateView(ctx context.Context, viewID string, view slack.ModalViewRequest) error
	// Permalink resolves a durable URL for a message.
	Permalink(ctx context.Context, channelID, messageTS string) (string, error)
}

// optionsResponse is the ack payload for a block_suggestion request.
type optionsResponse struct {
	Options []*slack.OptionBlockObject `json:"options"`
}

// Router classifies platform interactions and drives the capture workflow.
// Every interaction carries a short response deadline, so each handler
// acknowledges before doing slow work.
type Router struct {
	chat      Chat
	providers *OptionProviders
	submit    *SubmissionHandler
	log       zerolog.Logger
}

// RouterOpts holds parameters for creating a Router.
type RouterOpts struct {
	Chat      Chat
	Providers *OptionProviders
	Submit    *SubmissionHandler
	Logger    zerolog.Logger
}

// NewRouter creates a Router.
func NewRouter(opts RouterOpts) (*Router, error) {
	if opts.Chat == nil {
		return nil, fmt.Errorf("capture: router: chat is required")
	}
	if opts.Providers == nil {
		return nil, fmt.Errorf("capture: router: option providers are required")
	}
	if opts.Submit == nil {
		return nil, fmt.Errorf("capture: router: submission handler is required")
	}
	return &Router{
		chat:      opts.Chat,
		providers: opts.Providers,
		submit:    opts.Submit,
		log:       opts.Logger,
	}, nil
}

// Handle routes a single interaction. Routing paths:
//  1. message shortcut → ack, open the capture modal
//  2. database selection → ack, rebuild the modal with the database in context
//  3. option query → resolve options, ack with them
//  4. modal submission → create the record, ack with the outcome
//  5. everything else → ack and ignore
func (r *Router) Handle(ctx context.Context, in slackbridge.Interaction) {
	cb := in.Callback

	switch cb.Type {
	case slack.InteractionTypeMessageAction:
		in.Ack()
		if cb.CallbackID != ShortcutCallbackID {
			return
		}
		r.handleShortcut(ctx, cb)

	case slack.InteractionTypeBlockActions:
		in.Ack()
		r.handleBlockActions(ctx, cb)

	case slack.InteractionTypeBlockSuggestion:
		// The options ride on the ack itself, so resolve first.
		in.Ack(r.suggestOptions(ctx, cb))

	case slack.InteractionTypeViewSubmission:
		if cb.View.CallbackID != ModalCallbackID {
			in.Ack()
			return
		}
		if resp := r.submit.Handle(ctx, cb); resp != nil {
			in.Ack(resp)
			return
		}
		in.Ack()

	default:
		in.Ack()
	}
}

// handleShortcut opens the capture modal seeded from the invoking message.
func (r *Router) handleShortcut(ctx context.Context, cb slack.InteractionCallback) {
	log := zerolog.Ctx(ctx)
	shortcutsTotal.Inc()

	messageTS := cb.Message.Timestamp
	if messageTS == "" {
		messageTS = cb.MessageTs
	}
	ictx := InteractionContext{
		ChannelID:   cb.Channel.ID,
		MessageTS:   messageTS,
		MessageText: cb.Message.Text,
	}

	view, err := BuildModal(ictx)
	if err != nil {
		log.Error().Err(err).Msg("build capture modal")
		failuresTotal.WithLabelValues("open_form").Inc()
		return
	}

	// The trigger id is single-use and expires within seconds. If the
	// open fails the user has to re-invoke the shortcut; retrying with a
	// dead trigger cannot succeed.
	if err := r.chat.OpenView(ctx, cb.TriggerID, view); err != nil {
		log.Error().Err(err).Str("channel_id", cb.Channel.ID).Msg("open capture modal")
		failuresTotal.WithLabelValues("open_form").Inc()
		return
	}
	log.Info().Str("channel_id", cb.Channel.ID).Str("message_ts", messageTS).Msg("capture modal opened")
}

// handleBlockActions reacts to the database selection by rebuilding the
// modal with the chosen database embedded in the context. This is how the
// parent field's option queries learn their prerequisite: the next
// block_suggestion round trip reads the updated private_metadata.
func (r *Router) handleBlockActions(ctx context.Context, cb slack.InteractionCallback) {
	log := zerolog.Ctx(ctx)

	for _, action := range cb.ActionCallback.BlockActions {
		if action.ActionID != ActionDatabaseSelect {
			continue
		}

		ictx, err := DecodeContext(cb.View.PrivateMetadata)
		if err != nil {
			log.Error().Err(err).Msg("database selection carried unreadable context")
			return
		}
		ictx.DatabaseID = action.SelectedOption.Value

		view, err := BuildModal(ictx)
		if err != nil {
			log.Error().Err(err).Msg("rebuild capture modal")
			return
		}
		if err := r.chat.UpdateView(ctx, cb.View.ID, view); err != nil {
			log.Error().Err(err).Str("view_id", cb.View.ID).Msg("update capture modal")
			return
		}
		log.Debug().Str("database_id", ictx.DatabaseID).Msg("modal rebuilt with selected database")
		return
	}
}

// suggestOptions fulfills a typeahead query for either select field. On
// provider failure the user gets an empty list; there is no error surface
// in the options protocol worth crashing the interaction for.
func (r *Router) suggestOptions(ctx context.Context, cb slack.InteractionCallback) optionsResponse {
	log := zerolog.Ctx(ctx)

	var options []*slack.OptionBlockObject
	var err error

	switch cb.ActionID {
	case ActionDatabaseSelect:
		optionQueriesTotal.WithLabelValues("database").Inc()
		options, err = r.providers.DatabaseOptions(ctx, cb.Value)

	case ActionParentSelect:
		optionQueriesTotal.WithLabelValues("parent").Inc()
		var ictx InteractionContext
		ictx, err = DecodeContext(cb.View.PrivateMetadata)
		if err == nil {
			options, err = r.providers.ParentOptions(ctx, ictx, cb.Value)
		}

	default:
		log.Debug().Str("action_id", cb.ActionID).Msg("option query for unknown field")
		return optionsResponse{Options: []*slack.OptionBlockObject{}}
	}

	if err != nil {
		log.Warn().Err(err).Str("action_id", cb.ActionID).Msg("option query failed; returning empty list")
		failuresTotal.WithLabelValues("options").Inc()
		options = nil
	}
	if options == nil {
		options = []*slack.OptionBlockObject{}
	}
	return optionsResponse{Options: options}
}
