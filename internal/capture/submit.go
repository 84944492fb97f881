package capture

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/zulandar/notary/internal/docstore"
)

// genericFailureMessage is shown when record creation cannot proceed for a
// reason the user cannot correct from the form.
const genericFailureMessage = "Couldn't create the record. Please try again in a moment."

// augmentTimeout bounds the deferred permalink/append work.
const augmentTimeout = 15 * time.Second

// FormState is the submitted form, read out of the view's state values.
// It exists only within one submission event.
type FormState struct {
	DatabaseID string
	ParentID   string
	Title      string
	Notes      string
}

// parseFormState extracts the submitted values from the view.
func parseFormState(view slack.View) FormState {
	if view.State == nil {
		return FormState{}
	}
	vals := view.State.Values
	return FormState{
		DatabaseID: vals[BlockDatabase][ActionDatabaseSelect].SelectedOption.Value,
		ParentID:   vals[BlockParent][ActionParentSelect].SelectedOption.Value,
		Title:      vals[BlockTitle][ActionTitleInput].Value,
		Notes:      vals[BlockNotes][ActionNotesInput].Value,
	}
}

// SubmissionHandler turns a submitted capture modal into a document store
// record. Record creation is the one fatal step; linking back to the seed
// message and appending notes are best-effort and run after the submission
// is acknowledged.
type SubmissionHandler struct {
	store docstore.Client
	chat  Chat
	log   zerolog.Logger

	wg sync.WaitGroup
}

// SubmissionHandlerOpts holds parameters for creating a SubmissionHandler.
type SubmissionHandlerOpts struct {
	Store  docstore.Client
	Chat   Chat
	Logger zerolog.Logger
}

// NewSubmissionHandler creates a SubmissionHandler.
func NewSubmissionHandler(opts SubmissionHandlerOpts) (*SubmissionHandler, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("capture: submission handler: store is required")
	}
	if opts.Chat == nil {
		return nil, fmt.Errorf("capture: submission handler: chat is required")
	}
	return &SubmissionHandler{store: opts.Store, chat: opts.Chat, log: opts.Logger}, nil
}

// Handle processes a view_submission callback and returns the ack payload:
// nil closes the modal, a field-errors response keeps it open for
// correction, an update response replaces it with a failure notice.
func (h *SubmissionHandler) Handle(ctx context.Context, callback slack.InteractionCallback) *slack.ViewSubmissionResponse {
	log := zerolog.Ctx(ctx)

	ictx, err := DecodeContext(callback.View.PrivateMetadata)
	if err != nil {
		log.Error().Err(err).Msg("submission carried unreadable context")
		failuresTotal.WithLabelValues("context").Inc()
		return failureResponse()
	}
	state := parseFormState(callback.View)

	// The form's selection wins; fall back to the database chosen in an
	// earlier round trip. Neither set is a correction request, not a
	// failure: the form stays open and no record is created.
	databaseID := state.DatabaseID
	if databaseID == "" {
		databaseID = ictx.DatabaseID
	}
	if databaseID == "" {
		return slack.NewErrorsViewSubmissionResponse(map[string]string{
			BlockDatabase: "Choose a database to create the record in.",
		})
	}
	ictx.DatabaseID = databaseID

	title := strings.TrimSpace(state.Title)
	if title == "" {
		title = PlaceholderTitle
	}

	schema, err := h.store.GetSchema(ctx, databaseID)
	if err != nil {
		log.Error().Err(err).Str("database_id", databaseID).Msg("schema fetch failed")
		failuresTotal.WithLabelValues("schema").Inc()
		return failureResponse()
	}
	resolved, err := ResolveSchema(schema, h.log)
	if err != nil {
		log.Error().Err(err).Str("database_id", databaseID).Msg("schema resolution failed")
		failuresTotal.WithLabelValues("schema").Inc()
		return failureResponse()
	}

	req := docstore.CreateRecordRequest{
		DatabaseID:    databaseID,
		TitleProperty: resolved.TitleProperty,
		Title:         title,
	}
	switch {
	case state.ParentID != "" && resolved.RelationProperty != "":
		req.RelationProperty = resolved.RelationProperty
		req.ParentID = state.ParentID
	case state.ParentID != "":
		// A parent was picked but the database cannot express the link.
		// The record is still worth creating; drop the relation quietly.
		log.Debug().Str("database_id", databaseID).Msg("no self-relation property; parent link skipped")
	}

	created, err := h.store.CreateRecord(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("database_id", databaseID).Msg("record creation failed")
		failuresTotal.WithLabelValues("create").Inc()
		return failureResponse()
	}
	recordsCreatedTotal.Inc()
	log.Info().Str("record_id", created.ID).Str("database_id", databaseID).Msg("record created")

	// The record exists; everything past this point must not affect the
	// user-visible outcome. Run it after the ack, detached from the
	// event's cancellation.
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		augCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), augmentTimeout)
		defer cancel()
		h.augment(augCtx, ictx, state.Notes, created)
	}()

	return nil
}

// augment appends contextual content to the created record: the notes the
// user typed and a permalink back to the seed message. Both are
// best-effort; failures are logged and swallowed.
func (h *SubmissionHandler) augment(ctx context.Context, ictx InteractionContext, notes string, created docstore.CreatedRecord) {
	permalink, err := h.chat.Permalink(ctx, ictx.ChannelID, ictx.MessageTS)
	if err != nil {
		h.log.Warn().Err(err).Str("record_id", created.ID).Msg("permalink resolution failed; continuing without link")
		failuresTotal.WithLabelValues("permalink").Inc()
		permalink = ""
	}

	var blocks []docstore.Block
	if strings.TrimSpace(notes) != "" {
		blocks = append(blocks, docstore.Block{Type: docstore.BlockParagraph, Text: notes})
	}
	if permalink != "" {
		blocks = append(blocks, docstore.Block{Type: docstore.BlockBookmark, URL: permalink})
	}
	if len(blocks) == 0 {
		return
	}

	if err := h.store.AppendBlocks(ctx, created.ID, blocks); err != nil {
		h.log.Warn().Err(err).Str("record_id", created.ID).Msg("block append failed; record already created")
		failuresTotal.WithLabelValues("append").Inc()
	}
}

// Wait blocks until all deferred augmentation work has finished. Called on
// shutdown and by tests.
func (h *SubmissionHandler) Wait() {
	h.wg.Wait()
}

// failureResponse replaces the modal with a generic failure notice.
func failureResponse() *slack.ViewSubmissionResponse {
	view := slack.ModalViewRequest{
		Type:  slack.VTModal,
		Title: slack.NewTextBlockObject(slack.PlainTextType, "Capture failed", false, false),
		Close: slack.NewTextBlockObject(slack.PlainTextType, "Close", false, false),
		Blocks: slack.Blocks{
			BlockSet: []slack.Block{
				slack.NewSectionBlock(
					slack.NewTextBlockObject(slack.PlainTextType, genericFailureMessage, false, false),
					nil, nil),
			},
		},
	}
	return slack.NewUpdateViewSubmissionResponse(&view)
}
