package capture

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/zulandar/notary/internal/docstore"
)

// taskSchema is a database with a title property and a self-relation.
func taskSchema() docstore.Schema {
	return docstore.Schema{
		DatabaseID: "db-1",
		Properties: []docstore.Property{
			{Name: "Task", Type: docstore.PropertyTitle},
			{Name: "Parent", Type: docstore.PropertyRelation, RelationTargetID: "db-1"},
		},
	}
}

func newSubmitHandler(t *testing.T, store docstore.Client, chat Chat) *SubmissionHandler {
	t.Helper()
	h, err := NewSubmissionHandler(SubmissionHandlerOpts{Store: store, Chat: chat, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("NewSubmissionHandler: %v", err)
	}
	return h
}

// submission builds a view_submission callback with the given form state
// on top of an encoded context.
func submission(t *testing.T, ictx InteractionContext, state FormState) slack.InteractionCallback {
	t.Helper()
	meta, err := ictx.Encode()
	if err != nil {
		t.Fatalf("encode context: %v", err)
	}
	values := map[string]map[string]slack.BlockAction{
		BlockDatabase: {ActionDatabaseSelect: {SelectedOption: slack.OptionBlockObject{Value: state.DatabaseID}}},
		BlockParent:   {ActionParentSelect: {SelectedOption: slack.OptionBlockObject{Value: state.ParentID}}},
		BlockTitle:    {ActionTitleInput: {Value: state.Title}},
		BlockNotes:    {ActionNotesInput: {Value: state.Notes}},
	}
	return slack.InteractionCallback{
		Type: slack.InteractionTypeViewSubmission,
		View: slack.View{
			CallbackID:      ModalCallbackID,
			PrivateMetadata: meta,
			State:           &slack.ViewState{Values: values},
		},
	}
}

func TestHandle_CreatesRecordWithRelation(t *testing.T) {
	store := newMockStore()
	store.schemas["db-1"] = taskSchema()
	chat := newMockChat()
	h := newSubmitHandler(t, store, chat)

	ictx := InteractionContext{ChannelID: "C1", MessageTS: "100.1", MessageText: "seed"}
	resp := h.Handle(context.Background(), submission(t, ictx, FormState{
		DatabaseID: "db-1",
		ParentID:   "rec-5",
		Title:      "Fix login bug",
		Notes:      "needs review",
	}))
	h.Wait()

	if resp != nil {
		t.Fatalf("resp = %+v, want nil (plain ack closes the modal)", resp)
	}
	if store.createCount() != 1 {
		t.Fatalf("create calls = %d, want 1", store.createCount())
	}
	req := store.lastCreate()
	if req.DatabaseID != "db-1" || req.TitleProperty != "Task" || req.Title != "Fix login bug" {
		t.Errorf("create request = %+v", req)
	}
	if req.RelationProperty != "Parent" || req.ParentID != "rec-5" {
		t.Errorf("relation not set: %+v", req)
	}

	// Augmentation: notes paragraph plus permalink bookmark.
	if store.appendCount() != 1 {
		t.Fatalf("append calls = %d, want 1", store.appendCount())
	}
	blocks := store.lastAppend().blocks
	if len(blocks) != 2 {
		t.Fatalf("appended %d blocks, want 2", len(blocks))
	}
	if blocks[0].Type != docstore.BlockParagraph || blocks[0].Text != "needs review" {
		t.Errorf("blocks[0] = %+v", blocks[0])
	}
	if blocks[1].Type != docstore.BlockBookmark || blocks[1].URL != chat.permalink {
		t.Errorf("blocks[1] = %+v", blocks[1])
	}
}

func TestHandle_MissingDatabaseIsFieldError(t *testing.T) {
	store := newMockStore()
	h := newSubmitHandler(t, store, newMockChat())

	ictx := InteractionContext{ChannelID: "C1", MessageTS: "100.1"}
	resp := h.Handle(context.Background(), submission(t, ictx, FormState{Title: "t"}))
	h.Wait()

	if resp == nil {
		t.Fatal("expected a field-error response")
	}
	if resp.ResponseAction != slack.RAErrors {
		t.Errorf("ResponseAction = %q, want errors", resp.ResponseAction)
	}
	if _, ok := resp.Errors[BlockDatabase]; !ok {
		t.Errorf("Errors = %v, want entry for %s", resp.Errors, BlockDatabase)
	}
	if store.createCount() != 0 {
		t.Error("create must not be invoked on validation failure")
	}
	if store.schemaCalls != 0 {
		t.Error("schema must not be fetched on validation failure")
	}
}

func TestHandle_DatabaseFallsBackToContext(t *testing.T) {
	store := newMockStore()
	store.schemas["db-9"] = docstore.Schema{
		DatabaseID: "db-9",
		Properties: []docstore.Property{{Name: "Name", Type: docstore.PropertyTitle}},
	}
	h := newSubmitHandler(t, store, newMockChat())

	// Database selected in an earlier round trip, absent from final state.
	ictx := InteractionContext{ChannelID: "C1", MessageTS: "100.1", DatabaseID: "db-9"}
	resp := h.Handle(context.Background(), submission(t, ictx, FormState{Title: "t"}))
	h.Wait()

	if resp != nil {
		t.Fatalf("resp = %+v, want nil", resp)
	}
	if store.createCount() != 1 || store.lastCreate().DatabaseID != "db-9" {
		t.Errorf("create calls = %d, last = %+v", store.createCount(), store.lastCreate())
	}
}

func TestHandle_BlankTitleUsesPlaceholder(t *testing.T) {
	store := newMockStore()
	store.schemas["db-1"] = taskSchema()
	h := newSubmitHandler(t, store, newMockChat())

	ictx := InteractionContext{ChannelID: "C1", MessageTS: "100.1"}
	resp := h.Handle(context.Background(), submission(t, ictx, FormState{
		DatabaseID: "db-1",
		Title:      "   ",
	}))
	h.Wait()

	if resp != nil {
		t.Fatalf("resp = %+v, want nil", resp)
	}
	if got := store.lastCreate().Title; got != PlaceholderTitle {
		t.Errorf("Title = %q, want %q", got, PlaceholderTitle)
	}
}

func TestHandle_ParentWithoutRelationIsSilentlyDropped(t *testing.T) {
	store := newMockStore()
	store.schemas["db-1"] = docstore.Schema{
		DatabaseID: "db-1",
		Properties: []docstore.Property{{Name: "Task", Type: docstore.PropertyTitle}},
	}
	h := newSubmitHandler(t, store, newMockChat())

	ictx := InteractionContext{ChannelID: "C1", MessageTS: "100.1"}
	resp := h.Handle(context.Background(), submission(t, ictx, FormState{
		DatabaseID: "db-1",
		ParentID:   "rec-5",
		Title:      "t",
	}))
	h.Wait()

	if resp != nil {
		t.Fatalf("resp = %+v, want nil (missing relation support is not an error)", resp)
	}
	req := store.lastCreate()
	if req.RelationProperty != "" || req.ParentID != "" {
		t.Errorf("relation should be omitted, got %+v", req)
	}
}

func TestHandle_SchemaErrorIsGenericFailure(t *testing.T) {
	store := newMockStore()
	store.schemas["db-1"] = docstore.Schema{
		DatabaseID: "db-1",
		Properties: []docstore.Property{{Name: "Status", Type: "select"}},
	}
	h := newSubmitHandler(t, store, newMockChat())

	ictx := InteractionContext{ChannelID: "C1", MessageTS: "100.1"}
	resp := h.Handle(context.Background(), submission(t, ictx, FormState{DatabaseID: "db-1", Title: "t"}))
	h.Wait()

	if resp == nil {
		t.Fatal("expected a failure response")
	}
	if resp.ResponseAction != slack.RAUpdate {
		t.Errorf("ResponseAction = %q, want update", resp.ResponseAction)
	}
	if store.createCount() != 0 {
		t.Error("create must not be invoked when the schema is unusable")
	}
}

func TestHandle_CreateFailureIsGenericFailure(t *testing.T) {
	store := newMockStore()
	store.schemas["db-1"] = taskSchema()
	store.createErr = errors.New("store down")
	h := newSubmitHandler(t, store, newMockChat())

	ictx := InteractionContext{ChannelID: "C1", MessageTS: "100.1"}
	resp := h.Handle(context.Background(), submission(t, ictx, FormState{DatabaseID: "db-1", Title: "t"}))
	h.Wait()

	if resp == nil || resp.ResponseAction != slack.RAUpdate {
		t.Fatalf("resp = %+v, want generic failure update", resp)
	}
	if store.appendCount() != 0 {
		t.Error("no augmentation after a failed create")
	}
}

func TestHandle_PermalinkFailureStillAppendsNotes(t *testing.T) {
	store := newMockStore()
	store.schemas["db-1"] = taskSchema()
	chat := newMockChat()
	chat.permalinkErr = errors.New("message gone")
	h := newSubmitHandler(t, store, chat)

	ictx := InteractionContext{ChannelID: "C1", MessageTS: "100.1"}
	resp := h.Handle(context.Background(), submission(t, ictx, FormState{
		DatabaseID: "db-1",
		Title:      "t",
		Notes:      "context notes",
	}))
	h.Wait()

	if resp != nil {
		t.Fatalf("resp = %+v, want nil (permalink failure is best-effort)", resp)
	}
	if store.createCount() != 1 {
		t.Fatal("record must still be created")
	}
	if store.appendCount() != 1 {
		t.Fatalf("append calls = %d, want 1", store.appendCount())
	}
	blocks := store.lastAppend().blocks
	if len(blocks) != 1 || blocks[0].Type != docstore.BlockParagraph {
		t.Errorf("blocks = %+v, want only the notes paragraph", blocks)
	}
}

func TestHandle_NothingToAppendSkipsCall(t *testing.T) {
	store := newMockStore()
	store.schemas["db-1"] = taskSchema()
	chat := newMockChat()
	chat.permalinkErr = errors.New("message gone")
	h := newSubmitHandler(t, store, chat)

	ictx := InteractionContext{ChannelID: "C1", MessageTS: "100.1"}
	resp := h.Handle(context.Background(), submission(t, ictx, FormState{DatabaseID: "db-1", Title: "t"}))
	h.Wait()

	if resp != nil {
		t.Fatalf("resp = %+v, want nil", resp)
	}
	if store.appendCount() != 0 {
		t.Error("append must be skipped when there is no content")
	}
}

func TestHandle_AppendFailureIsSwallowed(t *testing.T) {
	store := newMockStore()
	store.schemas["db-1"] = taskSchema()
	store.appendErr = errors.New("append refused")
	h := newSubmitHandler(t, store, newMockChat())

	ictx := InteractionContext{ChannelID: "C1", MessageTS: "100.1"}
	resp := h.Handle(context.Background(), submission(t, ictx, FormState{
		DatabaseID: "db-1",
		Title:      "t",
		Notes:      "n",
	}))
	h.Wait()

	if resp != nil {
		t.Fatalf("resp = %+v, want nil (append failure must not surface)", resp)
	}
}

func TestHandle_UnreadableContextIsGenericFailure(t *testing.T) {
	store := newMockStore()
	h := newSubmitHandler(t, store, newMockChat())

	cb := slack.InteractionCallback{
		Type: slack.InteractionTypeViewSubmission,
		View: slack.View{CallbackID: ModalCallbackID, PrivateMetadata: "corrupt"},
	}
	resp := h.Handle(context.Background(), cb)
	h.Wait()

	if resp == nil || resp.ResponseAction != slack.RAUpdate {
		t.Fatalf("resp = %+v, want generic failure update", resp)
	}
	if store.createCount() != 0 {
		t.Error("create must not be invoked")
	}
}
