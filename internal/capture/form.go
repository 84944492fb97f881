package capture

import (
	"strings"

	"github.com/slack-go/slack"
)

// Shortcut and modal callback ids, wired in the Slack app manifest.
const (
	ShortcutCallbackID = "capture_message"
	ModalCallbackID    = "capture_modal"
)

// Block and action ids for the modal fields. Block ids are also the keys
// field-scoped validation errors attach to.
const (
	BlockDatabase = "database_block"
	BlockParent   = "parent_block"
	BlockTitle    = "title_block"
	BlockNotes    = "notes_block"

	ActionDatabaseSelect = "database_select"
	ActionParentSelect   = "parent_select"
	ActionTitleInput     = "title_input"
	ActionNotesInput     = "notes_input"
)

const (
	// PlaceholderTitle is used when the seed message is empty and when a
	// submitted title is blank.
	PlaceholderTitle = "Untitled capture"

	// maxTitleLen caps the pre-filled title derived from the message.
	maxTitleLen = 80
	// maxLabelLen caps option labels, per the platform's option limit.
	maxLabelLen = 75
	// maxOptions caps typeahead option lists, per the platform's limit.
	maxOptions = 25

	ellipsis = "…"
)

// DefaultTitle derives the modal's pre-filled title from the seed message:
// whitespace runs collapse to single spaces, the result is trimmed and
// truncated to maxTitleLen runes with a trailing ellipsis iff truncated.
// An empty message yields PlaceholderTitle.
func DefaultTitle(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return PlaceholderTitle
	}
	return truncateRunes(strings.Join(fields, " "), maxTitleLen)
}

// truncateRunes shortens s to at most max runes, replacing the last rune
// with an ellipsis when truncation occurs.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + ellipsis
}

// BuildModal constructs the capture modal for the given context. The
// context is serialized into private_metadata so later round trips can
// recover it; the same builder serves both the initial open and the
// rebuild after a database is selected.
func BuildModal(ictx InteractionContext) (slack.ModalViewRequest, error) {
	meta, err := ictx.Encode()
	if err != nil {
		return slack.ModalViewRequest{}, err
	}

	minQuery := 0

	dbSelect := slack.NewOptionsSelectBlockElement(
		slack.OptTypeExternal,
		slack.NewTextBlockObject(slack.PlainTextType, "Search databases", false, false),
		ActionDatabaseSelect,
	)
	dbSelect.MinQueryLength = &minQuery
	dbBlock := slack.NewInputBlock(BlockDatabase,
		slack.NewTextBlockObject(slack.PlainTextType, "Database", false, false),
		nil, dbSelect)
	// Rebuild the view when the database changes so the parent field's
	// option queries see the selection in private_metadata.
	dbBlock.DispatchAction = true

	parentSelect := slack.NewOptionsSelectBlockElement(
		slack.OptTypeExternal,
		slack.NewTextBlockObject(slack.PlainTextType, "Search records", false, false),
		ActionParentSelect,
	)
	parentSelect.MinQueryLength = &minQuery
	parentBlock := slack.NewInputBlock(BlockParent,
		slack.NewTextBlockObject(slack.PlainTextType, "Parent record", false, false),
		slack.NewTextBlockObject(slack.PlainTextType, "Pick a database first", false, false),
		parentSelect)
	parentBlock.Optional = true

	titleInput := slack.NewPlainTextInputBlockElement(
		slack.NewTextBlockObject(slack.PlainTextType, "Record title", false, false),
		ActionTitleInput,
	)
	titleInput.InitialValue = DefaultTitle(ictx.MessageText)
	titleBlock := slack.NewInputBlock(BlockTitle,
		slack.NewTextBlockObject(slack.PlainTextType, "Title", false, false),
		nil, titleInput)

	notesInput := slack.NewPlainTextInputBlockElement(
		slack.NewTextBlockObject(slack.PlainTextType, "Anything to add?", false, false),
		ActionNotesInput,
	)
	notesInput.Multiline = true
	notesBlock := slack.NewInputBlock(BlockNotes,
		slack.NewTextBlockObject(slack.PlainTextType, "Notes", false, false),
		nil, notesInput)
	notesBlock.Optional = true

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      ModalCallbackID,
		PrivateMetadata: meta,
		Title:           slack.NewTextBlockObject(slack.PlainTextType, "Capture to record", false, false),
		Submit:          slack.NewTextBlockObject(slack.PlainTextType, "Create", false, false),
		Close:           slack.NewTextBlockObject(slack.PlainTextType, "Cancel", false, false),
		Blocks: slack.Blocks{
			BlockSet: []slack.Block{dbBlock, parentBlock, titleBlock, notesBlock},
		},
	}, nil
}
