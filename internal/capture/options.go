package capture

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/zulandar/notary/internal/docstore"
)

// OptionProviders fulfills the modal's dynamic typeahead queries. Both
// providers are stateless: everything they need arrives with the request.
type OptionProviders struct {
	store docstore.Client
	allow Allowlist
	log   zerolog.Logger
}

// NewOptionProviders creates the providers for both select fields.
func NewOptionProviders(store docstore.Client, allow Allowlist, log zerolog.Logger) (*OptionProviders, error) {
	if store == nil {
		return nil, fmt.Errorf("capture: option providers: store is required")
	}
	return &OptionProviders{store: store, allow: allow, log: log}, nil
}

// DatabaseOptions lists databases matching query. An empty query yields
// the store's default listing. Results are filtered to the allow-list and
// capped at the platform's option limit, keeping the store's order.
func (p *OptionProviders) DatabaseOptions(ctx context.Context, query string) ([]*slack.OptionBlockObject, error) {
	results, err := p.store.Search(ctx, query, docstore.KindDatabase)
	if err != nil {
		return nil, fmt.Errorf("capture: database options: %w", err)
	}

	options := make([]*slack.OptionBlockObject, 0, len(results))
	for _, r := range results {
		if !p.allow.Allows(r.ID) {
			continue
		}
		options = append(options, makeOption(r.Title, r.ID))
		if len(options) == maxOptions {
			break
		}
	}
	return options, nil
}

// ParentOptions lists records in the context's selected database whose
// title contains query. The parent field depends on the database field:
// until a database is selected there is nothing to offer, so the result
// is empty rather than an error. The database's title property name is
// resolved per call because each database names it differently.
func (p *OptionProviders) ParentOptions(ctx context.Context, ictx InteractionContext, query string) ([]*slack.OptionBlockObject, error) {
	if ictx.DatabaseID == "" {
		return nil, nil
	}

	schema, err := p.store.GetSchema(ctx, ictx.DatabaseID)
	if err != nil {
		return nil, fmt.Errorf("capture: parent options: %w", err)
	}
	resolved, err := ResolveSchema(schema, p.log)
	if err != nil {
		return nil, fmt.Errorf("capture: parent options: %w", err)
	}

	records, err := p.store.QueryRecords(ctx, ictx.DatabaseID, resolved.TitleProperty, query)
	if err != nil {
		return nil, fmt.Errorf("capture: parent options: %w", err)
	}

	options := make([]*slack.OptionBlockObject, 0, len(records))
	for _, r := range records {
		options = append(options, makeOption(r.Title, r.ID))
		if len(options) == maxOptions {
			break
		}
	}
	return options, nil
}

// makeOption builds a select option labelled with the entity's title,
// falling back to its id when untitled. Labels are capped at the
// platform's limit.
func makeOption(title, id string) *slack.OptionBlockObject {
	label := title
	if label == "" {
		label = id
	}
	label = truncateRunes(label, maxLabelLen)
	return slack.NewOptionBlockObject(id,
		slack.NewTextBlockObject(slack.PlainTextType, label, false, false), nil)
}
