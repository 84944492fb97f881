package capture

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/zulandar/notary/internal/docstore"
)

// ErrNoTitleProperty indicates a database schema with no title-typed
// property. The store guarantees exactly one, so hitting this means the
// schema is unusable; the operation fails and is never retried.
var ErrNoTitleProperty = errors.New("no title property in schema")

// ResolvedSchema is what the workflow needs from a database schema:
// the property holding record titles, and, when the database relates
// records to each other, the property linking a record to its parent.
type ResolvedSchema struct {
	TitleProperty    string
	RelationProperty string // empty when the database has no self-relation
}

// ResolveSchema scans a schema for the title property and an optional
// self-referential relation property. Property names are not statically
// known; each database names its fields differently, so this runs fresh
// for every operation.
//
// When several relation properties target the database itself, the first
// by declaration order wins. That choice is arbitrary; the candidates are
// logged so a mislinked parent can be traced.
func ResolveSchema(schema docstore.Schema, log zerolog.Logger) (ResolvedSchema, error) {
	var resolved ResolvedSchema
	var selfRelations []string

	for _, p := range schema.Properties {
		switch p.Type {
		case docstore.PropertyTitle:
			if resolved.TitleProperty == "" {
				resolved.TitleProperty = p.Name
			}
		case docstore.PropertyRelation:
			if p.RelationTargetID == schema.DatabaseID {
				selfRelations = append(selfRelations, p.Name)
			}
		}
	}

	if resolved.TitleProperty == "" {
		return ResolvedSchema{}, fmt.Errorf("capture: database %s: %w", schema.DatabaseID, ErrNoTitleProperty)
	}

	if len(selfRelations) > 0 {
		resolved.RelationProperty = selfRelations[0]
	}
	if len(selfRelations) > 1 {
		log.Warn().
			Str("database_id", schema.DatabaseID).
			Str("chosen", resolved.RelationProperty).
			Str("candidates", strings.Join(selfRelations, ", ")).
			Msg("multiple self-relation properties; using first by declaration order")
	}

	return resolved, nil
}
