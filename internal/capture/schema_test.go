package capture

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/zulandar/notary/internal/docstore"
)

func TestResolveSchema_TitleAndSelfRelation(t *testing.T) {
	schema := docstore.Schema{
		DatabaseID: "db-1",
		Properties: []docstore.Property{
			{Name: "Status", Type: "select"},
			{Name: "Task", Type: docstore.PropertyTitle},
			{Name: "Project", Type: docstore.PropertyRelation, RelationTargetID: "db-other"},
			{Name: "Parent", Type: docstore.PropertyRelation, RelationTargetID: "db-1"},
		},
	}

	resolved, err := ResolveSchema(schema, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.TitleProperty != "Task" {
		t.Errorf("TitleProperty = %q, want Task", resolved.TitleProperty)
	}
	if resolved.RelationProperty != "Parent" {
		t.Errorf("RelationProperty = %q, want Parent (db-other relation must be ignored)", resolved.RelationProperty)
	}
}

func TestResolveSchema_NoTitleIsError(t *testing.T) {
	schema := docstore.Schema{
		DatabaseID: "db-1",
		Properties: []docstore.Property{
			{Name: "Status", Type: "select"},
			{Name: "Parent", Type: docstore.PropertyRelation, RelationTargetID: "db-1"},
		},
	}

	_, err := ResolveSchema(schema, zerolog.Nop())
	if err == nil {
		t.Fatal("expected error for schema without title property")
	}
	if !errors.Is(err, ErrNoTitleProperty) {
		t.Errorf("error %v is not ErrNoTitleProperty", err)
	}
}

func TestResolveSchema_NoRelationIsNotError(t *testing.T) {
	schema := docstore.Schema{
		DatabaseID: "db-1",
		Properties: []docstore.Property{
			{Name: "Task", Type: docstore.PropertyTitle},
		},
	}

	resolved, err := ResolveSchema(schema, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.RelationProperty != "" {
		t.Errorf("RelationProperty = %q, want empty", resolved.RelationProperty)
	}
}

func TestResolveSchema_MultipleSelfRelationsFirstWins(t *testing.T) {
	schema := docstore.Schema{
		DatabaseID: "db-1",
		Properties: []docstore.Property{
			{Name: "Blocks", Type: docstore.PropertyRelation, RelationTargetID: "db-1"},
			{Name: "Task", Type: docstore.PropertyTitle},
			{Name: "Parent", Type: docstore.PropertyRelation, RelationTargetID: "db-1"},
		},
	}

	resolved, err := ResolveSchema(schema, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.RelationProperty != "Blocks" {
		t.Errorf("RelationProperty = %q, want Blocks (first by declaration order)", resolved.RelationProperty)
	}
}

func TestResolveSchema_EmptySchema(t *testing.T) {
	_, err := ResolveSchema(docstore.Schema{DatabaseID: "db-1"}, zerolog.Nop())
	if !errors.Is(err, ErrNoTitleProperty) {
		t.Errorf("error %v, want ErrNoTitleProperty", err)
	}
}
