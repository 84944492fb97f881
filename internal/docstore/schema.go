package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// propertyWire is one member of the schema "properties" object.
type propertyWire struct {
	Type     string        `json:"type"`
	Relation *relationWire `json:"relation"`
}

type relationWire struct {
	DatabaseID string `json:"database_id"`
}

// parseSchemaProperties extracts the "properties" object from a database
// response, preserving member declaration order. encoding/json maps lose
// object order, so the object is walked token by token instead.
func parseSchemaProperties(body []byte) ([]Property, error) {
	dec := json.NewDecoder(bytes.NewReader(body))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if tok != json.Delim('{') {
		return nil, fmt.Errorf("parse schema: expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse schema: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("parse schema: expected key, got %v", keyTok)
		}

		if key != "properties" {
			// Skip the value of every other top-level member.
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, fmt.Errorf("parse schema: skip %q: %w", key, err)
			}
			continue
		}

		return parsePropertiesObject(dec)
	}

	return nil, fmt.Errorf("parse schema: no properties object in response")
}

// parsePropertiesObject reads the members of the "properties" object in
// the order they appear.
func parsePropertiesObject(dec *json.Decoder) ([]Property, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if tok != json.Delim('{') {
		return nil, fmt.Errorf("parse schema: properties is not an object")
	}

	var props []Property
	for dec.More() {
		nameTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse schema: %w", err)
		}
		name, ok := nameTok.(string)
		if !ok {
			return nil, fmt.Errorf("parse schema: expected property name, got %v", nameTok)
		}

		var pw propertyWire
		if err := dec.Decode(&pw); err != nil {
			return nil, fmt.Errorf("parse schema: property %q: %w", name, err)
		}

		p := Property{Name: name, Type: pw.Type}
		if pw.Relation != nil {
			p.RelationTargetID = pw.Relation.DatabaseID
		}
		props = append(props, p)
	}

	// Consume the closing brace so the decoder is left in a sane state.
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return props, nil
}
