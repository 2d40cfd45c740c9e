package agent

import "encoding/json"

// schemaProperty is one property entry in a JSON Schema object, kept
// ordered so a tool's generated schema reads the way it was built.
type schemaProperty struct {
	name   string
	schema map[string]any
}

// SchemaBuilder assembles a JSON Schema object for a tool's
// parameters without every tool hand-writing the same object/required
// boilerplate seen throughout the bundled tools' Schema() methods.
type SchemaBuilder struct {
	properties []schemaProperty
	required   map[string]bool
}

// NewSchemaBuilder starts an empty object schema.
func NewSchemaBuilder() *SchemaBuilder {
	return &SchemaBuilder{required: make(map[string]bool)}
}

func (b *SchemaBuilder) add(name string, required bool, schema map[string]any) *SchemaBuilder {
	b.properties = append(b.properties, schemaProperty{name: name, schema: schema})
	if required {
		b.required[name] = true
	}
	return b
}

// String adds a string property.
func (b *SchemaBuilder) String(name, description string, required bool) *SchemaBuilder {
	return b.add(name, required, map[string]any{"type": "string", "description": description})
}

// Number adds a number property.
func (b *SchemaBuilder) Number(name, description string, required bool) *SchemaBuilder {
	return b.add(name, required, map[string]any{"type": "number", "description": description})
}

// Boolean adds a boolean property.
func (b *SchemaBuilder) Boolean(name, description string, required bool) *SchemaBuilder {
	return b.add(name, required, map[string]any{"type": "boolean", "description": description})
}

// Enum adds a string property restricted to the given values.
func (b *SchemaBuilder) Enum(name, description string, values []string, required bool) *SchemaBuilder {
	return b.add(name, required, map[string]any{
		"type":        "string",
		"description": description,
		"enum":        values,
	})
}

// Array adds an array property whose items match itemSchema (e.g.
// map[string]any{"type": "string"}).
func (b *SchemaBuilder) Array(name, description string, itemSchema map[string]any, required bool) *SchemaBuilder {
	return b.add(name, required, map[string]any{
		"type":        "array",
		"description": description,
		"items":       itemSchema,
	})
}

// Build renders the assembled schema as JSON Schema, matching the
// shape every bundled tool's Schema() method returns by hand.
func (b *SchemaBuilder) Build() json.RawMessage {
	props := make(map[string]any, len(b.properties))
	for _, p := range b.properties {
		props[p.name] = p.schema
	}
	required := make([]string, 0, len(b.required))
	for _, p := range b.properties {
		if b.required[p.name] {
			required = append(required, p.name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	out, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return out
}
