package core

import "fmt"

// RowIDColumn is the reserved column name carrying row identity. It may
// not be declared as a regular field.
const RowIDColumn = "rowid"

// Schema is an ordered, immutable collection of fields describing one
// virtual table. Column positions in the engine's scan protocol follow
// the declaration order.
type Schema struct {
	fields []Field
	byName map[string]int
}

// NewSchema starts a schema declaration.
func NewSchema() *SchemaBuilder {
	return &SchemaBuilder{byName: make(map[string]int)}
}

// SchemaBuilder accumulates field declarations. Capability metadata is
// declarative: adapters build their schema once, typically in their
// constructor, and reuse it for every scan.
type SchemaBuilder struct {
	fields []Field
	byName map[string]int
	err    error
}

// Add declares a field. Duplicate names and the reserved rowid column
// are rejected when Build is called.
func (b *SchemaBuilder) Add(f Field) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	if f.Name == "" {
		b.err = fmt.Errorf("field with empty name")
		return b
	}
	if f.Name == RowIDColumn {
		b.err = fmt.Errorf("field name %q is reserved", RowIDColumn)
		return b
	}
	if _, ok := b.byName[f.Name]; ok {
		b.err = fmt.Errorf("duplicate field %q", f.Name)
		return b
	}
	b.byName[f.Name] = len(b.fields)
	b.fields = append(b.fields, f)
	return b
}

// Build finalizes the schema.
func (b *SchemaBuilder) Build() (*Schema, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.fields) == 0 {
		return nil, fmt.Errorf("schema has no fields")
	}
	s := &Schema{
		fields: make([]Field, len(b.fields)),
		byName: make(map[string]int, len(b.byName)),
	}
	copy(s.fields, b.fields)
	for name, i := range b.byName {
		s.byName[name] = i
	}
	return s, nil
}

// MustBuild is Build for statically-known schemas; it panics on error.
func (b *SchemaBuilder) MustBuild() *Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

// Fields returns the fields in declaration order. The returned slice
// must not be modified.
func (s *Schema) Fields() []Field {
	return s.fields
}

// Field looks a field up by column name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// FieldAt returns the field at the given column position.
func (s *Schema) FieldAt(pos int) (Field, bool) {
	if pos < 0 || pos >= len(s.fields) {
		return Field{}, false
	}
	return s.fields[pos], true
}

// Columns returns the column names in declaration order.
func (s *Schema) Columns() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Len returns the number of declared fields.
func (s *Schema) Len() int {
	return len(s.fields)
}
