// Package catalog holds the static definition of the case collection: its name,
// partition, field schema and the constant tables used to synthesize data for it.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Data types understood by the backend adapter.
const (
	TypeInt64             = "Int64"
	TypeInt32             = "Int32"
	TypeInt16             = "Int16"
	TypeInt8              = "Int8"
	TypeBool              = "Bool"
	TypeFloat             = "Float"
	TypeDouble            = "Double"
	TypeVarChar           = "VarChar"
	TypeJSON              = "JSON"
	TypeFloatVector       = "FloatVector"
	TypeBinaryVector      = "BinaryVector"
	TypeFloat16Vector     = "Float16Vector"
	TypeBFloat16Vector    = "BFloat16Vector"
	TypeSparseFloatVector = "SparseFloatVector"
)

// ErrInvalidSchema is returned when a schema breaks one of its structural rules.
var ErrInvalidSchema = errors.New("invalid schema")

// Field represents a field definition for a collection schema.
type Field struct {
	Name         string `json:"name"`                   // Field name
	DataType     string `json:"dataType"`               // Data type (e.g., "Int64", "VarChar", "FloatVector")
	IsPrimaryKey bool   `json:"isPrimaryKey,omitempty"` // Whether this field is the primary key
	IsAutoID     bool   `json:"isAutoID,omitempty"`     // Whether the backend generates ids for this field
	Dimension    int64  `json:"dimension,omitempty"`    // Vector dimension (required for dense vector fields)
	Description  string `json:"description,omitempty"`  // Field description
	MaxLength    int64  `json:"maxLength,omitempty"`    // Maximum length (required for VarChar fields)
}

// IsVector reports whether the field stores vectors.
func (f Field) IsVector() bool {
	switch f.DataType {
	case TypeFloatVector, TypeBinaryVector, TypeFloat16Vector, TypeBFloat16Vector, TypeSparseFloatVector:
		return true
	}
	return false
}

// Schema represents a collection schema. It is defined once and never mutated.
type Schema struct {
	Name        string  `json:"name"`               // Collection name
	Description string  `json:"description"`        // Collection description
	ShardNum    int32   `json:"shardNum,omitempty"` // Number of shards, 0 leaves it to the backend
	Fields      []Field `json:"fields"`             // Ordered list of fields in the collection
}

// Partition names a partition of a collection.
type Partition struct {
	Collection string `json:"collection"`
	Name       string `json:"name"`
}

// ParseSchema decodes a JSON schema and validates it.
func ParseSchema(data []byte) (Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return Schema{}, fmt.Errorf("failed to parse schema JSON: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Schema{}, err
	}
	return s, nil
}

// Validate checks that the schema has a name, exactly one primary key, exactly
// one vector field with a fixed dimension, and bounded VarChar fields.
func (s Schema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: collection name is empty", ErrInvalidSchema)
	}

	var primaryKeys, vectors int
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: field with empty name", ErrInvalidSchema)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: duplicate field %s", ErrInvalidSchema, f.Name)
		}
		seen[f.Name] = struct{}{}

		if f.DataType == "" {
			return fmt.Errorf("%w: field %s has empty dataType", ErrInvalidSchema, f.Name)
		}
		if f.IsPrimaryKey {
			primaryKeys++
		}
		if f.IsVector() {
			vectors++
			if f.DataType != TypeSparseFloatVector && f.Dimension <= 0 {
				return fmt.Errorf("%w: vector field %s requires a dimension", ErrInvalidSchema, f.Name)
			}
		}
		if f.DataType == TypeVarChar && f.MaxLength <= 0 {
			return fmt.Errorf("%w: varchar field %s requires maxLength", ErrInvalidSchema, f.Name)
		}
	}

	if primaryKeys != 1 {
		return fmt.Errorf("%w: want exactly one primary key, got %d", ErrInvalidSchema, primaryKeys)
	}
	if vectors != 1 {
		return fmt.Errorf("%w: want exactly one vector field, got %d", ErrInvalidSchema, vectors)
	}
	return nil
}

// PrimaryKey returns the primary key field. Validate guarantees there is one.
func (s Schema) PrimaryKey() Field {
	for _, f := range s.Fields {
		if f.IsPrimaryKey {
			return f
		}
	}
	return Field{}
}

// VectorField returns the vector field. Validate guarantees there is one.
func (s Schema) VectorField() Field {
	for _, f := range s.Fields {
		if f.IsVector() {
			return f
		}
	}
	return Field{}
}

// Field looks up a field by name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
