package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSchemaIsValid(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())

	assert.Equal(t, "case", s.Name)
	assert.Equal(t, int32(2), s.ShardNum)
	assert.Len(t, s.Fields, 6)
	assert.Equal(t, FieldCaseID, s.PrimaryKey().Name)
	assert.Equal(t, FieldCaseVector, s.VectorField().Name)
	assert.Equal(t, int64(VectorDim), s.VectorField().Dimension)

	p := DefaultPartition()
	assert.Equal(t, s.Name, p.Collection)
	assert.Equal(t, "novel", p.Name)
}

func TestParseSchema(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr bool
	}{
		{
			name: "valid schema",
			json: `{
				"name": "test_collection",
				"fields": [
					{"name": "id", "dataType": "Int64", "isPrimaryKey": true, "isAutoID": true},
					{"name": "vector", "dataType": "FloatVector", "dimension": 128}
				]
			}`,
		},
		{
			name: "schema with scalar fields",
			json: `{
				"name": "complex_collection",
				"description": "A complex collection",
				"shardNum": 2,
				"fields": [
					{"name": "id", "dataType": "Int64", "isPrimaryKey": true},
					{"name": "int32_field", "dataType": "Int32"},
					{"name": "double_field", "dataType": "Double"},
					{"name": "string_field", "dataType": "VarChar", "maxLength": 200},
					{"name": "vector", "dataType": "FloatVector", "dimension": 256}
				]
			}`,
		},
		{
			name:    "invalid json",
			json:    `{invalid}`,
			wantErr: true,
		},
		{
			name:    "missing name",
			json:    `{"fields": []}`,
			wantErr: true,
		},
		{
			name: "two vector fields",
			json: `{
				"name": "c",
				"fields": [
					{"name": "id", "dataType": "Int64", "isPrimaryKey": true},
					{"name": "a", "dataType": "FloatVector", "dimension": 4},
					{"name": "b", "dataType": "FloatVector", "dimension": 4}
				]
			}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSchema([]byte(tt.json))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	pk := Field{Name: "id", DataType: TypeInt64, IsPrimaryKey: true}
	vec := Field{Name: "v", DataType: TypeFloatVector, Dimension: 8}

	tests := []struct {
		name   string
		fields []Field
		valid  bool
	}{
		{"minimal", []Field{pk, vec}, true},
		{"no primary key", []Field{vec}, false},
		{"two primary keys", []Field{pk, {Name: "id2", DataType: TypeInt64, IsPrimaryKey: true}, vec}, false},
		{"no vector", []Field{pk}, false},
		{"vector without dimension", []Field{pk, {Name: "v", DataType: TypeFloatVector}}, false},
		{"sparse vector without dimension", []Field{pk, {Name: "v", DataType: TypeSparseFloatVector}}, true},
		{"varchar without maxLength", []Field{pk, vec, {Name: "text", DataType: TypeVarChar}}, false},
		{"empty dataType", []Field{pk, vec, {Name: "x"}}, false},
		{"duplicate names", []Field{pk, vec, {Name: "v", DataType: TypeBool}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Schema{Name: "c", Fields: tt.fields}.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidSchema)
			}
		})
	}
}

func TestDefaultTables(t *testing.T) {
	tb := DefaultTables()
	assert.Len(t, tb.Stations, 12)
	assert.Len(t, tb.Actions, 3)
	assert.Len(t, tb.Profiles, 8)
	assert.Equal(t, 10, tb.RecordCount)
	assert.Len(t, tb.QueryVector, VectorDim)
}
