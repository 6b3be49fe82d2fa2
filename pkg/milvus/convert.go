package milvus

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"

	"github.com/mmga-lab/casebase/pkg/catalog"
	"github.com/mmga-lab/casebase/pkg/dataset"
)

// fieldTypes maps catalog data types to client field types.
var fieldTypes = map[string]entity.FieldType{
	catalog.TypeInt64:             entity.FieldTypeInt64,
	catalog.TypeInt32:             entity.FieldTypeInt32,
	catalog.TypeInt16:             entity.FieldTypeInt16,
	catalog.TypeInt8:              entity.FieldTypeInt8,
	catalog.TypeBool:              entity.FieldTypeBool,
	catalog.TypeFloat:             entity.FieldTypeFloat,
	catalog.TypeDouble:            entity.FieldTypeDouble,
	catalog.TypeVarChar:           entity.FieldTypeVarChar,
	catalog.TypeJSON:              entity.FieldTypeJSON,
	catalog.TypeFloatVector:       entity.FieldTypeFloatVector,
	catalog.TypeBinaryVector:      entity.FieldTypeBinaryVector,
	catalog.TypeFloat16Vector:     entity.FieldTypeFloat16Vector,
	catalog.TypeBFloat16Vector:    entity.FieldTypeBFloat16Vector,
	catalog.TypeSparseFloatVector: entity.FieldTypeSparseVector,
}

// toEntityField converts one catalog field. Dense vectors carry their
// dimension; sparse vectors have none.
func toEntityField(f catalog.Field) (*entity.Field, error) {
	dataType, ok := fieldTypes[f.DataType]
	if !ok {
		return nil, fmt.Errorf("%w: %q for field %q", ErrUnsupportedDataType, f.DataType, f.Name)
	}

	out := entity.NewField().
		WithName(f.Name).
		WithDescription(f.Description).
		WithDataType(dataType).
		WithIsPrimaryKey(f.IsPrimaryKey).
		WithIsAutoID(f.IsAutoID)
	if f.IsVector() && dataType != entity.FieldTypeSparseVector {
		out = out.WithDim(f.Dimension)
	}
	if f.MaxLength > 0 {
		out = out.WithMaxLength(f.MaxLength)
	}
	return out, nil
}

// toEntitySchema converts a catalog schema into the client schema.
func toEntitySchema(schema catalog.Schema) (*entity.Schema, error) {
	out := entity.NewSchema().
		WithName(schema.Name).
		WithDescription(schema.Description)
	for _, f := range schema.Fields {
		field, err := toEntityField(f)
		if err != nil {
			return nil, err
		}
		out = out.WithField(field)
	}
	return out, nil
}

// toMetricType maps a metric name; empty defaults to L2.
func toMetricType(name string) (entity.MetricType, error) {
	switch strings.ToUpper(name) {
	case "", "L2":
		return entity.L2, nil
	case "IP":
		return entity.IP, nil
	case "COSINE":
		return entity.COSINE, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMetric, name)
	}
}

// decodeParams decodes an opaque JSON parameter blob. Empty means no params.
func decodeParams(blob string) (map[string]any, error) {
	params := make(map[string]any)
	if strings.TrimSpace(blob) == "" {
		return params, nil
	}
	if err := json.Unmarshal([]byte(blob), &params); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return params, nil
}

// intParam reads an integer parameter, falling back to def.
func intParam(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// toIndex builds the index definition for req. Missing tuning parameters use
// the defaults below.
func toIndex(req IndexRequest) (index.Index, error) {
	metricType, err := toMetricType(req.MetricType)
	if err != nil {
		return nil, err
	}
	params, err := decodeParams(req.Params)
	if err != nil {
		return nil, err
	}

	indexType := strings.ToUpper(req.IndexType)
	if indexType == "" {
		indexType = "FLAT"
	}

	switch indexType {
	case "FLAT":
		return index.NewFlatIndex(metricType), nil
	case "IVF_FLAT":
		return index.NewIvfFlatIndex(metricType, intParam(params, "nlist", 1024)), nil
	case "IVF_SQ8":
		return index.NewIvfSQ8Index(metricType, intParam(params, "nlist", 1024)), nil
	case "IVF_PQ":
		return index.NewIvfPQIndex(metricType,
			intParam(params, "nlist", 1024),
			intParam(params, "m", 4),
			intParam(params, "nbits", 8)), nil
	case "HNSW":
		return index.NewHNSWIndex(metricType,
			intParam(params, "M", 16),
			intParam(params, "efConstruction", 200)), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedIndex, req.IndexType)
	}
}

// batchColumns lays a case batch out as insert columns named after the
// catalog fields.
func batchColumns(b *dataset.Batch) []column.Column {
	return []column.Column{
		column.NewColumnInt64(catalog.FieldCaseID, b.CaseIDs),
		column.NewColumnVarChar(catalog.FieldAction, b.Actions),
		column.NewColumnVarChar(catalog.FieldDepartureStation, b.Departures),
		column.NewColumnVarChar(catalog.FieldArrivalStation, b.Arrivals),
		column.NewColumnVarChar(catalog.FieldProfile, b.Profiles),
		column.NewColumnFloatVector(catalog.FieldCaseVector, b.Dim, b.Vectors),
	}
}

// searchParams turns the opaque search blob into string key/value pairs and
// adds the metric type.
func searchParams(req SearchRequest) (map[string]string, error) {
	params, err := decodeParams(req.Params)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(params)+1)
	for k, v := range params {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		default:
			raw, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
			}
			out[k] = string(raw)
		}
	}
	if req.MetricType != "" {
		metricType, err := toMetricType(req.MetricType)
		if err != nil {
			return nil, err
		}
		out["metric_type"] = string(metricType)
	}
	return out, nil
}
