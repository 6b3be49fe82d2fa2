package catalog

// Names of the case collection and its fields.
const (
	CollectionName = "case"
	PartitionName  = "novel"
	Description    = "Test search"

	FieldCaseID           = "case_id"
	FieldAction           = "action"
	FieldDepartureStation = "departure_station"
	FieldArrivalStation   = "arrival_station"
	FieldProfile          = "profile"
	FieldCaseVector       = "case_vector"

	// VectorDim is the dimension of case_vector. It is fixed at creation.
	VectorDim = 4
)

// Default returns the case collection schema.
func Default() Schema {
	return Schema{
		Name:        CollectionName,
		Description: Description,
		ShardNum:    2,
		Fields: []Field{
			{Name: FieldCaseID, DataType: TypeInt64, IsPrimaryKey: true},
			{Name: FieldAction, DataType: TypeVarChar, MaxLength: 30},
			{Name: FieldDepartureStation, DataType: TypeVarChar, MaxLength: 21},
			{Name: FieldArrivalStation, DataType: TypeVarChar, MaxLength: 21},
			{Name: FieldProfile, DataType: TypeVarChar, MaxLength: 21},
			{Name: FieldCaseVector, DataType: TypeFloatVector, Dimension: VectorDim},
		},
	}
}

// DefaultPartition returns the partition the generator ingests into.
func DefaultPartition() Partition {
	return Partition{Collection: CollectionName, Name: PartitionName}
}

// Tables are the constant inputs of a pipeline run: lookup lists for the
// synthetic generator plus index and search defaults.
type Tables struct {
	Stations []string
	Actions  []string
	Profiles []string

	// RecordCount is the number of records ingested per run.
	RecordCount int

	IndexType   string
	MetricType  string
	IndexParams string // opaque JSON blob, e.g. {"nlist":1024}

	TopK         int
	SearchParams string // opaque JSON blob, e.g. {"nprobe":10}
	QueryVector  []float32
}

// DefaultTables returns the tables used by the case pipeline.
func DefaultTables() Tables {
	return Tables{
		Stations:     []string{"NAK", "TPE", "BAC", "TAY", "HSC", "MIL", "TAC", "CHA", "YUL", "CHY", "TNN", "ZUY"},
		Actions:      []string{"createPNR", "modifyPNR", "payment"},
		Profiles:     []string{"F", "H", "E", "W", "P", "T", "S", "M"},
		RecordCount:  10,
		IndexType:    "IVF_FLAT",
		MetricType:   "L2",
		IndexParams:  `{"nlist":1024}`,
		TopK:         3,
		SearchParams: `{"nprobe":10}`,
		QueryVector:  []float32{0.1, 0.2, 0.3, 0.4},
	}
}
