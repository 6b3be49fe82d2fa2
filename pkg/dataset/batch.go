package dataset

import (
	"errors"
	"fmt"
)

// ErrRaggedBatch is returned when batch columns disagree in length or shape.
var ErrRaggedBatch = errors.New("ragged batch")

// Record is one case row.
type Record struct {
	CaseID    int64
	Action    string
	Departure string
	Arrival   string
	Profile   string
	Vector    []float32
}

// Batch holds records column-wise, one slice per field, in record order.
type Batch struct {
	CaseIDs    []int64
	Actions    []string
	Departures []string
	Arrivals   []string
	Profiles   []string
	Vectors    [][]float32
	Dim        int
}

func newBatch(capacity, dim int) *Batch {
	return &Batch{
		CaseIDs:    make([]int64, 0, capacity),
		Actions:    make([]string, 0, capacity),
		Departures: make([]string, 0, capacity),
		Arrivals:   make([]string, 0, capacity),
		Profiles:   make([]string, 0, capacity),
		Vectors:    make([][]float32, 0, capacity),
		Dim:        dim,
	}
}

// Append adds r to every column.
func (b *Batch) Append(r Record) {
	b.CaseIDs = append(b.CaseIDs, r.CaseID)
	b.Actions = append(b.Actions, r.Action)
	b.Departures = append(b.Departures, r.Departure)
	b.Arrivals = append(b.Arrivals, r.Arrival)
	b.Profiles = append(b.Profiles, r.Profile)
	b.Vectors = append(b.Vectors, r.Vector)
}

// Len returns the number of records.
func (b *Batch) Len() int { return len(b.CaseIDs) }

// Validate checks that all columns have the same length and every vector has
// the batch dimension.
func (b *Batch) Validate() error {
	n := len(b.CaseIDs)
	cols := map[string]int{
		"actions":    len(b.Actions),
		"departures": len(b.Departures),
		"arrivals":   len(b.Arrivals),
		"profiles":   len(b.Profiles),
		"vectors":    len(b.Vectors),
	}
	for name, l := range cols {
		if l != n {
			return fmt.Errorf("%w: column %s has %d values, want %d", ErrRaggedBatch, name, l, n)
		}
	}
	for i, v := range b.Vectors {
		if len(v) != b.Dim {
			return fmt.Errorf("%w: vector %d has dimension %d, want %d", ErrRaggedBatch, i, len(v), b.Dim)
		}
	}
	return nil
}

// Records returns the row view of the batch.
func (b *Batch) Records() []Record {
	out := make([]Record, b.Len())
	for i := range out {
		out[i] = Record{
			CaseID:    b.CaseIDs[i],
			Action:    b.Actions[i],
			Departure: b.Departures[i],
			Arrival:   b.Arrivals[i],
			Profile:   b.Profiles[i],
			Vector:    b.Vectors[i],
		}
	}
	return out
}
