package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mmga-lab/casebase/pkg/catalog"
	"github.com/mmga-lab/casebase/pkg/milvus"
)

// Outcome is the result of a provisioning call.
type Outcome int

const (
	// OutcomeExists means the collection was already there and nothing changed.
	OutcomeExists Outcome = iota
	// OutcomeCreated means the collection and partition were created.
	OutcomeCreated
)

func (o Outcome) String() string {
	if o == OutcomeCreated {
		return "created"
	}
	return "exists"
}

// Provisioner creates the collection and its partition when missing.
type Provisioner struct {
	backend milvus.Backend
	logger  *slog.Logger
}

// NewProvisioner returns a Provisioner. A nil logger uses slog.Default().
func NewProvisioner(backend milvus.Backend, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{backend: backend, logger: logger}
}

// EnsureProvisioned creates schema and partition unless the collection
// already exists, in which case it changes nothing. A failing existence check
// is returned as is; there is no retry.
func (p *Provisioner) EnsureProvisioned(ctx context.Context, schema catalog.Schema, partition catalog.Partition) (Outcome, error) {
	if err := schema.Validate(); err != nil {
		return OutcomeExists, err
	}
	if partition.Collection != schema.Name {
		return OutcomeExists, fmt.Errorf("%w: %s is for %s, not %s", ErrPartitionMismatch, partition.Name, partition.Collection, schema.Name)
	}

	exists, err := p.backend.HasCollection(ctx, schema.Name)
	if err != nil {
		return OutcomeExists, fmt.Errorf("checking collection %s: %w", schema.Name, err)
	}
	if exists {
		p.logger.Info("collection exists, skipping provisioning", "collection", schema.Name)
		return OutcomeExists, nil
	}

	if err := p.backend.CreateCollection(ctx, schema); err != nil {
		return OutcomeExists, fmt.Errorf("creating collection %s: %w", schema.Name, err)
	}
	p.logger.Info("collection created", "collection", schema.Name, "fields", len(schema.Fields), "shards", schema.ShardNum)

	if err := p.backend.CreatePartition(ctx, schema.Name, partition.Name); err != nil {
		return OutcomeCreated, fmt.Errorf("creating partition %s: %w", partition.Name, err)
	}
	p.logger.Info("partition created", "collection", schema.Name, "partition", partition.Name)

	return OutcomeCreated, nil
}
