package pipeline

import (
	"context"

	"github.com/mmga-lab/casebase/pkg/milvus"
)

// StatusSeparator joins the health and version parts of a status line.
const StatusSeparator = " , "

// HealthProbe reports backend liveness and version as one line.
type HealthProbe struct {
	backend milvus.Backend
}

// NewHealthProbe returns a HealthProbe.
func NewHealthProbe(backend milvus.Backend) *HealthProbe {
	return &HealthProbe{backend: backend}
}

// CheckStatus returns health + " , " + version. A failed sub-call contributes
// its error text in place of the response; nothing is interpreted.
func (h *HealthProbe) CheckStatus(ctx context.Context) string {
	health, err := h.backend.CheckHealth(ctx)
	if err != nil {
		health = err.Error()
	}
	version, err := h.backend.GetVersion(ctx)
	if err != nil {
		version = err.Error()
	}
	return health + StatusSeparator + version
}
