package main

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmga-lab/casebase/pkg/config"
	"github.com/mmga-lab/casebase/pkg/logging"
	"github.com/mmga-lab/casebase/pkg/milvus/milvustest"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "run", "check", "drop"}, names)

	flag := root.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "c", flag.Shorthand)
}

func TestInvalidConfigFails(t *testing.T) {
	t.Setenv("CASEBASE_CONFIG", "")
	t.Setenv("MILVUS_PORT", "not-a-port")

	root := newRootCmd()
	root.SetArgs([]string{"check"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MILVUS_PORT")
}

func TestRunPipelineWaitsForSubmissions(t *testing.T) {
	backend := milvustest.New()
	backend.CreateIndexDelay = 100 * time.Millisecond

	cfg := config.Defaults()
	a := &app{cfg: &cfg, logger: logging.New(io.Discard, "text"), backend: backend}
	orch, err := a.orchestrator()
	require.NoError(t, err)

	// Without the barrier the search runs before the index request lands.
	_, err = runPipeline(context.Background(), orch, a.logger)
	require.Error(t, err)

	assert.Equal(t, 1, backend.CallCount("CreateIndex"))
	indexJob, loadJob := orch.Jobs()
	for _, j := range []interface{ Done() <-chan struct{} }{indexJob, loadJob} {
		select {
		case <-j.Done():
		default:
			t.Fatal("submission still in flight after runPipeline returned")
		}
	}
}
