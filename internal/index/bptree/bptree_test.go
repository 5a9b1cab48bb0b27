package bptree

import (
	"testing"

	"github.com/emberkv/ember/internal/index/indextest"
	"github.com/emberkv/ember/pkg/logger"
	"github.com/stretchr/testify/require"
)

func TestBPTreeConformance(t *testing.T) {
	bp, err := Open(t.TempDir(), logger.NewNop())
	require.NoError(t, err)
	defer bp.Close()

	indextest.Conformance(t, bp)
}
