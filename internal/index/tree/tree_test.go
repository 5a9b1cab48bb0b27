package tree

import (
	"testing"

	"github.com/emberkv/ember/internal/index/indextest"
	"github.com/emberkv/ember/pkg/logger"
)

func TestTreeConformance(t *testing.T) {
	indextest.Conformance(t, New(logger.NewNop()))
}
