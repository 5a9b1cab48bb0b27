package skiplist

import (
	"testing"

	"github.com/emberkv/ember/internal/index/indextest"
	"github.com/emberkv/ember/pkg/logger"
)

func TestSkipListConformance(t *testing.T) {
	indextest.Conformance(t, New(logger.NewNop()))
}
