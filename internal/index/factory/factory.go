// Package factory selects and constructs the concrete index.Indexer an
// engine uses, based on options.IndexType. It exists as its own package
// (rather than a function inside internal/index) purely to break the
// import cycle that would otherwise result: the tree, skiplist and bptree
// packages each import internal/index for the Indexer/Iterator interface
// types, so internal/index itself cannot also import them back.
package factory

import (
	"fmt"

	"github.com/emberkv/ember/internal/index"
	"github.com/emberkv/ember/internal/index/bptree"
	"github.com/emberkv/ember/internal/index/skiplist"
	"github.com/emberkv/ember/internal/index/tree"
	"github.com/emberkv/ember/pkg/options"
	"go.uber.org/zap"
)

// New constructs the Indexer selected by opts.IndexType. dir is only
// consulted by BPlusTreeIndex, which persists its bucket file inside it.
func New(dir string, opts *options.Options, log *zap.SugaredLogger) (index.Indexer, error) {
	switch opts.IndexType {
	case options.TreeIndex:
		return tree.New(log), nil
	case options.SkipListIndex:
		return skiplist.New(log), nil
	case options.BPlusTreeIndex:
		return bptree.Open(dir, log)
	default:
		return nil, fmt.Errorf("index/factory: unknown index type %v", opts.IndexType)
	}
}
