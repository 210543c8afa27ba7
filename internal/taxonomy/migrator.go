package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cinedata/wpmigrate/internal/remap"
	"github.com/cinedata/wpmigrate/internal/source"
)

// NodeStatus reports what happened to a single node.
type NodeStatus int

const (
	// StatusMigrated means the node was inserted and its mapping written.
	StatusMigrated NodeStatus = iota
	// StatusAlreadyMapped means a previous run migrated this node.
	StatusAlreadyMapped
	// StatusMissingParent means the parent mapping was absent despite
	// topological order, an invariant violation recorded per node.
	StatusMissingParent
)

// Inserter is the single write the migrator needs from the target store.
type Inserter interface {
	InsertLocation(ctx context.Context, name, slug string, parentID *int64) (int64, error)
}

// Migrator inserts taxonomy nodes one at a time in topological order,
// translating parent references through the remapper. In dry-run mode no
// store write happens; would-be surrogate IDs are synthesized (negative,
// impossible as real keys) so children still resolve their parents and
// the classification work matches a real run exactly.
type Migrator struct {
	store     Inserter
	remapper  *remap.Remapper
	dryRun    bool
	logger    *slog.Logger
	synthetic int64
}

// NewMigrator creates a migrator. store may be nil only when dryRun is
// true.
func NewMigrator(store Inserter, remapper *remap.Remapper, dryRun bool, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Migrator{store: store, remapper: remapper, dryRun: dryRun, logger: logger}
}

// MigrateNode processes one node from the migration order: skip if
// already mapped, resolve the parent, insert, then write the mapping
// before the caller advances to the next node.
func (m *Migrator) MigrateNode(ctx context.Context, node source.TermRow) (NodeStatus, error) {
	if m.remapper.Has(remap.KindLocation, node.ID) {
		return StatusAlreadyMapped, nil
	}

	var parentNewID *int64
	if node.ParentID != 0 {
		newID, err := m.remapper.Get(remap.KindLocation, node.ParentID)
		if errors.Is(err, remap.ErrNotFound) {
			// Ordering guarantees the parent was handled first, so this
			// only happens when the parent itself failed. Recorded and the
			// run continues; the node is not migrated.
			m.logger.Warn("parent mapping missing despite topological order",
				"term", node.ID, "parent", node.ParentID)
			return StatusMissingParent, nil
		}
		if err != nil {
			return 0, err
		}
		parentNewID = &newID
	}

	newID, err := m.insert(ctx, node, parentNewID)
	if err != nil {
		return 0, fmt.Errorf("insert term %d (%s): %w", node.ID, node.Name, err)
	}

	if err := m.remapper.Put(ctx, remap.KindLocation, node.ID, newID); err != nil {
		return 0, err
	}
	return StatusMigrated, nil
}

func (m *Migrator) insert(ctx context.Context, node source.TermRow, parentNewID *int64) (int64, error) {
	if m.dryRun {
		m.synthetic--
		return m.synthetic, nil
	}
	return m.store.InsertLocation(ctx, node.Name, node.Slug, parentNewID)
}
