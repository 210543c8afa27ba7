// Package taxonomy reconstructs the legacy parent-linked taxonomy as a
// forest, proves it free of cycles and dangling parents, and migrates it
// parent-before-child.
package taxonomy

import (
	"fmt"
	"sort"

	"github.com/cinedata/wpmigrate/internal/source"
)

// AnomalyKind classifies a structurally invalid taxonomy node.
type AnomalyKind string

const (
	// CycleDetected marks every node on a parent chain that revisits
	// itself. None of them is ever migrated.
	CycleDetected AnomalyKind = "cycle_detected"
	// OrphanedParent marks a node whose parent chain reaches an ID with no
	// known node. Its descendants are excluded too: reparenting to root
	// would silently flatten the hierarchy.
	OrphanedParent AnomalyKind = "orphaned_parent"
	// SkippedMissingParent marks the invariant violation of a
	// topologically ordered node whose parent mapping is absent at
	// migration time. Distinct from OrphanedParent: the graph was valid,
	// the run state is not.
	SkippedMissingParent AnomalyKind = "skipped_missing_parent"
)

// Anomaly is a structurally invalid node, reported rather than migrated.
type Anomaly struct {
	Kind   AnomalyKind
	Node   source.TermRow
	Detail string
}

// Graph is the validated parent-pointer forest over taxonomy nodes.
type Graph struct {
	nodes     map[int64]source.TermRow
	order     []source.TermRow
	anomalies []Anomaly
	depths    map[int64]int
}

// BuildGraph validates every node's parent chain and computes the
// migration order. The source is nominally a tree-of-trees, but the data
// is not trusted: acyclicity is proven per node with a visited-set walk,
// never assumed.
func BuildGraph(terms []source.TermRow) *Graph {
	g := &Graph{
		nodes:  make(map[int64]source.TermRow, len(terms)),
		depths: make(map[int64]int, len(terms)),
	}
	for _, t := range terms {
		g.nodes[t.ID] = t
	}

	for _, t := range terms {
		g.classify(t)
	}

	// Emit parents strictly before children. Term ID order within a level
	// keeps the output deterministic.
	emitted := make(map[int64]bool, len(terms))
	var emit func(id int64)
	emit = func(id int64) {
		if emitted[id] {
			return
		}
		node, ok := g.nodes[id]
		if !ok {
			return
		}
		if _, bad := g.depths[id]; !bad {
			// Anomalous node, never migrated.
			return
		}
		if node.ParentID != 0 {
			emit(node.ParentID)
		}
		emitted[id] = true
		g.order = append(g.order, node)
	}

	ids := make([]int64, 0, len(terms))
	for _, t := range terms {
		ids = append(ids, t.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		emit(id)
	}

	return g
}

// classify walks the parent chain of t, recording either its depth or an
// anomaly.
func (g *Graph) classify(t source.TermRow) {
	visited := make(map[int64]bool)
	depth := 0
	current := t
	for current.ParentID != 0 {
		if visited[current.ID] {
			g.anomalies = append(g.anomalies, Anomaly{
				Kind:   CycleDetected,
				Node:   t,
				Detail: fmt.Sprintf("parent chain revisits term %d", current.ID),
			})
			return
		}
		visited[current.ID] = true

		parent, ok := g.nodes[current.ParentID]
		if !ok {
			g.anomalies = append(g.anomalies, Anomaly{
				Kind:   OrphanedParent,
				Node:   t,
				Detail: fmt.Sprintf("parent %d does not exist", current.ParentID),
			})
			return
		}
		current = parent
		depth++
	}
	g.depths[t.ID] = depth
}

// MigrationOrder returns valid nodes with every parent strictly before
// its children.
func (g *Graph) MigrationOrder() []source.TermRow {
	return g.order
}

// Anomalies returns the nodes excluded from migration.
func (g *Graph) Anomalies() []Anomaly {
	return g.anomalies
}

// Depth returns the depth of a valid node (roots are 0).
func (g *Graph) Depth(id int64) (int, bool) {
	d, ok := g.depths[id]
	return d, ok
}

// DepthLevels returns the node count per depth level, included in the run
// summary report.
func (g *Graph) DepthLevels() []int {
	maxDepth := -1
	for _, d := range g.depths {
		if d > maxDepth {
			maxDepth = d
		}
	}
	if maxDepth < 0 {
		return nil
	}
	levels := make([]int, maxDepth+1)
	for _, d := range g.depths {
		levels[d]++
	}
	return levels
}
