package workflow

import (
	"errors"
	"fmt"

	"github.com/loomworks/loom/pkg/models"
)

// Scheduling errors. Both are fatal before any node executes.
var (
	// ErrCircularDependency indicates the connection set contains at least
	// one cycle, so no valid execution order exists.
	ErrCircularDependency = errors.New("workflow contains circular dependencies")

	// ErrUnknownNode indicates a connection references a node id absent
	// from the workflow's node collection.
	ErrUnknownNode = errors.New("connection references unknown node")
)

// buildExecutionOrder computes a topological order of the workflow's nodes
// using Kahn's algorithm. Ties among simultaneously-ready nodes are broken
// by declaration order in the node collection, making the order
// deterministic for a fixed workflow.
func buildExecutionOrder(workflow *models.Workflow) ([]string, error) {
	declIndex := make(map[string]int, len(workflow.Nodes))
	for i, node := range workflow.Nodes {
		declIndex[node.ID] = i
	}

	inDegree := make(map[string]int, len(workflow.Nodes))
	adjacency := make(map[string][]string, len(workflow.Nodes))

	for _, conn := range workflow.Connections {
		if _, ok := declIndex[conn.Source]; !ok {
			return nil, fmt.Errorf("%w: source %q", ErrUnknownNode, conn.Source)
		}

		if _, ok := declIndex[conn.Target]; !ok {
			return nil, fmt.Errorf("%w: target %q", ErrUnknownNode, conn.Target)
		}

		adjacency[conn.Source] = append(adjacency[conn.Source], conn.Target)
		inDegree[conn.Target]++
	}

	order := make([]string, 0, len(workflow.Nodes))
	emitted := make(map[string]bool, len(workflow.Nodes))

	for len(order) < len(workflow.Nodes) {
		// Scanning the node collection in declaration order makes the
		// first eligible node the declaration-order tie-break winner.
		next := ""
		found := false

		for _, node := range workflow.Nodes {
			if !emitted[node.ID] && inDegree[node.ID] == 0 {
				next = node.ID
				found = true

				break
			}
		}

		if !found {
			// Every remaining node still has unmet dependencies.
			return nil, ErrCircularDependency
		}

		emitted[next] = true
		order = append(order, next)

		for _, dependent := range adjacency[next] {
			inDegree[dependent]--
		}
	}

	return order, nil
}
