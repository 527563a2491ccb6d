// Package testutil provides test data builders for workflow tests.
package testutil

import (
	"github.com/google/uuid"
	"github.com/loomworks/loom/pkg/models"
)

// CreateTestNode creates a test WorkflowNode with default values that can be
// overridden.
func CreateTestNode(overrides ...func(*models.WorkflowNode)) *models.WorkflowNode {
	node := &models.WorkflowNode{
		ID:     uuid.New().String(),
		Type:   "start",
		Name:   "Test Node",
		Config: map[string]any{"value": "test"},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithID sets the node ID.
func WithID(id string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.ID = id
	}
}

// WithType sets the node type.
func WithType(nodeType string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Type = nodeType
	}
}

// WithConfig sets the node configuration.
func WithConfig(config map[string]any) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Config = config
	}
}

// WithInputs sets the node's input node ids.
func WithInputs(inputs ...string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Inputs = inputs
	}
}

// CreateTestWorkflow creates an empty test workflow.
func CreateTestWorkflow(nodes ...*models.WorkflowNode) *models.Workflow {
	return &models.Workflow{
		ID:          uuid.New().String(),
		Name:        "Test Workflow",
		Description: "A workflow for testing",
		Nodes:       nodes,
		Connections: []*models.Connection{},
		Variables:   map[string]any{"env": "test"},
	}
}

// Connect adds a connection from source to target.
func Connect(workflow *models.Workflow, source, target string) {
	workflow.Connections = append(workflow.Connections, &models.Connection{
		ID:     uuid.New().String(),
		Source: source,
		Target: target,
	})
}
