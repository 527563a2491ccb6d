// Package models defines the core domain models for node-based workflow execution.
package models

// Workflow represents a declarative graph of typed nodes connected by
// directed dependencies. Workflows are authored externally and treated as
// read-only input for the duration of a single execution.
type Workflow struct {
	ID          string          `json:"id"          validate:"required"`
	Name        string          `json:"name"        validate:"required,min=3"`
	Description string          `json:"description,omitempty"`
	Nodes       []*WorkflowNode `json:"nodes"`       // Node instances in declaration order
	Connections []*Connection   `json:"connections"` // Directed edges between nodes
	Variables   map[string]any  `json:"variables,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
}

// WorkflowNode represents a node instance in a workflow. The Type field is
// used to look up the node's registered executor at dispatch time.
type WorkflowNode struct {
	ID     string         `json:"id"     validate:"required"`
	Type   string         `json:"type"   validate:"required"`
	Name   string         `json:"name,omitempty"`
	Config map[string]any `json:"config,omitempty"`
	Inputs []string       `json:"inputs,omitempty"` // Node IDs this node reads results from
}

// Connection is a directed edge meaning the target node depends on the
// source node having completed. Connections only shape the dependency
// graph; data flows through the execution context's result map.
type Connection struct {
	ID     string `json:"id,omitempty"`
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}
