package workflow

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/loomworks/loom/pkg/models"
)

// ErrDuplicateNodeID indicates two nodes share an identifier.
var ErrDuplicateNodeID = errors.New("duplicate node id")

var validate = validator.New()

// ValidateWorkflow performs the structural checks a host can run on a draft
// before execution: struct tags, unique node ids, connection endpoints
// present, and an acyclic connection set.
func ValidateWorkflow(workflow *models.Workflow) error {
	if err := validate.Struct(workflow); err != nil {
		return fmt.Errorf("workflow validation: %w", err)
	}

	seen := make(map[string]bool, len(workflow.Nodes))

	for _, node := range workflow.Nodes {
		if err := validate.Struct(node); err != nil {
			return fmt.Errorf("node %q validation: %w", node.ID, err)
		}

		if seen[node.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateNodeID, node.ID)
		}

		seen[node.ID] = true
	}

	for _, conn := range workflow.Connections {
		if err := validate.Struct(conn); err != nil {
			return fmt.Errorf("connection validation: %w", err)
		}
	}

	if _, err := buildExecutionOrder(workflow); err != nil {
		return err
	}

	return nil
}
