package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/loomworks/loom/pkg/log"
	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/otelhelper"
	"github.com/loomworks/loom/pkg/workflow"
	"github.com/urfave/cli/v3"
)

func loadWorkflow(path string) (*models.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	var wf models.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to parse workflow file: %w", err)
	}

	return &wf, nil
}

func runWorkflow(ctx context.Context, cmd *cli.Command) error {
	wf, err := loadWorkflow(cmd.String("file"))
	if err != nil {
		return err
	}

	if err := workflow.ValidateWorkflow(wf); err != nil {
		return err
	}

	logger := log.WithModule("loom")

	opts := []workflow.Option{}

	if cmd.Bool("trace") {
		tracer, err := otelhelper.NewTracer(ctx, "loom")
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}

		opts = append(opts, workflow.WithTracer(tracer))
	}

	executor := workflow.NewExecutor(logger, opts...)
	result := executor.Execute(ctx, wf)

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	fmt.Println(string(encoded))

	if result.Status != models.ExecutionStatusCompleted {
		return fmt.Errorf("workflow finished with status %s", result.Status)
	}

	return nil
}

func validateWorkflow(cmd *cli.Command) error {
	wf, err := loadWorkflow(cmd.String("file"))
	if err != nil {
		return err
	}

	if err := workflow.ValidateWorkflow(wf); err != nil {
		return err
	}

	fmt.Printf("workflow %q is valid: %d nodes, %d connections\n",
		wf.ID, len(wf.Nodes), len(wf.Connections))

	return nil
}
