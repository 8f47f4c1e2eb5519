package pipeline

import (
	"context"
	"fmt"
)

// PipelineStep represents a single step in the import pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *ImportState) error
}

// StepFunc adapts a function to PipelineStep.
type StepFunc func(ctx context.Context, state *ImportState) error

func (f StepFunc) Execute(ctx context.Context, state *ImportState) error {
	return f(ctx, state)
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially. A step may end the run
// early by setting state.Done.
func (p *Pipeline) Execute(ctx context.Context, state *ImportState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline step %d: %w", i+1, err)
		}
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
		if state.Done {
			break
		}
	}
	return nil
}
