package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/expense-insights/internal/domain"
)

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewIngestionPipeline creates the standard parse, merge and validate pipeline.
func NewIngestionPipeline(parser *Parser) *Pipeline {
	return NewPipeline(
		&ParseCurrentStep{Parser: parser},
		&ParseHistoryStep{Parser: parser},
		&MergeStep{},
		&ValidateCurrentStep{},
	)
}

// Dataset is the validated result of one ingestion pass.
type Dataset struct {
	Current  *domain.Table
	History  *domain.Table
	Rejected []FileError
}

// Ingest runs the full ingestion pass over one upload batch. Nothing is
// returned unless the whole pass succeeds.
func Ingest(ctx context.Context, parser *Parser, current, history []domain.Upload) (*Dataset, error) {
	state := &PipelineState{
		CurrentUploads: current,
		HistoryUploads: history,
	}
	if err := NewIngestionPipeline(parser).Execute(ctx, state); err != nil {
		return nil, fmt.Errorf("Ingest: %w", err)
	}
	return &Dataset{
		Current:  state.Current,
		History:  state.History,
		Rejected: state.Rejected,
	}, nil
}
