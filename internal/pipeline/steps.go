package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/expense-insights/internal/domain"
	"github.com/dvloznov/expense-insights/internal/logger"
)

// Period classes. Current data is validated; historical data only feeds trends.
const (
	PeriodCurrent = "current"
	PeriodHistory = "history"
)

// PipelineStep represents a single step in the ingestion pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// FileError records an upload that was rejected and skipped.
type FileError struct {
	File   string `json:"file"`
	Period string `json:"period"`
	Err    error  `json:"-"`
}

// Message returns the rejection reason for display.
func (e FileError) Message() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	CurrentUploads []domain.Upload
	HistoryUploads []domain.Upload

	CurrentFragments []*domain.Table
	HistoryFragments []*domain.Table

	Current *domain.Table
	History *domain.Table

	Rejected []FileError
}

// Step 1: ParseCurrentStep parses every current-period upload. A bad file is
// recorded and skipped; the step fails only when no current file survives.
type ParseCurrentStep struct {
	Parser *Parser
}

func (s *ParseCurrentStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.CurrentUploads) == 0 {
		return fmt.Errorf("ParseCurrentStep: %w", domain.ErrNoCurrentData)
	}
	var failures []error
	state.CurrentFragments, failures = parseAll(ctx, s.Parser, PeriodCurrent, state.CurrentUploads, state)
	if len(state.CurrentFragments) == 0 {
		if len(failures) == 1 {
			return failures[0]
		}
		return errors.Join(failures...)
	}
	return nil
}

// Step 2: ParseHistoryStep parses historical uploads; every failure is
// recorded and skipped.
type ParseHistoryStep struct {
	Parser *Parser
}

func (s *ParseHistoryStep) Execute(ctx context.Context, state *PipelineState) error {
	state.HistoryFragments, _ = parseAll(ctx, s.Parser, PeriodHistory, state.HistoryUploads, state)
	return nil
}

// Step 3: MergeStep merges the fragments of each period class.
type MergeStep struct{}

func (s *MergeStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Current = Merge(state.CurrentFragments...)
	state.History = Merge(state.HistoryFragments...)

	log := logger.FromContext(ctx)
	log.Info().
		Int("current_rows", state.Current.Len()).
		Int("history_rows", state.History.Len()).
		Strs("columns", state.Current.Columns).
		Msg("Merged uploads")
	return nil
}

// Step 4: ValidateCurrentStep rejects nulls outside the allowed columns.
type ValidateCurrentStep struct{}

func (s *ValidateCurrentStep) Execute(ctx context.Context, state *PipelineState) error {
	if err := Validate(state.Current); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Current-period data failed validation")
		return err
	}
	return nil
}

func parseAll(ctx context.Context, parser *Parser, period string, uploads []domain.Upload, state *PipelineState) ([]*domain.Table, []error) {
	log := logger.FromContext(ctx)
	var (
		tables   []*domain.Table
		failures []error
	)
	for _, u := range uploads {
		t, err := parser.Parse(u)
		if err != nil {
			log.Warn().Err(err).Str("file", u.Name).Str("period", period).Msg("Skipping unreadable upload")
			state.Rejected = append(state.Rejected, FileError{File: u.Name, Period: period, Err: err})
			failures = append(failures, err)
			continue
		}
		log.Info().Str("file", u.Name).Str("period", period).Int("rows", t.Len()).Msg("Parsed upload")
		tables = append(tables, t)
	}
	return tables, failures
}
