package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/expense-insights/internal/logger"
	"github.com/dvloznov/expense-insights/internal/narrative"
	"github.com/dvloznov/expense-insights/internal/report"
)

// ReportExporter stores a finished report and returns where it was written.
type ReportExporter interface {
	Export(ctx context.Context, bucket, name string, data []byte) (string, error)
}

// NarrativeRunner generates the narrative for a job and assembles its report.
type NarrativeRunner struct {
	Generator narrative.Generator
	Timeout   time.Duration

	// Exporter and Bucket are optional; when both are set the report is
	// also written to object storage.
	Exporter ReportExporter
	Bucket   string

	Now func() time.Time
}

// Handle implements JobHandler. A failed export is logged and does not fail
// the job because the report is still available for download.
func (r *NarrativeRunner) Handle(ctx context.Context, job *NarrativeJob) error {
	log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{
		"job_id":     job.JobID,
		"session_id": job.SessionID,
	})

	text, err := narrative.Run(ctx, r.Generator, job.Prompt, r.Timeout)
	if err != nil {
		return err
	}
	job.Narrative = text

	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}
	doc, err := report.Assemble(report.Input{
		Summary:     job.Summary,
		Narrative:   text,
		GeneratedAt: now,
	})
	if err != nil {
		return fmt.Errorf("Handle: assemble report: %w", err)
	}
	job.Report = doc

	if r.Exporter != nil && r.Bucket != "" {
		name := fmt.Sprintf("reports/%s/%s", job.JobID, report.Filename(now))
		uri, err := r.Exporter.Export(ctx, r.Bucket, name, []byte(doc))
		if err != nil {
			log.Warn().Err(err).Msg("Report export failed")
		} else {
			job.ReportURI = uri
			log.Info().Str("report_uri", uri).Msg("Report exported")
		}
	}
	return nil
}
