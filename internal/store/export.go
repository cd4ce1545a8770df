package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/examforge/internal/model"
)

// ExportResults builds the export document of all stored results.
func (r *Repository) ExportResults(ctx context.Context) (model.ResultsExport, error) {
	results, err := r.Results(ctx)
	if err != nil {
		return model.ResultsExport{}, fmt.Errorf("list results: %w", err)
	}
	if results == nil {
		results = []model.EvaluationResult{}
	}
	return model.ResultsExport{
		ExportedAt: time.Now().UTC(),
		Count:      len(results),
		Results:    results,
	}, nil
}
