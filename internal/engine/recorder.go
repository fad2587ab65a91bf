package engine

import (
	"context"
	"errors"

	"github.com/vitisense/vinesentry/internal/domain"
)

// MultiRecorder fans one analysis record out to several recorders, typically
// the local campaign history plus an optional Kafka publisher. Every recorder
// gets the record even when an earlier one fails; errors are joined.
type MultiRecorder []AnalysisRecorder

// Record implements AnalysisRecorder.
func (m MultiRecorder) Record(ctx context.Context, rec domain.AnalysisRecord) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
