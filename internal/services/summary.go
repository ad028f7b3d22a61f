package services

import (
	"errors"
	"sync"

	domain "github.com/orderfield/ordersync/internal/domain"
)

// Summary is the serializable outcome report of one import run. The key
// spelling matches the historical report format consumed downstream.
type Summary struct {
	Errors             []ImportFailure `json:"errors"`
	Inserted           []string        `json:"inserted"`
	SuccessfullImports int             `json:"successfullImports"`
}

// ImportFailure pairs the order that failed with a serializable description of
// the failure.
type ImportFailure struct {
	Order   domain.Order   `json:"order"`
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// summaryRecorder accumulates per-order outcomes. Batch processing appends
// from many goroutines, so every access is mutex-guarded.
type summaryRecorder struct {
	mu      sync.Mutex
	summary Summary
}

func newSummaryRecorder() *summaryRecorder {
	return &summaryRecorder{
		summary: Summary{
			Errors:   []ImportFailure{},
			Inserted: []string{},
		},
	}
}

func (r *summaryRecorder) recordSuccess(orderNumber string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Inserted = append(r.summary.Inserted, orderNumber)
	r.summary.SuccessfullImports++
}

func (r *summaryRecorder) recordFailure(order domain.Order, err error) {
	failure := ImportFailure{
		Order:   order,
		Error:   err.Error(),
		Details: failureDetails(err),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Errors = append(r.summary.Errors, failure)
}

func (r *summaryRecorder) snapshot() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := r.summary
	snapshot.Errors = append([]ImportFailure{}, r.summary.Errors...)
	snapshot.Inserted = append([]string{}, r.summary.Inserted...)
	return snapshot
}

// failureDetails extracts structured detail from known failure kinds so the
// report stays meaningful after serialization.
func failureDetails(err error) map[string]any {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return map[string]any{"violations": validationErr.Violations}
	}

	var refErr *ReferenceNotFoundError
	if errors.As(err, &refErr) {
		return map[string]any{"key": refErr.Key, "collection": refErr.Collection}
	}

	switch {
	case errors.Is(err, ErrOrderNotFound):
		return map[string]any{"code": "ENOENT"}
	case errors.Is(err, ErrImportConflict):
		return map[string]any{"code": "CONFLICT"}
	}
	return nil
}
