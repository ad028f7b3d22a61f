package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	domain "github.com/orderfield/ordersync/internal/domain"
	"github.com/orderfield/ordersync/internal/platform/requestctx"
	"github.com/orderfield/ordersync/internal/repositories"
)

const defaultBatchWorkers = 8

var tracer = otel.Tracer("github.com/orderfield/ordersync/internal/services")

var (
	// ErrOrderNotFound indicates no persisted order carries the orderNumber.
	ErrOrderNotFound = errors.New("import: order not found")
	// ErrImportConflict indicates the versioned update hit a stale version.
	ErrImportConflict = errors.New("import: version conflict")
)

// OrderImportService reconciles desired order records against the remote
// system. Failures never escape the per-order pipeline; they are recorded in
// the run summary instead.
type OrderImportService interface {
	// ProcessOrder runs the full pipeline for one order and returns the
	// reconciled remote order, or nil when the order failed and was recorded.
	ProcessOrder(ctx context.Context, order domain.Order) *domain.Order
	// ProcessBatch processes all orders of a batch concurrently and returns
	// when every one of them has been recorded.
	ProcessBatch(ctx context.Context, orders []domain.Order)
	// Summary returns a snapshot of the run outcome so far.
	Summary() Summary
	// SummaryReport renders the summary as indented JSON.
	SummaryReport() (string, error)
}

// OrderImportServiceDeps bundles collaborators required to construct the
// import service.
type OrderImportServiceDeps struct {
	Orders    repositories.OrderRepository
	Resolver  *ReferenceResolver
	Validator *OrderValidator
	// BatchWorkers bounds how many orders of one batch run concurrently.
	BatchWorkers int
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

type orderImportService struct {
	orders   repositories.OrderRepository
	resolver *ReferenceResolver
	validate *OrderValidator
	workers  int
	logger   func(context.Context, string, map[string]any)
	runID    string
	summary  *summaryRecorder
}

// NewOrderImportService wires dependencies into an OrderImportService.
func NewOrderImportService(deps OrderImportServiceDeps) (OrderImportService, error) {
	if deps.Orders == nil {
		return nil, errors.New("import service: order repository is required")
	}
	if deps.Resolver == nil {
		return nil, errors.New("import service: reference resolver is required")
	}

	validate := deps.Validator
	if validate == nil {
		validate = NewOrderValidator()
	}

	workers := deps.BatchWorkers
	if workers <= 0 {
		workers = defaultBatchWorkers
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderImportService{
		orders:   deps.Orders,
		resolver: deps.Resolver,
		validate: validate,
		workers:  workers,
		logger:   logger,
		runID:    ulid.Make().String(),
		summary:  newSummaryRecorder(),
	}, nil
}

func (s *orderImportService) ProcessOrder(ctx context.Context, order domain.Order) *domain.Order {
	ctx = requestctx.WithRunID(ctx, s.runID)

	reconciled, err := s.processOrder(ctx, order)
	if err != nil {
		s.summary.recordFailure(order, err)
		s.logger(ctx, "order.import.failed", map[string]any{
			"order": order.OrderNumber,
			"error": err.Error(),
		})
		return nil
	}

	s.summary.recordSuccess(order.OrderNumber)
	s.logger(ctx, "order.import.succeeded", map[string]any{
		"order":   order.OrderNumber,
		"version": reconciled.Version,
	})
	return &reconciled
}

// processOrder runs Validate, Resolve, Fetch, Diff and Apply for one order.
// The update call is skipped entirely when the diff yields no actions, so
// re-processing an already reconciled order costs zero writes.
func (s *orderImportService) processOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	ctx, span := tracer.Start(ctx, "ordersync.process_order")
	span.SetAttributes(attribute.String("order.number", order.OrderNumber))
	defer span.End()

	if err := s.validate.ValidateOrder(order); err != nil {
		return domain.Order{}, err
	}

	resolved, err := s.resolver.ResolveOrderReferences(ctx, order)
	if err != nil {
		return domain.Order{}, err
	}

	persisted, err := s.orders.FindByOrderNumber(ctx, resolved.OrderNumber)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err, resolved.OrderNumber)
	}

	actions := BuildUpdateActions(resolved, &persisted)
	span.SetAttributes(attribute.Int("order.actions", len(actions)))
	if len(actions) == 0 {
		return persisted, nil
	}

	updated, err := s.orders.Update(ctx, persisted.ID, persisted.Version, actions)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err, resolved.OrderNumber)
	}
	return updated, nil
}

func (s *orderImportService) ProcessBatch(ctx context.Context, orders []domain.Order) {
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for _, order := range orders {
		wg.Add(1)
		sem <- struct{}{}
		go func(order domain.Order) {
			defer wg.Done()
			defer func() { <-sem }()
			s.ProcessOrder(ctx, order)
		}(order)
	}
	wg.Wait()
}

func (s *orderImportService) Summary() Summary {
	return s.summary.snapshot()
}

func (s *orderImportService) SummaryReport() (string, error) {
	report, err := json.MarshalIndent(s.Summary(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("import: marshal summary: %w", err)
	}
	return string(report), nil
}

func (s *orderImportService) mapRepositoryError(err error, orderNumber string) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: order with orderNumber %q not found", ErrOrderNotFound, orderNumber)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrImportConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("import: remote system unavailable: %w", err)
		}
	}
	return err
}
