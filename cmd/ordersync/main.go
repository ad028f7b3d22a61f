package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/orderfield/ordersync/internal/domain"
	"github.com/orderfield/ordersync/internal/platform/config"
	"github.com/orderfield/ordersync/internal/platform/observability"
	"github.com/orderfield/ordersync/internal/repositories/commercetools"
	"github.com/orderfield/ordersync/internal/services"
)

// maxLineBytes bounds a single NDJSON record. Orders with many line items and
// deliveries stay well below this.
const maxLineBytes = 4 << 20

func main() {
	inputPath := flag.String("input", "-", "path to an NDJSON file of orders, or - for stdin")
	envFile := flag.String("env-file", ".env", "path to an optional .env file")
	flag.Parse()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("ordersync")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = observability.WithLogger(ctx, logger)

	if err := run(ctx, logger, *inputPath, *envFile); err != nil {
		logger.Error("import run failed", zap.Error(err))
		os.Exit(1)
	}
}

var errImportErrors = errors.New("import run finished with errors")

func run(ctx context.Context, logger *zap.Logger, inputPath, envFile string) error {
	cfg, err := config.Load(config.WithEnvFile(envFile))
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	client, err := commercetools.NewClient(ctx, commercetools.Config{
		BaseURL:      cfg.API.BaseURL,
		AuthURL:      cfg.API.AuthURL,
		ProjectKey:   cfg.API.ProjectKey,
		ClientID:     cfg.API.ClientID,
		ClientSecret: cfg.API.ClientSecret,
		Scopes:       cfg.API.Scopes,
		AccessToken:  cfg.API.AccessToken,
	})
	if err != nil {
		return fmt.Errorf("initialise api client: %w", err)
	}

	resolver, err := services.NewReferenceResolver(services.ReferenceResolverDeps{
		States:   client.States(),
		Channels: client.Channels(),
	})
	if err != nil {
		return fmt.Errorf("initialise reference resolver: %w", err)
	}

	importer, err := services.NewOrderImportService(services.OrderImportServiceDeps{
		Orders:       client.Orders(),
		Resolver:     resolver,
		BatchWorkers: cfg.Import.BatchWorkers,
		Logger:       observability.EventLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("initialise import service: %w", err)
	}

	input, closeInput, err := openInput(inputPath)
	if err != nil {
		return err
	}
	defer closeInput()

	parseFailures, err := processInput(ctx, logger, importer, input, cfg.Import.BatchSize)
	if err != nil {
		return err
	}

	report, err := importer.SummaryReport()
	if err != nil {
		return err
	}
	fmt.Println(report)

	summary := importer.Summary()
	logger.Info("import run finished",
		zap.Int("succeeded", summary.SuccessfullImports),
		zap.Int("failed", len(summary.Errors)),
		zap.Int("unparseable", parseFailures),
	)
	if len(summary.Errors) > 0 || parseFailures > 0 {
		return errImportErrors
	}
	return nil
}

// processInput streams NDJSON records and hands them to the importer one batch
// at a time. Batches run sequentially; orders within a batch run concurrently.
func processInput(ctx context.Context, logger *zap.Logger, importer services.OrderImportService, input io.Reader, batchSize int) (int, error) {
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)

	parseFailures := 0
	lineNo := 0
	batch := make([]domain.Order, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		importer.ProcessBatch(ctx, batch)
		batch = batch[:0]
		return nil
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var order domain.Order
		if err := json.Unmarshal([]byte(line), &order); err != nil {
			parseFailures++
			logger.Warn("skipping unparseable input line",
				zap.Int("line", lineNo),
				zap.Error(err),
			)
			continue
		}

		batch = append(batch, order)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return parseFailures, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return parseFailures, fmt.Errorf("read input: %w", err)
	}
	if err := flush(); err != nil {
		return parseFailures, err
	}
	return parseFailures, nil
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input %s: %w", path, err)
	}
	return file, func() { _ = file.Close() }, nil
}
