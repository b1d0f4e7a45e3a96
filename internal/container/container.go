package container

import (
	"fmt"
	"net/http"

	"snapsort/internal/category"
	"snapsort/internal/classify"
	"snapsort/internal/config"
	"snapsort/internal/ingest"
	"snapsort/internal/logger"
	"snapsort/internal/observer"
	"snapsort/internal/service"
	"snapsort/internal/store"
	"snapsort/internal/transport"
)

// Container holds all application dependencies
type Container struct {
	config     *config.Config
	classifier classify.Classifier
	store      *store.Store
	publisher  *observer.EventPublisher
	metrics    *observer.MetricsObserver
	pipeline   *service.Pipeline
	ingest     *ingest.Server
	handler    http.Handler
}

// NewContainer creates a new dependency injection container. The classifier
// is constructed exactly once here; every worker shares it.
func NewContainer() (*Container, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	st, err := store.New(cfg.StorageRoot)
	if err != nil {
		return nil, err
	}

	classifier, err := classify.NewONNXClassifier(classify.ONNXConfig{
		ModelPath:         cfg.ModelPath,
		LabelsPath:        cfg.LabelsPath,
		SharedLibraryPath: cfg.OnnxLibraryPath,
	})
	if err != nil {
		return nil, err
	}

	publisher := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(metrics)

	resolver := category.NewResolver(cfg.AnimalMin, cfg.HumanMin, cfg.FallbackMin)
	pipeline := service.NewPipeline(classifier, resolver, st, publisher)

	ingestServer := ingest.NewServer(ingest.Config{
		Addr:            cfg.IngestAddress(),
		StagingDir:      cfg.StagingDir,
		IdleTimeout:     cfg.IdleTimeout,
		ProcessTimeout:  cfg.RequestTimeout,
		MinPayloadBytes: cfg.MinPayloadBytes,
		MaxWorkers:      cfg.MaxWorkers,
	}, pipeline)

	handler := transport.NewHandler(st, metrics)

	return &Container{
		config:     cfg,
		classifier: classifier,
		store:      st,
		publisher:  publisher,
		metrics:    metrics,
		pipeline:   pipeline,
		ingest:     ingestServer,
		handler:    handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// IngestServer returns the TCP upload listener
func (c *Container) IngestServer() *ingest.Server {
	return c.ingest
}

// Close releases the classifier and its runtime.
func (c *Container) Close() error {
	return c.classifier.Close()
}
