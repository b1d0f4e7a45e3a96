package ingest

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	apperrors "snapsort/internal/errors"
	"snapsort/internal/logger"
	"snapsort/pkg/validation"
)

// Upload is one photo that cleared the wire protocol and now sits in the
// staging directory, ready for the pipeline.
type Upload struct {
	ConnID        string
	Filename      string
	StagingPath   string
	Filter        string
	FilterDisplay string
	ReceivedAt    time.Time
}

// Processor consumes staged uploads. The pipeline implements it; tests fake
// it.
type Processor interface {
	Process(ctx context.Context, up Upload) error
}

// Config carries the tunables for one ingest listener.
type Config struct {
	Addr            string
	StagingDir      string
	IdleTimeout     time.Duration
	ProcessTimeout  time.Duration
	MinPayloadBytes int64
	MaxWorkers      int
}

// Server accepts device connections and speaks the upload protocol: one
// JSON header line, then raw image bytes until the sender goes quiet or
// closes. Each connection is handled on a bounded worker pool.
type Server struct {
	cfg       Config
	processor Processor
	pool      *WorkerPool
	validator *validation.FilenameValidator
	listener  net.Listener
	done      chan struct{}
}

// NewServer creates an ingest server; Start must be called to bind it.
func NewServer(cfg Config, processor Processor) *Server {
	return &Server{
		cfg:       cfg,
		processor: processor,
		pool:      NewWorkerPool(cfg.MaxWorkers),
		validator: validation.NewFilenameValidator(),
	}
}

// Start binds the listener and begins accepting in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return apperrors.NewTransportError("failed to bind ingest listener", err)
	}
	if err := os.MkdirAll(s.cfg.StagingDir, 0o755); err != nil {
		ln.Close()
		return apperrors.NewStorageError("failed to create staging directory", err)
	}

	s.listener = ln
	s.done = make(chan struct{})
	s.pool.Start()
	go s.acceptLoop()

	logger.WithField("addr", ln.Addr().String()).Info("Ingest listener started")
	return nil
}

// Addr returns the bound listener address; useful when binding port 0.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) acceptLoop() {
	defer close(s.done)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.WithError(err).Error("Accept failed")
			time.Sleep(100 * time.Millisecond) // avoid a hot loop on persistent errors
			continue
		}
		s.pool.Submit(func() {
			s.handleConn(conn)
		})
	}
}

// Shutdown stops accepting, then waits for in-flight uploads to drain or the
// context to expire, whichever comes first.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener != nil {
		_ = s.listener.Close()
	}

	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	drained := make(chan struct{})
	go func() {
		s.pool.Close()
		close(drained)
	}()

	select {
	case <-drained:
		logger.Info("Ingest listener drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
