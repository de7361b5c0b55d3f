package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/table"
)

// Executor processes a whole table. *node.Node satisfies it.
type Executor interface {
	Execute(ctx context.Context, in *table.Table) (*table.Table, error)
}

// Config configures a Service.
type Config struct {
	Subject string
	// Queue is the queue group; every member receives a share of the requests.
	Queue          string
	RequestTimeout time.Duration
}

// Service answers table processing requests on a NATS subject.
type Service struct {
	conn     *nats.Conn
	executor Executor
	config   Config
	logger   *zap.Logger
	tracer   trace.Tracer

	mu  sync.Mutex
	sub *nats.Subscription
}

// NewService creates a service. Start subscribes it.
func NewService(conn *nats.Conn, executor Executor, config Config, logger *zap.Logger) (*Service, error) {
	if executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if config.Subject == "" {
		return nil, fmt.Errorf("subject is required")
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		conn:     conn,
		executor: executor,
		config:   config,
		logger:   logger,
		tracer:   otel.Tracer("daedalus/transport"),
	}, nil
}

// Start subscribes to the configured subject. Requests are handled until
// Stop is called or ctx is done.
func (s *Service) Start(ctx context.Context) error {
	if s.conn == nil {
		return fmt.Errorf("NATS connection is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		return fmt.Errorf("service already started")
	}

	sub, err := s.conn.QueueSubscribe(s.config.Subject, s.config.Queue, func(msg *nats.Msg) {
		s.handleMsg(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.config.Subject, err)
	}
	s.sub = sub

	s.logger.Info("Serving requests",
		zap.String("subject", s.config.Subject),
		zap.String("queue", s.config.Queue))
	return nil
}

// Stop drains the subscription.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub == nil {
		return nil
	}
	err := s.sub.Drain()
	s.sub = nil
	return err
}

func (s *Service) handleMsg(ctx context.Context, msg *nats.Msg) {
	if msg.Header != nil {
		ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(http.Header(msg.Header)))
	}
	reply := s.Handle(ctx, msg.Data)
	if msg.Reply == "" {
		s.logger.Warn("Request without reply subject dropped", zap.String("subject", msg.Subject))
		return
	}
	if err := msg.Respond(reply); err != nil {
		s.logger.Error("Failed to send reply", zap.Error(err))
	}
}

// Handle decodes a request, executes it and encodes the reply.
func (s *Service) Handle(ctx context.Context, data []byte) []byte {
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "transport.handle",
		trace.WithAttributes(attribute.String("subject", s.config.Subject)))
	defer span.End()

	start := time.Now()
	in, err := DecodeRequest(data)
	var out *table.Table
	if err == nil {
		span.SetAttributes(attribute.Int("rows", len(in.Rows)))
		out, err = s.executor.Execute(ctx, in)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("Request failed",
			zap.Duration("processingTime", time.Since(start)),
			zap.Error(err))
		return EncodeResponse(nil, err)
	}

	span.SetStatus(codes.Ok, "Request processed")
	s.logger.Debug("Request processed",
		zap.Int("rows", len(out.Rows)),
		zap.Duration("processingTime", time.Since(start)))
	return EncodeResponse(out, nil)
}
