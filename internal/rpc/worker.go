package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler answers one request. Implemented by the agent orchestrator.
type Handler interface {
	Handle(ctx context.Context, req Request) Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response { return f(ctx, req) }

// Worker consumes requests from the broker, dispatches them to the handler
// one at a time, and publishes reply envelopes. Prefetch is pinned to 1 so a
// slow generation never hoards queued requests from other workers.
type Worker struct {
	url           string
	requestQueue  string
	responseQueue string
	handler       Handler
	logger        *slog.Logger

	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewWorker creates a Worker. Call Run to connect and serve.
func NewWorker(url, requestQueue, responseQueue string, handler Handler, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if requestQueue == "" {
		requestQueue = DefaultRequestQueue
	}
	if responseQueue == "" {
		responseQueue = DefaultResponseQueue
	}
	return &Worker{
		url:           url,
		requestQueue:  requestQueue,
		responseQueue: responseQueue,
		handler:       handler,
		logger:        logger,
	}
}

// Run connects to the broker and serves requests until ctx is canceled or
// the connection drops.
func (w *Worker) Run(ctx context.Context) error {
	conn, err := amqp.Dial(w.url)
	if err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}
	w.conn = conn
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("opening channel: %w", err)
	}
	w.ch = ch
	defer func() { _ = ch.Close() }()

	for _, q := range []string{w.requestQueue, w.responseQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declaring queue %q: %w", q, err)
		}
	}

	// One unacked request at a time.
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("setting qos: %w", err)
	}

	deliveries, err := ch.Consume(w.requestQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("starting consumer: %w", err)
	}

	w.logger.Info("worker consuming",
		"request_queue", w.requestQueue, "response_queue", w.responseQueue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			w.serve(ctx, d)
		}
	}
}

// serve handles one delivery: decode, dispatch, reply, ack.
func (w *Worker) serve(ctx context.Context, d amqp.Delivery) {
	var req Request
	if err := json.Unmarshal(d.Body, &req); err != nil {
		w.logger.Warn("dropping malformed request", "error", err)
		_ = d.Nack(false, false)
		return
	}

	var resp Response
	if err := req.Validate(); err != nil {
		resp = ErrorResponse(req.RequestID, err)
	} else {
		req.Normalize()

		reqCtx, cancel := context.WithTimeout(ctx, time.Duration(req.TimeoutSec)*time.Second)
		resp = w.handler.Handle(reqCtx, req)
		cancel()
		resp.RequestID = req.RequestID
	}

	// Reply to the caller's private queue when given, else the shared
	// response queue. Publish is best effort: if the caller is gone the
	// broker drops the message, and a timed-out caller simply never reads
	// the reply.
	replyTo := d.ReplyTo
	if replyTo == "" {
		replyTo = w.responseQueue
	}
	correlationID := d.CorrelationId
	if correlationID == "" {
		correlationID = req.RequestID
	}

	body, err := json.Marshal(resp)
	if err != nil {
		w.logger.Error("encoding response failed", "request_id", req.RequestID, "error", err)
		_ = d.Nack(false, false)
		return
	}

	if err := w.ch.PublishWithContext(ctx, "", replyTo, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: correlationID,
		DeliveryMode:  amqp.Persistent,
		Body:          body,
	}); err != nil {
		w.logger.Error("publishing response failed", "request_id", req.RequestID, "error", err)
		_ = d.Nack(false, false)
		return
	}

	_ = d.Ack(false)
	w.logger.Debug("request served",
		"request_id", req.RequestID, "status", resp.Status, "reply_to", replyTo)
}
