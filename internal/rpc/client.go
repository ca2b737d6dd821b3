package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// pollInterval paces shared-queue polling; ch.Get is cheap but not free.
const pollInterval = 50 * time.Millisecond

// Client issues requests over the broker and waits for the matching reply.
//
// Two reply patterns are supported. With an exclusive reply queue (the
// default) the broker routes replies straight to this client. In shared
// mode every client polls the common response queue and claims messages by
// request id; foreign messages are rejected without requeue, matching the
// behavior of the other consumers on that queue.
type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel

	replies       queueGetter
	requestQueue  string
	responseQueue string
	useReplyQueue bool
	logger        *slog.Logger
}

// queueGetter is the slice of the channel API the reply poll needs. Split
// out so the poll loop can be driven without a live broker.
type queueGetter interface {
	Get(queue string, autoAck bool) (amqp.Delivery, bool, error)
}

// ClientConfig configures broker access.
type ClientConfig struct {
	URL           string
	RequestQueue  string
	ResponseQueue string
	UseReplyQueue bool
}

// NewClient connects to the broker and declares the shared queues.
func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestQueue == "" {
		cfg.RequestQueue = DefaultRequestQueue
	}
	if cfg.ResponseQueue == "" {
		cfg.ResponseQueue = DefaultResponseQueue
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	for _, q := range []string{cfg.RequestQueue, cfg.ResponseQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("declaring queue %q: %w", q, err)
		}
	}

	return &Client{
		conn:          conn,
		ch:            ch,
		replies:       ch,
		requestQueue:  cfg.RequestQueue,
		responseQueue: cfg.ResponseQueue,
		useReplyQueue: cfg.UseReplyQueue,
		logger:        logger,
	}, nil
}

// Close releases the broker connection.
func (c *Client) Close() error {
	if err := c.ch.Close(); err != nil {
		_ = c.conn.Close()
		return fmt.Errorf("closing channel: %w", err)
	}
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("closing connection: %w", err)
	}
	return nil
}

// Ask publishes req and blocks until the matching response arrives, the
// request timeout elapses, or ctx is canceled.
func (c *Client) Ask(ctx context.Context, req Request) (Response, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if err := req.Validate(); err != nil {
		return Response{}, err
	}
	req.Normalize()

	timeout := time.Duration(req.TimeoutSec) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	replyQueue := c.responseQueue
	if c.useReplyQueue {
		// Exclusive auto-delete queue; the broker removes it when this
		// channel goes away.
		q, err := c.ch.QueueDeclare("", false, true, true, false, nil)
		if err != nil {
			return Response{}, fmt.Errorf("declaring reply queue: %w", err)
		}
		replyQueue = q.Name
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encoding request: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: req.RequestID,
		DeliveryMode:  amqp.Persistent,
		Body:          body,
	}
	if c.useReplyQueue {
		pub.ReplyTo = replyQueue
	}
	if err := c.ch.PublishWithContext(ctx, "", c.requestQueue, false, false, pub); err != nil {
		return Response{}, fmt.Errorf("publishing request: %w", err)
	}

	c.logger.Debug("request published",
		"request_id", req.RequestID, "reply_queue", replyQueue)
	return c.await(ctx, replyQueue, req.RequestID)
}

// await polls replyQueue until the response with requestID appears.
func (c *Client) await(ctx context.Context, replyQueue, requestID string) (Response, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Response{}, fmt.Errorf("waiting for response %s: %w", requestID, ctx.Err())
		case <-ticker.C:
		}

		d, ok, err := c.replies.Get(replyQueue, false)
		if err != nil {
			return Response{}, fmt.Errorf("reading reply queue: %w", err)
		}
		if !ok {
			continue
		}

		resp, matched, err := MatchResponse(d.Body, requestID)
		if err != nil || !matched {
			// Malformed or someone else's reply; reject without requeue
			// on the shared queue so it doesn't spin forever. On an
			// exclusive queue nothing foreign can arrive, so this only
			// drops garbage.
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
		return resp, nil
	}
}

// MatchResponse decodes body and reports whether it answers requestID.
func MatchResponse(body []byte, requestID string) (Response, bool, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return Response{}, false, fmt.Errorf("decoding response: %w", err)
	}
	return resp, resp.RequestID == requestID, nil
}
