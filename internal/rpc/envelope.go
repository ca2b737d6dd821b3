// Package rpc implements the message-queue RPC surface: request/response
// envelopes, the RabbitMQ worker that serves queries, and the client used by
// frontends and tooling.
package rpc

import (
	"errors"
	"fmt"

	"github.com/koopa0/newsagent/internal/textutil"
)

// Queue defaults; overridable via config.
const (
	DefaultRequestQueue  = "llm_requests"
	DefaultResponseQueue = "llm_responses"
)

// StreamingSentinel is returned as Response.Response when the worker defers
// generation to a streaming channel: the caller then generates from
// FinalPrompt itself, streaming tokens to the end user.
const StreamingSentinel = "[STREAMING_READY]"

// Request envelope limits.
const (
	MaxPromptRunes = 10000
	MinMaxTokens   = 50
	MaxMaxTokens   = 2000
	MinTimeoutSec  = 30
	MaxTimeoutSec  = 300

	// Default generation budgets by script; CJK answers need more tokens
	// per unit of content.
	DefaultMaxTokensCJK   = 300
	DefaultMaxTokensLatin = 250

	DefaultTemperature = 0.7
	DefaultTimeoutSec  = 120
)

// Response status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	// ErrEmptyPrompt indicates a request without a prompt.
	ErrEmptyPrompt = errors.New("empty prompt")

	// ErrPromptTooLong indicates the prompt exceeds MaxPromptRunes.
	ErrPromptTooLong = errors.New("prompt too long")

	// ErrInvalidTemperature indicates a temperature outside [0, 2].
	ErrInvalidTemperature = errors.New("temperature out of range")
)

// HistoryMessage is one turn of prior conversation. Only the most recent
// turns influence planning.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the wire format of a query. Zero-valued optional fields are
// replaced by defaults in Normalize.
type Request struct {
	RequestID   string           `json:"request_id"`
	Prompt      string           `json:"prompt"`
	History     []HistoryMessage `json:"history,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
	TimeoutSec  int              `json:"timeout,omitempty"`
	StreamMode  bool             `json:"stream_mode,omitempty"`
}

// Validate checks request limits.
func (r *Request) Validate() error {
	n := textutil.RuneLen(r.Prompt)
	if n == 0 {
		return ErrEmptyPrompt
	}
	if n > MaxPromptRunes {
		return fmt.Errorf("%w: %d runes (max %d)", ErrPromptTooLong, n, MaxPromptRunes)
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return fmt.Errorf("%w: %v", ErrInvalidTemperature, *r.Temperature)
	}
	return nil
}

// Normalize clamps optional fields into their valid ranges and fills
// defaults. The max-token default depends on the prompt's script.
func (r *Request) Normalize() {
	if r.MaxTokens == 0 {
		if textutil.IsCJK(r.Prompt) {
			r.MaxTokens = DefaultMaxTokensCJK
		} else {
			r.MaxTokens = DefaultMaxTokensLatin
		}
	}
	if r.MaxTokens < MinMaxTokens {
		r.MaxTokens = MinMaxTokens
	}
	if r.MaxTokens > MaxMaxTokens {
		r.MaxTokens = MaxMaxTokens
	}

	if r.Temperature == nil {
		t := DefaultTemperature
		r.Temperature = &t
	}

	if r.TimeoutSec == 0 {
		r.TimeoutSec = DefaultTimeoutSec
	}
	if r.TimeoutSec < MinTimeoutSec {
		r.TimeoutSec = MinTimeoutSec
	}
	if r.TimeoutSec > MaxTimeoutSec {
		r.TimeoutSec = MaxTimeoutSec
	}
}

// RecentHistory returns at most the n latest history turns.
func (r *Request) RecentHistory(n int) []HistoryMessage {
	if len(r.History) <= n {
		return r.History
	}
	return r.History[len(r.History)-n:]
}

// Response is the wire format of an answer.
type Response struct {
	RequestID     string             `json:"request_id"`
	Response      string             `json:"response"`
	Suggestions   []string           `json:"suggestions"`
	FinalPrompt   string             `json:"final_prompt,omitempty"`
	Model         string             `json:"model"`
	Status        string             `json:"status"`
	Error         string             `json:"error,omitempty"`
	RAGUsed       bool               `json:"rag_used"`
	ArticlesFound int                `json:"articles_found"`
	ToolsUsed     []string           `json:"tools_used"`
	Timings       map[string]float64 `json:"timings"`
}

// ErrorResponse builds the error envelope for a failed request.
func ErrorResponse(requestID string, err error) Response {
	return Response{
		RequestID: requestID,
		Status:    StatusError,
		Error:     err.Error(),
	}
}

// StreamEventType enumerates the event kinds of a streaming session. The set
// is closed; consumers must reject unknown types.
type StreamEventType string

const (
	StreamStatus   StreamEventType = "status"
	StreamMetadata StreamEventType = "metadata"
	StreamChunk    StreamEventType = "chunk"
	StreamError    StreamEventType = "error"
	StreamDone     StreamEventType = "done"
)

// knownStreamEvents guards against typo'd event types crossing the wire.
var knownStreamEvents = map[StreamEventType]struct{}{
	StreamStatus: {}, StreamMetadata: {}, StreamChunk: {},
	StreamError: {}, StreamDone: {},
}

// Valid reports whether t is a defined stream event type.
func (t StreamEventType) Valid() bool {
	_, ok := knownStreamEvents[t]
	return ok
}

// StreamEvent is one frame of a streaming response.
type StreamEvent struct {
	Type      StreamEventType `json:"type"`
	RequestID string          `json:"request_id"`
	Text      string          `json:"text,omitempty"`     // chunk payload or status line
	Metadata  *Response       `json:"metadata,omitempty"` // full envelope on metadata events
}
