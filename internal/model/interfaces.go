package model

import (
	"context"

	"github.com/lancet-ai/lancet/internal/model/contract"
)

// StreamProvider turns a conversation plus a declared tool set into a live
// event stream. The returned channel is closed after a terminal event
// (finish or error) has been delivered. A non-nil error means the stream
// could not be opened at all.
type StreamProvider interface {
	Stream(ctx context.Context, req contract.CompletionRequest) (<-chan contract.Event, error)
	Name() string
}
