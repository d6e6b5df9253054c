// Package services holds the operations behind the admin API. Terminal
// failures are reported as Outcome values; only request-level problems
// (unknown ids, bad input, store errors) come back as errors.
package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/srbio/internal/common"
	"github.com/dmitrijs2005/srbio/internal/models"
	"github.com/dmitrijs2005/srbio/internal/session"
	"github.com/dmitrijs2005/srbio/internal/syncer"
	"github.com/dmitrijs2005/srbio/internal/terminal"
)

// Outcome is the result of an operation against a terminal.
type Outcome struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message"`
	Counts   map[string]int `json:"counts,omitempty"`
	Failures []string       `json:"failures,omitempty"`
	Data     any            `json:"data,omitempty"`
}

func failed(err error) Outcome {
	return Outcome{Success: false, Message: err.Error()}
}

func failureStrings(fs []syncer.RecordFailure) []string {
	if len(fs) == 0 {
		return nil
	}
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.String()
	}
	return out
}

// requestError reports whether err belongs to the request rather than to
// the terminal.
func requestError(err error) bool {
	var ce *terminal.ConnectionError
	if errors.As(err, &ce) {
		return false
	}
	return errors.Is(err, common.ErrorNotFound) || errors.Is(err, common.ErrorInvalidArgument)
}

// Broadcaster receives sync events for realtime clients.
type Broadcaster interface {
	Broadcast(event string, data any)
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(string, any) {}

type sessionRunner interface {
	WithSession(ctx context.Context, d *models.Device, fn session.Action) error
	MarkOnline(ctx context.Context, deviceID string) error
}
