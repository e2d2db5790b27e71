// Package api implements the HTTP REST API for occd.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/openbmc-go/occmon/internal/occ"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	dev    Device
	poller Poller
	events EventBus
}

// Device is the interface the handlers use to talk to the controller.
type Device interface {
	Snapshot(ctx context.Context, force bool) (*occ.Snapshot, error)
	SetUserPowerCap(ctx context.Context, watts uint16) error
	UserPowerCap() uint16
	SetRefreshInterval(d time.Duration)
	RefreshInterval() time.Duration
}

// Poller is the interface to the background poll loop.
type Poller interface {
	Online() bool
	SetOnline(online bool)
	Interval() time.Duration
	SetInterval(d time.Duration)
}

// EventBus is the interface for subscribing to snapshot events.
type EventBus interface {
	Subscribe(id string) <-chan occ.Snapshot
	Unsubscribe(id string)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an AppError as a JSON response.
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	if appErr, ok := err.(*AppError); ok {
		w.WriteHeader(appErr.Status)
		_ = json.NewEncoder(w).Encode(appErr)
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(errInternal(err.Error()))
}

// deviceError maps a protocol-layer error to an AppError.
func deviceError(err error) *AppError {
	switch {
	case errors.Is(err, occ.ErrInvalidPowerCap):
		return errBadRequest(err.Error())
	case errors.Is(err, occ.ErrPayloadTooLong):
		return errBadRequest(err.Error())
	default:
		// Transport failures, rejected commands and malformed responses
		// are all the device's fault, not the caller's.
		return errBadGateway(err.Error())
	}
}
