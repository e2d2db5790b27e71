package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/openbmc-go/occmon/internal/occ"
)

type statusResponse struct {
	Online            bool        `json:"online"`
	PollIntervalMs    int64       `json:"poll_interval_ms"`
	RefreshIntervalMs int64       `json:"refresh_interval_ms"`
	UserPowerCap      uint16      `json:"user_power_cap"`
	Header            *occ.Header `json:"header,omitempty"`
	DeviceError       string      `json:"device_error,omitempty"`
}

// getStatus reports poller and cache settings plus the device header. It
// still answers when the device does, carrying the fetch error instead of
// failing outright.
func (h *Handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Online:            h.poller.Online(),
		PollIntervalMs:    h.poller.Interval().Milliseconds(),
		RefreshIntervalMs: h.dev.RefreshInterval().Milliseconds(),
		UserPowerCap:      h.dev.UserPowerCap(),
	}
	if snap, err := h.dev.Snapshot(r.Context(), false); err != nil {
		resp.DeviceError = err.Error()
	} else {
		resp.Header = &snap.Header
	}
	writeJSON(w, http.StatusOK, resp)
}

type intervalResponse struct {
	RefreshIntervalMs int64 `json:"refresh_interval_ms"`
	PollIntervalMs    int64 `json:"poll_interval_ms"`
}

func (h *Handlers) getInterval(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, intervalResponse{
		RefreshIntervalMs: h.dev.RefreshInterval().Milliseconds(),
		PollIntervalMs:    h.poller.Interval().Milliseconds(),
	})
}

// setInterval updates the refresh cache window and/or the poll period.
// Absent fields are left alone.
func (h *Handlers) setInterval(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshIntervalMs *int64 `json:"refresh_interval_ms"`
		PollIntervalMs    *int64 `json:"poll_interval_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errBadRequest("invalid JSON: "+err.Error()))
		return
	}
	if req.RefreshIntervalMs != nil {
		if *req.RefreshIntervalMs <= 0 {
			writeError(w, errBadRequest("refresh_interval_ms must be positive"))
			return
		}
		h.dev.SetRefreshInterval(time.Duration(*req.RefreshIntervalMs) * time.Millisecond)
	}
	if req.PollIntervalMs != nil {
		if *req.PollIntervalMs < 0 {
			writeError(w, errBadRequest("poll_interval_ms must not be negative"))
			return
		}
		h.poller.SetInterval(time.Duration(*req.PollIntervalMs) * time.Millisecond)
	}
	h.getInterval(w, r)
}

type powerCapResponse struct {
	UserPowerCap uint16          `json:"user_power_cap"`
	Caps         *occ.CapsSensor `json:"caps,omitempty"`
}

func (h *Handlers) getPowerCap(w http.ResponseWriter, r *http.Request) {
	resp := powerCapResponse{UserPowerCap: h.dev.UserPowerCap()}
	if snap, err := h.dev.Snapshot(r.Context(), false); err == nil {
		if caps, ok := snap.CapsSensors(); ok && len(caps) > 0 {
			resp.Caps = &caps[0]
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// setPowerCap applies a user power cap in watts; zero clears it.
func (h *Handlers) setPowerCap(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Watts *int `json:"watts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errBadRequest("invalid JSON: "+err.Error()))
		return
	}
	if req.Watts == nil {
		writeError(w, errBadRequest("missing watts field"))
		return
	}
	if *req.Watts < 0 || *req.Watts > 0xFFFF {
		writeError(w, errBadRequest("watts out of range"))
		return
	}
	if err := h.dev.SetUserPowerCap(r.Context(), uint16(*req.Watts)); err != nil {
		writeError(w, deviceError(err))
		return
	}
	h.getPowerCap(w, r)
}

type onlineResponse struct {
	Online bool `json:"online"`
}

func (h *Handlers) getOnline(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, onlineResponse{Online: h.poller.Online()})
}

// setOnline starts or pauses background polling.
func (h *Handlers) setOnline(w http.ResponseWriter, r *http.Request) {
	var req onlineResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errBadRequest("invalid JSON: "+err.Error()))
		return
	}
	h.poller.SetOnline(req.Online)
	writeJSON(w, http.StatusOK, onlineResponse{Online: h.poller.Online()})
}
