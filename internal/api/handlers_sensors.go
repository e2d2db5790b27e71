package api

import (
	"net/http"
)

func (h *Handlers) getSensors(w http.ResponseWriter, r *http.Request) {
	snap, err := h.dev.Snapshot(r.Context(), false)
	if err != nil {
		writeError(w, deviceError(err))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// forceRefresh polls the device regardless of cache age and returns the
// fresh snapshot.
func (h *Handlers) forceRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.dev.Snapshot(r.Context(), true)
	if err != nil {
		writeError(w, deviceError(err))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handlers) getFrequencies(w http.ResponseWriter, r *http.Request) {
	snap, err := h.dev.Snapshot(r.Context(), false)
	if err != nil {
		writeError(w, deviceError(err))
		return
	}
	recs, ok := snap.Frequencies()
	if !ok {
		writeError(w, errNotFound("no frequency sensors reported"))
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *Handlers) getTemperatures(w http.ResponseWriter, r *http.Request) {
	snap, err := h.dev.Snapshot(r.Context(), false)
	if err != nil {
		writeError(w, deviceError(err))
		return
	}
	recs, ok := snap.Temperatures()
	if !ok {
		writeError(w, errNotFound("no temperature sensors reported"))
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *Handlers) getPower(w http.ResponseWriter, r *http.Request) {
	snap, err := h.dev.Snapshot(r.Context(), false)
	if err != nil {
		writeError(w, deviceError(err))
		return
	}
	recs, ok := snap.PowerSensors()
	if !ok {
		writeError(w, errNotFound("no power sensors reported"))
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *Handlers) getCaps(w http.ResponseWriter, r *http.Request) {
	snap, err := h.dev.Snapshot(r.Context(), false)
	if err != nil {
		writeError(w, deviceError(err))
		return
	}
	recs, ok := snap.CapsSensors()
	if !ok {
		writeError(w, errNotFound("no power-capping sensors reported"))
		return
	}
	writeJSON(w, http.StatusOK, recs)
}
