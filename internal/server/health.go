package server

import (
	"net/http"

	"departure-board/internal/departure"
)

type healthHandler struct {
	service  string
	station  string
	register *departure.InstrumentedRegister
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	WriteSuccess(ctx, w, HealthResponse{
		Status:     "healthy",
		Service:    h.service,
		Station:    h.station,
		Departures: h.register.Count(ctx),
	})
}
