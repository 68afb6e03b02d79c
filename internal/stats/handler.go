package stats

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/httputil"
	"tessera/pkg/requestcontext"
)

type Source interface {
	Snapshot(ctx context.Context) (*Stats, error)
}

type Handler struct {
	source Source
	logger *slog.Logger
}

func NewHandler(source Source, logger *slog.Logger) *Handler {
	return &Handler{source: source, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/stats", h.handleGet)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snapshot, err := h.source.Snapshot(ctx)
	if err != nil {
		if h.logger != nil {
			h.logger.ErrorContext(ctx, "failed to compute stats",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute stats"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snapshot)
}
