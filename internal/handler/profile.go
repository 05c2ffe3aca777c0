package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/piecemeal/internal/apperror"
	"github.com/sakif/piecemeal/internal/auth"
	"github.com/sakif/piecemeal/internal/service"
)

// ProfileHandler serves full profile pages.
//
//	GET /api/users/profile?id=     3 = no such user
type ProfileHandler struct {
	profiles *service.ProfileService
	logger   *slog.Logger
}

func NewProfileHandler(profiles *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, h.logger, apperror.InvalidArgument("id", "missing id"))
		return
	}
	viewer, _ := auth.UserIDFromContext(r.Context())

	p, err := h.profiles.Get(r.Context(), viewer, id)
	if err != nil {
		writeError(w, h.logger, err, noUser)
		return
	}
	writeOK(w, fields{"profile": p})
}
