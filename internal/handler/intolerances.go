package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/piecemeal/internal/auth"
	"github.com/sakif/piecemeal/internal/model"
	"github.com/sakif/piecemeal/internal/service"
)

// IntoleranceHandler serves the signed-in user's declared intolerances.
//
//	GET  /api/user-intolerances/get
//	POST /api/user-intolerances/add      3 = already declared
//	POST /api/user-intolerances/delete   3 = not declared
type IntoleranceHandler struct {
	intolerances *service.IntoleranceService
	logger       *slog.Logger
}

func NewIntoleranceHandler(intolerances *service.IntoleranceService, logger *slog.Logger) *IntoleranceHandler {
	return &IntoleranceHandler{intolerances: intolerances, logger: logger}
}

func (h *IntoleranceHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.CurrentUser(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	offset, limit, err := page(r, 0)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	list, total, err := h.intolerances.List(r.Context(), userID, offset, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	out := make([]model.IntoleranceJSON, len(list))
	for i, in := range list {
		out[i] = in.JSON()
	}
	writeOK(w, fields{"intolerances": out, "total_intolerances": total})
}

type intoleranceRequest struct {
	ID *int `json:"id"`
}

func (h *IntoleranceHandler) intoleranceBody(w http.ResponseWriter, r *http.Request) (model.Intolerance, bool) {
	var req intoleranceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return 0, false
	}
	if req.ID == nil {
		writeFail(w, http.StatusBadRequest, CodeCorruptInput, "missing id")
		return 0, false
	}
	in, ok := model.IntoleranceFromID(*req.ID)
	if !ok {
		writeFail(w, http.StatusBadRequest, CodeCorruptInput, "unknown intolerance")
		return 0, false
	}
	return in, true
}

func (h *IntoleranceHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.CurrentUser(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	in, ok := h.intoleranceBody(w, r)
	if !ok {
		return
	}

	added, err := h.intolerances.Add(r.Context(), userID, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !added {
		writeFail(w, http.StatusConflict, 3, "intolerance already declared")
		return
	}
	writeOK(w, fields{"intolerance": in.JSON()})
}

func (h *IntoleranceHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.CurrentUser(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	in, ok := h.intoleranceBody(w, r)
	if !ok {
		return
	}

	deleted, err := h.intolerances.Delete(r.Context(), userID, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !deleted {
		writeFail(w, http.StatusNotFound, 3, "intolerance not declared")
		return
	}
	writeOK(w, nil)
}
