package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/piecemeal/internal/apperror"
	"github.com/sakif/piecemeal/internal/auth"
	"github.com/sakif/piecemeal/internal/service"
)

// UserHandler serves profiles and the signed-in user's own account.
//
//	GET  /api/users/get?id=|username=     3 = no such user
//	GET  /api/users/search
//	GET  /api/account/get
//	POST /api/account/update               3 = email or username taken
//	POST /api/account/update-password      3 = wrong current password
//	POST /api/account/delete
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

var noUser = errorCode{
	match: isResource(apperror.ErrNotFound, "user"), status: http.StatusNotFound, code: 3,
	message: "no user exists with the specified id",
}

// HandleGet returns another user's public profile.
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, username := strings.TrimSpace(q.Get("id")), strings.TrimSpace(q.Get("username"))

	var (
		user any
		err  error
	)
	switch {
	case id != "":
		user, err = h.users.Public(r.Context(), id)
	case username != "":
		u, gerr := h.users.GetByUsername(r.Context(), username)
		if err = gerr; err == nil {
			user = u.Public()
		}
	default:
		err = apperror.InvalidArgument("id", "missing id")
	}
	if err != nil {
		writeError(w, h.logger, err, noUser)
		return
	}
	writeOK(w, fields{"user": user})
}

// HandleSearch pages through users by username or name.
func (h *UserHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("query"))
	if query == "" {
		writeFail(w, http.StatusBadRequest, CodeCorruptInput, "missing query")
		return
	}
	by := service.SearchField(q.Get("search_by"))
	if by == "" {
		by = service.SearchUsername
	}
	offset, limit, err := page(r, 10)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	results, total, err := h.users.Search(r.Context(), query, by, offset, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, fields{"results": results, "total_results": total})
}

// HandleAccount returns the full record of the signed-in user.
func (h *UserHandler) HandleAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.CurrentUser(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	u, err := h.users.Get(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, fields{"user": u})
}

func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.CurrentUser(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var upd service.AccountUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, h.logger, err)
		return
	}

	u, err := h.users.UpdateAccount(r.Context(), userID, upd)
	if err != nil {
		writeError(w, h.logger, err, errorCode{
			match: isKind(apperror.ErrConflict), status: http.StatusConflict, code: 3,
		})
		return
	}
	writeOK(w, fields{"user": u})
}

type passwordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (h *UserHandler) HandleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.CurrentUser(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req passwordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.users.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		writeError(w, h.logger, err, errorCode{
			match: isKind(apperror.ErrForbidden), status: http.StatusForbidden, code: 3,
		})
		return
	}
	writeOK(w, nil)
}

// HandleDelete removes the account with everything it owns and signs out.
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.CurrentUser(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.users.Delete(r.Context(), userID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	clearCookie(w, auth.CookieName)
	writeOK(w, nil)
}
