package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/piecemeal/internal/apperror"
	"github.com/sakif/piecemeal/internal/auth"
	"github.com/sakif/piecemeal/internal/service"
)

// FriendHandler serves the signed-in user's friends and friend requests.
//
//	GET  /api/friends/get
//	POST /api/friends/send-request          3 = already sent, 4 = no such user
//	POST /api/friends/handle-request        3 = no such request, 4 = no such user, 5 = bad action
//	GET  /api/friends/get-sent-requests
//	GET  /api/friends/get-received-requests
type FriendHandler struct {
	social *service.SocialService
	logger *slog.Logger
}

func NewFriendHandler(social *service.SocialService, logger *slog.Logger) *FriendHandler {
	return &FriendHandler{social: social, logger: logger}
}

var missingUser = errorCode{
	match: isResource(apperror.ErrNotFound, "user"), status: http.StatusNotFound, code: 4,
	message: "no user exists with the specified id",
}

func (h *FriendHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
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

	friends, total, err := h.social.GetRelationships(r.Context(), userID, offset, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, fields{"friends": friends, "total_friends": total})
}

type sendRequest struct {
	Target string `json:"target"`
}

func (h *FriendHandler) HandleSendRequest(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.CurrentUser(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req sendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Target == "" {
		writeFail(w, http.StatusBadRequest, CodeCorruptInput, "missing target")
		return
	}

	added, err := h.social.AddFriendRequest(r.Context(), userID, req.Target)
	if err != nil {
		writeError(w, h.logger, err, missingUser)
		return
	}
	if !added {
		writeFail(w, http.StatusConflict, 3, "friend request already sent")
		return
	}
	writeOK(w, nil)
}

type handleRequest struct {
	Src    string `json:"src"`
	Action *int   `json:"action"`
}

// HandleRequest accepts (1) or denies (0) a request sent to the signed-in
// user by src.
func (h *FriendHandler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.CurrentUser(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req handleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Src == "" || req.Action == nil {
		writeFail(w, http.StatusBadRequest, CodeCorruptInput, "src and action are required")
		return
	}
	action := service.FriendAction(*req.Action)
	if !action.Valid() {
		writeFail(w, http.StatusBadRequest, 5, "action must be 0 (deny) or 1 (accept)")
		return
	}

	err = h.social.HandleFriendRequest(r.Context(), req.Src, userID, action)
	if err != nil {
		writeError(w, h.logger, err,
			errorCode{
				match: isResource(apperror.ErrNotFound, "friend request"), status: http.StatusNotFound, code: 3,
				message: "no such friend request",
			},
			missingUser,
		)
		return
	}
	writeOK(w, nil)
}

func (h *FriendHandler) HandleSentRequests(w http.ResponseWriter, r *http.Request) {
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

	targets, total, err := h.social.GetSentRequests(r.Context(), userID, offset, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, fields{"targets": targets, "total_sent": total})
}

func (h *FriendHandler) HandleReceivedRequests(w http.ResponseWriter, r *http.Request) {
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

	sources, total, err := h.social.GetReceivedRequests(r.Context(), userID, offset, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, fields{"sources": sources, "total_received": total})
}
