package user

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/kfchess/identity/pkg/logger"
	"github.com/kfchess/identity/pkg/session"
	"github.com/kfchess/identity/svc/directory"
	"github.com/kfchess/identity/svc/history"
	"github.com/kfchess/identity/svc/profile"
)

const maxUpdateBody = 4 << 10

type successResponse struct {
	Success bool                 `json:"success"`
	User    directory.PublicView `json:"user"`
}

func (h *Handler) info(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw := r.URL.Query()["userId"]

	if len(raw) == 0 {
		self, err := h.profile.GetSelf(ctx, session.MustFromContext(ctx))
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to load self info", logger.Component("user"), logger.Error(err))
			writeInternal(w)
			return
		}
		writeJSON(w, http.StatusOK, self)
		return
	}

	ids := make([]int64, 0, len(raw))
	for _, v := range raw {
		id, ok := parseID(v)
		if !ok {
			writeFailure(w, msgInvalidRequest)
			return
		}
		ids = append(ids, id)
	}
	users, err := h.profile.GetOthers(ctx, ids)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load users", logger.Component("user"), logger.Error(err))
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

type updateRequest struct {
	Username *string `json:"username"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBody)).Decode(&req); err != nil {
		writeFailure(w, msgInvalidRequest)
		return
	}

	u, err := h.profile.UpdateProfile(ctx, session.MustFromContext(ctx), req.Username)
	if err != nil {
		writeFailure(w, profile.Message(err, msgInternal))
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true, User: u.Public()})
}

// uploadPic takes the raw image as the request body.
func (h *Handler) uploadPic(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, profile.MaxAvatarBytes+1))
	if err != nil {
		// An oversized body still reaches the service so the usual check
		// order (login, user, size) decides the message.
		var tooLarge *http.MaxBytesError
		if !errors.As(err, &tooLarge) {
			writeFailure(w, msgInvalidRequest)
			return
		}
	}

	u, err := h.profile.UploadAvatar(ctx, session.MustFromContext(ctx), data)
	if err != nil {
		writeFailure(w, profile.Message(err, "Failed to upload profile picture."))
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true, User: u.Public()})
}

func (h *Handler) gameHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	userID, ok1 := parseID(q.Get("userId"))
	offset, ok2 := parseInt(q.Get("offset"))
	count, ok3 := parseInt(q.Get("count"))
	if !ok1 || !ok2 || !ok3 || offset < 0 {
		writeFailure(w, msgInvalidRequest)
		return
	}

	entries, err := h.history.GetUserGameHistory(ctx, userID, offset, count)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load game history",
			logger.Component("user"), logger.UserID(userID), logger.Error(err))
		writeInternal(w)
		return
	}

	users := map[int64]directory.PublicView{}
	if ids := history.OpponentIDs(entries); len(ids) > 0 {
		users, err = h.profile.GetOthers(ctx, ids)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to load opponents", logger.Component("user"), logger.Error(err))
			writeInternal(w)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"history": entries,
		"users":   users,
	})
}

func (h *Handler) campaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := parseID(r.URL.Query().Get("userId"))
	if !ok {
		writeFailure(w, msgInvalidRequest)
		return
	}
	progress, err := h.history.GetCampaignProgress(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load campaign progress",
			logger.Component("user"), logger.UserID(userID), logger.Error(err))
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"progress": progress})
}
