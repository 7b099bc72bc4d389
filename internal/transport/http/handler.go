package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cwrk-planet/roomgate/internal/domain"
	"github.com/cwrk-planet/roomgate/internal/service"
	httpmw "github.com/cwrk-planet/roomgate/internal/transport/http/middleware"
	"github.com/cwrk-planet/roomgate/pkg/httputil"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	admit *service.AdmissionService
	chat  *service.ChatService
}

func NewHandler(admit *service.AdmissionService, chat *service.ChatService) *Handler {
	return &Handler{admit: admit, chat: chat}
}

var errBadJSON = errors.New("invalid json")

func caller(r *http.Request) domain.Caller {
	c, _ := httpmw.CallerFromCtx(r.Context())
	return c
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httputil.Decode(r, dst); err != nil {
		httputil.Error(r.Context(), w, http.StatusBadRequest, errBadJSON.Error(), map[string]any{"code": "invalid"})
		return false
	}
	return true
}

// POST /rooms
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if !decode(w, r, &req) {
		return
	}
	sum, err := h.admit.CreateRoom(r.Context(), caller(r).UserID, service.CreateRoomInput{
		Name:            req.Name,
		Password:        req.Password,
		MaxParticipants: req.MaxParticipants,
	})
	if err != nil {
		writeError(w, r, "handler.CreateRoom", err)
		return
	}
	httputil.Created(w, toRoomItem(sum))
}

// GET /rooms?limit=&cursor= — только активные
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	items, next, err := h.admit.ListRooms(r.Context(), domain.RoomActive, queryInt(r, "limit"), r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, r, "handler.ListRooms", err)
		return
	}
	httputil.OK(w, toRoomsList(items, next))
}

// GET /rooms/{token}
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	sum, err := h.admit.GetRoom(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, r, "handler.GetRoom", err)
		return
	}
	httputil.OK(w, toRoomItem(sum))
}

// POST /rooms/{token}/join
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	var req JoinRoomRequest
	if !decode(w, r, &req) {
		return
	}
	token := chi.URLParam(r, "token")
	p, err := h.admit.JoinRoom(r.Context(), token, caller(r).UserID, req.Password)
	if err != nil {
		writeError(w, r, "handler.JoinRoom", err)
		return
	}
	httputil.OK(w, JoinRoomResponse{
		Room:     token,
		UserID:   idString(p.UserID),
		IsHost:   p.IsHost,
		JoinedAt: p.JoinedAt,
	})
}

// POST /rooms/{token}/leave
func (h *Handler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	if err := h.admit.LeaveRoom(r.Context(), chi.URLParam(r, "token"), caller(r).UserID); err != nil {
		writeError(w, r, "handler.LeaveRoom", err)
		return
	}
	httputil.OK(w, map[string]string{"status": "left"})
}

// POST /rooms/{token}/end
func (h *Handler) EndRoom(w http.ResponseWriter, r *http.Request) {
	if err := h.admit.EndRoom(r.Context(), chi.URLParam(r, "token"), caller(r).UserID); err != nil {
		writeError(w, r, "handler.EndRoom", err)
		return
	}
	httputil.OK(w, map[string]string{"status": "ended"})
}

// GET /rooms/{token}/participants
func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	items, err := h.admit.ListParticipants(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, r, "handler.ListParticipants", err)
		return
	}
	resp := ParticipantsResponse{Items: make([]ParticipantItem, 0, len(items))}
	for _, it := range items {
		resp.Items = append(resp.Items, ParticipantItem{
			UserID:      idString(it.UserID),
			DisplayName: it.DisplayName,
			AvatarURL:   it.AvatarURL,
			JoinedAt:    it.JoinedAt,
			IsHost:      it.IsHost,
			Online:      h.admit.IsOnline(r.Context(), it.UserID),
		})
	}
	httputil.OK(w, resp)
}

// GET /rooms/{token}/media-token
func (h *Handler) MediaToken(w http.ResponseWriter, r *http.Request) {
	tok, err := h.admit.MediaToken(r.Context(), chi.URLParam(r, "token"), caller(r).UserID)
	if err != nil {
		writeError(w, r, "handler.MediaToken", err)
		return
	}
	httputil.OK(w, MediaTokenResponse{
		Token:     tok.Token,
		AppID:     tok.AppID,
		Channel:   tok.Channel,
		UID:       idString(tok.UID),
		ExpiresIn: int64(tok.ExpiresIn / time.Second),
	})
}

// GET /rooms/{token}/host — проверка прав хоста для записи
func (h *Handler) CheckHost(w http.ResponseWriter, r *http.Request) {
	room, err := h.admit.CheckHost(r.Context(), chi.URLParam(r, "token"), caller(r).UserID)
	if err != nil {
		writeError(w, r, "handler.CheckHost", err)
		return
	}
	httputil.OK(w, HostResponse{Room: room.PublicToken, IsHost: true})
}

// GET /rooms/{token}/chat?after=&limit=
func (h *Handler) ChatHistory(w http.ResponseWriter, r *http.Request) {
	if h.chat == nil {
		httputil.Error(r.Context(), w, http.StatusNotImplemented, "chat service disabled", nil)
		return
	}
	items, next, err := h.chat.History(r.Context(), chi.URLParam(r, "token"), r.URL.Query().Get("after"), queryInt(r, "limit"))
	if err != nil {
		writeError(w, r, "handler.ChatHistory", err)
		return
	}
	resp := ChatHistoryResponse{Items: make([]ChatMessageItem, 0, len(items)), NextCursor: next}
	for _, m := range items {
		resp.Items = append(resp.Items, ChatMessageItem{
			ID:        m.ID,
			UserID:    idString(m.UserID),
			Text:      m.Text,
			CreatedAt: m.CreatedAt.Truncate(time.Millisecond),
		})
	}
	httputil.OK(w, resp)
}

// GET /presence
func (h *Handler) ListOnline(w http.ResponseWriter, r *http.Request) {
	ids := h.admit.ListOnline(r.Context())
	resp := OnlineListResponse{Items: make([]string, 0, len(ids)), Count: len(ids)}
	for _, id := range ids {
		resp.Items = append(resp.Items, idString(id))
	}
	httputil.OK(w, resp)
}

// GET /presence/{userID}
func (h *Handler) Presence(w http.ResponseWriter, r *http.Request) {
	uid, ok := userIDParam(w, r)
	if !ok {
		return
	}
	httputil.OK(w, PresenceItem{UserID: idString(uid), Online: h.admit.IsOnline(r.Context(), uid)})
}

func userIDParam(w http.ResponseWriter, r *http.Request) (domain.UserID, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "userID")), 10, 64)
	if err != nil || id <= 0 {
		httputil.Error(r.Context(), w, http.StatusBadRequest, "invalid user id", map[string]any{"code": "invalid"})
		return 0, false
	}
	return domain.UserID(id), true
}

// --- admin ---

// GET /admin/rooms?status=&limit=&cursor=
func (h *Handler) AdminListRooms(w http.ResponseWriter, r *http.Request) {
	status := domain.RoomStatus(r.URL.Query().Get("status"))
	switch status {
	case "", domain.RoomActive, domain.RoomEnded:
	default:
		httputil.Error(r.Context(), w, http.StatusBadRequest, "invalid status", map[string]any{"code": "invalid"})
		return
	}
	items, next, err := h.admit.ListRooms(r.Context(), status, queryInt(r, "limit"), r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, r, "handler.AdminListRooms", err)
		return
	}
	httputil.OK(w, toRoomsList(items, next))
}

// GET /admin/stats
func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.admit.Stats(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, "handler.AdminStats", err)
		return
	}
	httputil.OK(w, toStats(st))
}

// GET /admin/operations?limit=
func (h *Handler) AdminOperations(w http.ResponseWriter, r *http.Request) {
	ops, err := h.admit.ListOperations(r.Context(), caller(r), queryInt(r, "limit"))
	if err != nil {
		writeError(w, r, "handler.AdminOperations", err)
		return
	}
	resp := OperationsResponse{Items: make([]OperationItem, 0, len(ops))}
	for _, op := range ops {
		resp.Items = append(resp.Items, toOperationItem(op))
	}
	httputil.OK(w, resp)
}

// POST /admin/users/{userID}/disconnect
func (h *Handler) AdminDisconnectUser(w http.ResponseWriter, r *http.Request) {
	uid, ok := userIDParam(w, r)
	if !ok {
		return
	}
	var req ReasonRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.admit.ForceDisconnectUser(r.Context(), caller(r), uid, req.Reason); err != nil {
		writeError(w, r, "handler.AdminDisconnectUser", err)
		return
	}
	httputil.OK(w, map[string]string{"status": "disconnected"})
}

// POST /admin/rooms/{token}/end
func (h *Handler) AdminEndRoom(w http.ResponseWriter, r *http.Request) {
	var req ReasonRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.admit.ForceEndRoom(r.Context(), caller(r), chi.URLParam(r, "token"), req.Reason); err != nil {
		writeError(w, r, "handler.AdminEndRoom", err)
		return
	}
	httputil.OK(w, map[string]string{"status": "ended"})
}

// POST /admin/rooms/reclaim
func (h *Handler) AdminReclaim(w http.ResponseWriter, r *http.Request) {
	n, err := h.admit.ReclaimAllIdleRooms(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, "handler.AdminReclaim", err)
		return
	}
	httputil.OK(w, ReclaimResponse{Ended: n})
}
