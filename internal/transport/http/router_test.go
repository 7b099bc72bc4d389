package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwrk-planet/roomgate/internal/identity"
	"github.com/cwrk-planet/roomgate/internal/media"
	"github.com/cwrk-planet/roomgate/internal/presence"
	"github.com/cwrk-planet/roomgate/internal/security"
	"github.com/cwrk-planet/roomgate/internal/service"
	"github.com/cwrk-planet/roomgate/internal/sqlite"

	"golang.org/x/crypto/bcrypt"
)

type apiFixture struct {
	router   http.Handler
	presence *presence.Registry
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "rooms.db"))
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	repos := sqlite.NewSet(db)
	t.Cleanup(repos.Close)

	reg := presence.NewRegistry(presence.NewMemoryStore(), time.Minute)
	admit := service.NewAdmissionService(repos, reg, media.NewSigner("app", "cert", time.Hour), service.Options{
		MaxActiveRooms: 2,
		Bcrypt:         security.BcryptConfig{Cost: bcrypt.MinCost},
	})
	chat := service.NewChatService(repos, nil)
	router := NewRouter(Deps{
		Handler:   NewHandler(admit, chat),
		Auth:      identity.TrustedHeaders{},
		Heartbeat: service.NewSessionService(reg, admit),
	})
	return &apiFixture{router: router, presence: reg}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Message string         `json:"message"`
		Meta    map[string]any `json:"meta"`
	} `json:"error"`
}

func (f *apiFixture) do(t *testing.T, method, path, uid, role string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if uid != "" {
		req.Header.Set("Authorization", "Bearer test")
		req.Header.Set("X-User-ID", uid)
		req.Header.Set("X-User-Role", role)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, env
}

func errCode(env envelope) string {
	if env.Error == nil {
		return ""
	}
	code, _ := env.Error.Meta["code"].(string)
	return code
}

func TestRoomLifecycle(t *testing.T) {
	f := newAPI(t)

	status, env := f.do(t, http.MethodPost, "/rooms", "1", "", CreateRoomRequest{Name: "retro", Password: "pass1234", MaxParticipants: 2})
	if status != http.StatusCreated {
		t.Fatalf("create status = %d %+v", status, env.Error)
	}
	var room RoomItem
	_ = json.Unmarshal(env.Data, &room)
	if room.PublicToken == "" || !room.HasPassword || room.CurrentParticipants != 1 || room.CreatorID != "1" {
		t.Fatalf("room = %+v", room)
	}
	base := "/rooms/" + room.PublicToken

	if status, env = f.do(t, http.MethodPost, base+"/join", "2", "", JoinRoomRequest{Password: "wrong"}); status != http.StatusConflict || errCode(env) != "bad_password" {
		t.Fatalf("bad password = %d %s", status, errCode(env))
	}
	if status, _ = f.do(t, http.MethodPost, base+"/join", "2", "", JoinRoomRequest{Password: "pass1234"}); status != http.StatusOK {
		t.Fatalf("join = %d", status)
	}
	if status, env = f.do(t, http.MethodPost, base+"/join", "3", "", JoinRoomRequest{Password: "pass1234"}); status != http.StatusConflict || errCode(env) != "room_full" {
		t.Fatalf("full = %d %s", status, errCode(env))
	}

	status, env = f.do(t, http.MethodGet, base+"/participants", "2", "", nil)
	var parts ParticipantsResponse
	_ = json.Unmarshal(env.Data, &parts)
	if status != http.StatusOK || len(parts.Items) != 2 || !parts.Items[0].IsHost {
		t.Fatalf("participants = %d %+v", status, parts)
	}

	status, env = f.do(t, http.MethodGet, base+"/media-token", "2", "", nil)
	var mt MediaTokenResponse
	_ = json.Unmarshal(env.Data, &mt)
	if status != http.StatusOK || mt.Token == nil || mt.Channel != room.PublicToken || mt.ExpiresIn != 3600 {
		t.Fatalf("media token = %d %+v", status, mt)
	}
	if status, env = f.do(t, http.MethodGet, base+"/media-token", "9", "", nil); status != http.StatusConflict || errCode(env) != "not_in_room" {
		t.Fatalf("outsider media token = %d %s", status, errCode(env))
	}

	if status, _ = f.do(t, http.MethodGet, base+"/host", "1", "", nil); status != http.StatusOK {
		t.Fatalf("host check = %d", status)
	}
	if status, _ = f.do(t, http.MethodGet, base+"/host", "2", "", nil); status != http.StatusForbidden {
		t.Fatalf("non-host check = %d", status)
	}
	if status, _ = f.do(t, http.MethodPost, base+"/end", "2", "", nil); status != http.StatusForbidden {
		t.Fatalf("non-host end = %d", status)
	}
	if status, _ = f.do(t, http.MethodPost, base+"/leave", "2", "", nil); status != http.StatusOK {
		t.Fatalf("leave = %d", status)
	}
	if status, _ = f.do(t, http.MethodPost, base+"/end", "1", "", nil); status != http.StatusOK {
		t.Fatalf("end = %d", status)
	}
	if status, env = f.do(t, http.MethodPost, base+"/join", "2", "", JoinRoomRequest{Password: "pass1234"}); status != http.StatusConflict || errCode(env) != "room_ended" {
		t.Fatalf("join ended = %d %s", status, errCode(env))
	}
	if status, _ = f.do(t, http.MethodGet, "/rooms/nope0000", "1", "", nil); status != http.StatusNotFound {
		t.Fatalf("missing room = %d", status)
	}
	if status, _ = f.do(t, http.MethodGet, base+"/chat", "1", "", nil); status != http.StatusOK {
		t.Fatalf("chat history = %d", status)
	}
}

func TestCreateRoom_Errors(t *testing.T) {
	f := newAPI(t)
	if status, env := f.do(t, http.MethodPost, "/rooms", "1", "", CreateRoomRequest{Name: "x", MaxParticipants: 11}); status != http.StatusBadRequest || errCode(env) != "invalid" {
		t.Fatalf("bad max = %d %s", status, errCode(env))
	}
	f.do(t, http.MethodPost, "/rooms", "1", "", CreateRoomRequest{Name: "a"})
	f.do(t, http.MethodPost, "/rooms", "2", "", CreateRoomRequest{Name: "b"})
	if status, env := f.do(t, http.MethodPost, "/rooms", "3", "", CreateRoomRequest{Name: "c"}); status != http.StatusTooManyRequests || errCode(env) != "capacity_exceeded" {
		t.Fatalf("cap = %d %s", status, errCode(env))
	}
	if status, _ := f.do(t, http.MethodPost, "/rooms", "", "", CreateRoomRequest{Name: "d"}); status != http.StatusUnauthorized {
		t.Fatalf("anonymous = %d", status)
	}

	status, env := f.do(t, http.MethodGet, "/rooms?limit=1", "1", "", nil)
	var list RoomsListResponse
	_ = json.Unmarshal(env.Data, &list)
	if status != http.StatusOK || len(list.Items) != 1 || list.NextCursor == "" {
		t.Fatalf("list = %d %+v", status, list)
	}
}

func TestPresenceEndpoints(t *testing.T) {
	f := newAPI(t)
	f.presence.MarkOnline(t.Context(), 4)

	status, env := f.do(t, http.MethodGet, "/presence/4", "1", "", nil)
	var p PresenceItem
	_ = json.Unmarshal(env.Data, &p)
	if status != http.StatusOK || !p.Online {
		t.Fatalf("presence = %d %+v", status, p)
	}
	if status, _ := f.do(t, http.MethodGet, "/presence/abc", "1", "", nil); status != http.StatusBadRequest {
		t.Fatalf("bad id = %d", status)
	}
	status, env = f.do(t, http.MethodGet, "/presence", "1", "", nil)
	var list OnlineListResponse
	_ = json.Unmarshal(env.Data, &list)
	if status != http.StatusOK || list.Count != 1 || list.Items[0] != "4" {
		t.Fatalf("online = %d %+v", status, list)
	}
}

func TestAdminEndpoints(t *testing.T) {
	f := newAPI(t)
	_, env := f.do(t, http.MethodPost, "/rooms", "1", "", CreateRoomRequest{Name: "a"})
	var room RoomItem
	_ = json.Unmarshal(env.Data, &room)

	if status, _ := f.do(t, http.MethodGet, "/admin/stats", "1", "user", nil); status != http.StatusForbidden {
		t.Fatalf("user on admin = %d", status)
	}

	if status, _ := f.do(t, http.MethodPost, "/admin/users/1/disconnect", "99", "admin", ReasonRequest{Reason: "test"}); status != http.StatusOK {
		t.Fatalf("disconnect = %d", status)
	}
	status, env := f.do(t, http.MethodPost, "/admin/rooms/reclaim", "99", "admin", nil)
	var rr ReclaimResponse
	_ = json.Unmarshal(env.Data, &rr)
	if status != http.StatusOK || rr.Ended != 1 {
		t.Fatalf("reclaim = %d %+v", status, rr)
	}
	if status, env := f.do(t, http.MethodPost, "/admin/rooms/"+room.PublicToken+"/end", "99", "admin", ReasonRequest{}); status != http.StatusConflict || errCode(env) != "room_ended" {
		t.Fatalf("force end ended = %d %s", status, errCode(env))
	}

	status, env = f.do(t, http.MethodGet, "/admin/stats", "99", "admin", nil)
	var st StatsResponse
	_ = json.Unmarshal(env.Data, &st)
	if status != http.StatusOK || st.ActiveRooms != 0 || st.EndedRooms != 1 || st.MaxActiveRooms != 2 {
		t.Fatalf("stats = %d %+v", status, st)
	}

	status, env = f.do(t, http.MethodGet, "/admin/operations", "99", "admin", nil)
	var ops OperationsResponse
	_ = json.Unmarshal(env.Data, &ops)
	if status != http.StatusOK || len(ops.Items) != 2 || ops.Items[0].Kind != "reclaim_idle_rooms" {
		t.Fatalf("ops = %d %+v", status, ops)
	}

	status, env = f.do(t, http.MethodGet, "/admin/rooms?status=ended", "99", "admin", nil)
	var list RoomsListResponse
	_ = json.Unmarshal(env.Data, &list)
	if status != http.StatusOK || len(list.Items) != 1 || list.Items[0].Status != "ended" {
		t.Fatalf("admin rooms = %d %+v", status, list)
	}
	if status, _ := f.do(t, http.MethodGet, "/admin/rooms?status=bogus", "99", "admin", nil); status != http.StatusBadRequest {
		t.Fatalf("bogus status = %d", status)
	}
}

func TestHealthz(t *testing.T) {
	f := newAPI(t)
	status, _ := f.do(t, http.MethodGet, "/healthz", "", "", nil)
	if status != http.StatusOK {
		t.Fatalf("healthz = %d", status)
	}
}
