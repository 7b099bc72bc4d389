package http

import (
	"net/http"
	"time"

	"github.com/cwrk-planet/roomgate/internal/identity"
	httpmw "github.com/cwrk-planet/roomgate/internal/transport/http/middleware"
	"github.com/cwrk-planet/roomgate/pkg/httputil"
	"github.com/cwrk-planet/roomgate/pkg/logger"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Deps struct {
	Handler        *Handler
	Auth           identity.Authenticator
	Heartbeat      httpmw.HeartbeatToucher
	WS             http.HandlerFunc
	AllowedOrigins []string
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(httputil.MiddlewareRequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(httputil.MiddlewareLogging)
	r.Use(middlewareChi.Recoverer)

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-User-ID", "X-User-Role"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.OK(w, map[string]string{"status": "ok"})
	})

	// WS сам проверяет токен: браузер передаёт его в query
	if d.WS != nil {
		r.Get("/ws", d.WS)
	}

	h := d.Handler
	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.AuthMiddleware(d.Auth))
		if d.Heartbeat != nil {
			pr.Use(httpmw.HeartbeatMiddleware(d.Heartbeat))
		}
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Route("/rooms", func(rm chi.Router) {
			rm.Post("/", h.CreateRoom)
			rm.Get("/", h.ListRooms)

			rm.Route("/{token}", func(rr chi.Router) {
				rr.Use(roomLogContext)
				rr.Get("/", h.GetRoom)
				rr.Post("/join", h.JoinRoom)
				rr.Post("/leave", h.LeaveRoom)
				rr.Post("/end", h.EndRoom)
				rr.Get("/participants", h.ListParticipants)
				rr.Get("/media-token", h.MediaToken)
				rr.Get("/host", h.CheckHost)
				rr.Get("/chat", h.ChatHistory)
			})
		})

		pr.Get("/presence", h.ListOnline)
		pr.Get("/presence/{userID}", h.Presence)

		pr.Route("/admin", func(ar chi.Router) {
			ar.Use(httpmw.RequireAdmin)
			ar.Get("/rooms", h.AdminListRooms)
			ar.Get("/stats", h.AdminStats)
			ar.Get("/operations", h.AdminOperations)
			ar.Post("/users/{userID}/disconnect", h.AdminDisconnectUser)
			ar.Post("/rooms/reclaim", h.AdminReclaim)
			ar.Post("/rooms/{token}/end", h.AdminEndRoom)
		})
	})

	return r
}

// roomLogContext добавляет токен комнаты в поля логгера.
func roomLogContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.WithRoom(r.Context(), chi.URLParam(r, "token"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
