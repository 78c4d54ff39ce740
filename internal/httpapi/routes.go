package httpapi

import (
	"context"
	"net/http"

	"github.com/DoyleJ11/codeduel-backend/internal/catalog"
	"github.com/DoyleJ11/codeduel-backend/internal/judge"
	"github.com/DoyleJ11/codeduel-backend/internal/match"
	"github.com/DoyleJ11/codeduel-backend/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Rooms is what the HTTP side needs from the coordinator.
type Rooms interface {
	ws.Coordinator
	Room(ctx context.Context, roomID string) (match.Room, error)
}

type Judge interface {
	Grade(ctx context.Context, source string, languageID int, cases []catalog.TestCase) (judge.Verdict, error)
	Execute(ctx context.Context, s judge.Submission) (judge.Result, error)
}

type Deps struct {
	Rooms   Rooms
	Catalog catalog.Catalog
	Judge   Judge // optional
	Logger  *zap.Logger
	// CORSOrigins are full origins ("http://localhost:3000") allowed to call
	// the API and open the socket from a browser.
	CORSOrigins []string
	// OriginPatterns are the same origins as host patterns for the websocket
	// handshake.
	OriginPatterns []string
	Conns          *ws.Tracker // optional
}

func SetupRoutes(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	a := &api{rooms: d.Rooms, catalog: d.Catalog, judge: d.Judge, logger: d.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(d.Rooms, ws.Options{
		OriginPatterns: d.OriginPatterns,
		Logger:         d.Logger,
		Tracker:        d.Conns,
	}))
	r.Get("/rooms/{roomId}", a.getRoom)
	r.Get("/problems/{problemId}", a.getProblem)

	r.Route("/api", func(r chi.Router) {
		r.Post("/submit", a.submit)
		r.Post("/execute", a.execute)
	})
	return r
}
