package router

import (
	"net/http"

	"navidrive/internal/application/session"
	"navidrive/internal/delivery/http/handler"
	"navidrive/internal/delivery/http/middleware"
	"navidrive/internal/infrastructure/logging"
	"navidrive/internal/infrastructure/metrics"
)

// Handlers holds all HTTP handlers
type Handlers struct {
	Drive   *handler.DriveHandler
	Share   *handler.ShareHandler
	Session *handler.SessionHandler
}

// Setup configures all routes for the application. An empty origin list
// allows any origin.
func Setup(handlers Handlers, sessions session.Service, allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()

	// Middleware helpers
	cors := middleware.CORS
	if len(allowedOrigins) > 0 {
		cors = middleware.CORSWithConfig(middleware.CORSConfig{AllowedOrigins: allowedOrigins})
	}
	sessionRequired := middleware.Session(sessions)
	optionalSession := middleware.OptionalSession(sessions)

	// Chain helper
	chain := func(h http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			h = middlewares[i](h)
		}
		return h
	}

	// ==================
	// Drive routes
	// ==================
	mux.HandleFunc("/api/init", cors(handlers.Drive.Init))
	mux.HandleFunc("/api/folder-contents", cors(handlers.Drive.FolderContents))
	mux.HandleFunc("/api/folders", cors(handlers.Drive.Folders))
	mux.HandleFunc("/api/folders/", cors(handlers.Drive.FolderByID))
	mux.HandleFunc("/api/files", cors(handlers.Drive.Files))
	mux.HandleFunc("/api/files/", cors(handlers.Drive.FileByID))
	mux.HandleFunc("/api/upload", cors(handlers.Drive.Upload))
	mux.HandleFunc("/uploads/", cors(handlers.Drive.ServeUpload))

	// ==================
	// Share routes
	// ==================
	mux.HandleFunc("/api/shares", cors(handlers.Share.HandleShares))
	mux.HandleFunc("/api/shares/", cors(handlers.Share.HandleShareByID))
	mux.HandleFunc("/api/s/", cors(handlers.Share.AccessShare))

	// ==================
	// Session routes
	// ==================
	mux.HandleFunc("/api/session", chain(handlers.Session.HandleSession, cors, optionalSession))
	mux.HandleFunc("/api/session/navigate", chain(handlers.Session.Navigate, cors, sessionRequired))
	mux.HandleFunc("/api/session/up", chain(handlers.Session.Up, cors, sessionRequired))
	mux.HandleFunc("/api/session/open", chain(handlers.Session.Open, cors, sessionRequired))
	mux.HandleFunc("/api/session/select", chain(handlers.Session.Select, cors, sessionRequired))
	mux.HandleFunc("/api/session/repair", chain(handlers.Session.Repair, cors, sessionRequired))
	mux.HandleFunc("/api/session/key", chain(handlers.Session.Key, cors, sessionRequired))
	mux.HandleFunc("/api/session/stream", chain(handlers.Session.Stream, cors, sessionRequired))
	mux.HandleFunc("/api/session/terminal", chain(handlers.Session.Terminal, cors, sessionRequired))

	mux.Handle("/metrics", metrics.Handler())

	return logging.Middleware(metrics.Middleware(mux))
}
