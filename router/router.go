package router

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"inkwell/internal/access"
	"inkwell/internal/auth"
	docHandler "inkwell/internal/document"
	"inkwell/internal/document/repository"
	"inkwell/internal/document/service"
	"inkwell/middleware"
	"inkwell/socket"
)

var startedAt = time.Now()

// Setup wires the repositories, services, hub, and handlers onto one mux.
func Setup(db *sql.DB, verifier *auth.Verifier) http.Handler {
	mux := http.NewServeMux()

	docRepo := repository.NewDocumentRepository(db)
	resolver := access.NewResolver(docRepo)

	hub := socket.NewHub(verifier, resolver)
	docService := service.NewDocumentService(docRepo, resolver, hub)
	hub.Intake = docService

	docs := docHandler.NewHandler(docService)
	authHandler := auth.NewHandler(auth.NewService(db, verifier))
	guard := middleware.Auth(verifier)

	// WebSocket. Connections start unauthenticated; the JOIN message
	// carries the credential, and every later event re-verifies it.
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(hub, w, r)
	})

	// Auth
	mux.Handle("/api/auth/register", http.HandlerFunc(authHandler.Register))
	mux.Handle("/api/auth/login", http.HandlerFunc(authHandler.Login))

	// Documents
	mux.Handle("/api/documents/create", guard(http.HandlerFunc(docs.CreateDocument)))
	mux.Handle("/api/documents/get", guard(http.HandlerFunc(docs.GetDocument)))
	mux.Handle("/api/documents", guard(http.HandlerFunc(docs.GetDocuments)))
	mux.Handle("/api/documents/save", guard(http.HandlerFunc(docs.SaveDocument)))
	mux.Handle("/api/documents/delete", guard(http.HandlerFunc(docs.DeleteDocument)))
	mux.Handle("/api/documents/versions", guard(http.HandlerFunc(docs.GetVersions)))

	// Sharing
	mux.Handle("/api/documents/share", guard(http.HandlerFunc(docs.ShareDocument)))
	mux.Handle("/api/documents/shares", guard(http.HandlerFunc(docs.GetShares)))
	mux.Handle("/api/documents/share/revoke", guard(http.HandlerFunc(docs.RevokeShare)))
	mux.Handle("/api/shared", http.HandlerFunc(docs.GetShared))

	mux.HandleFunc("/api/health", healthHandler)

	return middleware.CORS(mux)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(startedAt).Seconds(),
		"version":   "1.0.0",
	})
}
