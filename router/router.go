package router

import (
	"net/http"

	"inkwiki/config"
	docHandler "inkwiki/internal/document"
	"inkwiki/middleware"
	"inkwiki/socket"
)

// Setup wires the TiddlyWeb-compatible routes. Titles may contain slashes
// (e.g. $:/plugins/...), so the title segment is a trailing wildcard.
func Setup(h *docHandler.DocumentHandler, hub *socket.Hub, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	if h.HasTemplate() {
		mux.HandleFunc("GET /{$}", h.RenderWiki)
	}
	mux.HandleFunc("GET /status", h.GetStatus)
	mux.HandleFunc("GET /recipes/default/tiddlers.json", h.AllDocuments)
	mux.HandleFunc("GET /recipes/default/tiddlers/{title...}", h.GetDocument)
	mux.HandleFunc("PUT /recipes/default/tiddlers/{title...}", h.PutDocument)
	mux.HandleFunc("DELETE /bags/default/tiddlers/{title...}", h.DeleteDocument)
	// Old clients ship with this misspelling; keep accepting it.
	mux.HandleFunc("DELETE /bags/efault/tiddlers/{title...}", h.DeleteDocument)
	mux.HandleFunc("GET /api/sign-upload", h.SignUpload)
	mux.HandleFunc("POST /api/inbox", h.Inbox)
	mux.Handle("GET /files/", http.StripPrefix("/files/", http.FileServer(http.Dir(cfg.Server.FilesDir))))
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(hub, w, r)
	})

	return middleware.Auth(cfg.Auth)(mux)
}
