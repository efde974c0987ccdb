package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"tenant-migration-service/internal/middleware"
)

// NewRouter はルーターを生成する。
func NewRouter(h *StatusHandler) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger)

	// ルート定義
	r.Get("/healthz", h.Healthz)
	r.Route("/v1/migrations", func(r chi.Router) {
		r.Get("/status", h.GetStatus)
	})

	return r
}
