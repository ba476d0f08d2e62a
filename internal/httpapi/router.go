package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.logger))

	r.Get("/health", h.Health)

	r.Route("/api/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Get("/totals", h.GetTotals)

		r.Post("/items", h.AddItem)
		r.Put("/items/{key}/quantity", h.SetQuantity)
		r.Delete("/items/{key}", h.RemoveItem)

		r.Put("/selection", h.SetSelection)
		r.Post("/selection/{key}/toggle", h.ToggleSelection)
	})

	r.Route("/api/reorder", func(r chi.Router) {
		r.Get("/", h.GetReorder)
		r.Put("/", h.StageReorder)
		r.Delete("/", h.DiscardReorder)
		r.Post("/merge", h.MergeReorder)

		r.Put("/items/{key}", h.SetReorderQuantity)
		r.Delete("/items/{key}", h.RemoveReorderItem)
	})

	r.Route("/api/checkout", func(r chi.Router) {
		r.Post("/", h.StartCheckout)
		r.Get("/", h.PeekCheckout)
		r.Post("/consume", h.ConsumeCheckout)
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
