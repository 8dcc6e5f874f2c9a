package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter mounts the API routes behind the given middleware chain.
func NewRouter(h *Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(mws...)

	r.Get("/healthz", h.Health)

	r.Get("/courses", h.ListCourses)
	r.Route("/courses/{courseID}", func(r chi.Router) {
		r.Get("/", h.GetCourse)
		r.Get("/blocks", h.GetCourseBlocks)

		r.Route("/content/{blockID}", func(r chi.Router) {
			r.Get("/", h.GetContent)
			r.Get("/next", h.NextContent)
			r.Get("/{subBlockID}", h.GetContent)
			r.Get("/{subBlockID}/next", h.NextContent)
		})
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/checkout/{courseID}", h.Checkout)
		r.Post("/checkout/{courseID}", h.Checkout)

		// the webhook answers 405 itself
		r.HandleFunc("/yookassa/webhook", h.Webhook.PaymentWebhookHandler)
		r.Get("/yookassa/success", h.PaymentReturn)
		r.Get("/yookassa/cancel", h.PaymentReturn)
	})

	return r
}
