package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// routes builds the full route tree.
//
// Reads are public: the registry and ledger are an open record anyone
// may query. Mutations require a bearer token whose subject is the
// acting principal.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(bodyLimitMiddleware)

	r.Get("/health", s.handleHealth)
	r.Post("/auth/token", s.handleIssueToken)
	r.Get("/ws", s.handleWebSocket)

	r.Route("/devices", func(r chi.Router) {
		r.Get("/", s.handleListDevices)
		r.With(s.authMiddleware).Post("/", s.handleRegisterDevice)

		r.Route("/{deviceID}", func(r chi.Router) {
			r.Get("/", s.handleGetDevice)
			r.Get("/exists", s.handleDeviceExists)
			r.Get("/access", s.handleGetAccess)
			r.Get("/subscribers", s.handleListDeviceSubscribers)

			r.Group(func(r chi.Router) {
				r.Use(s.authMiddleware)
				r.Patch("/", s.handleUpdateDevice)
				r.Put("/active", s.handleSetActive)
				r.Post("/access", s.handlePurchaseAccess)
			})
		})
	})

	r.Get("/events", s.handleListEvents)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/subscriptions", s.handleListSubscriptions)
		r.Get("/wallet", s.handleGetWallet)
		r.Post("/wallet/deposit", s.handleDeposit)
	})

	return r
}
