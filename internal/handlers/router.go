package handlers

import (
	"log/slog"
	"net/http"

	"bookkeeping/internal/config"
	"bookkeeping/internal/db"
	"bookkeeping/internal/metrics"
	"bookkeeping/internal/middleware"
	"bookkeeping/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	txRunner db.TxRunner
	cfg      config.Config
	users    UserStore
	audit    AuditStore
	ledger   LedgerService
	hub      *websocket.Hub
	logger   *slog.Logger
}

func New(txRunner db.TxRunner, cfg config.Config, users UserStore, audit AuditStore, ledger LedgerService, hub *websocket.Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		txRunner: txRunner,
		cfg:      cfg,
		users:    users,
		audit:    audit,
		ledger:   ledger,
		hub:      hub,
		logger:   logger,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.RequestLogger(h.logger))
	router.Use(middleware.Recoverer(h.logger))
	router.Use(metrics.Middleware)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(middleware.Auth(h.cfg.JWTSecret)).Get("/me", h.Me)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Put("/me/company", h.SetCompany)
		r.Get("/audit", h.ListAudit)

		r.Get("/parties", h.ListParties)
		r.Post("/parties", h.CreateParty)
		r.Put("/parties/{id}", h.UpdateParty)
		r.Delete("/parties/{id}", h.DeleteParty)
		r.Post("/parties/{id}/rename", h.RenameParty)
		r.Get("/parties/{name}/ledger", h.PartyLedger)
		r.Get("/parties/{name}/settlements", h.ListSettlements)
		r.Post("/parties/{name}/recalculate", h.Recalculate)

		r.Post("/entries", h.AddEntry)
		r.Put("/entries/{id}", h.UpdateEntry)
		r.Delete("/entries/{id}", h.DeleteEntry)

		r.Post("/settlements", h.Settle)
		r.Delete("/settlements/{id}", h.Unsettle)

		r.Get("/trial-balance", h.TrialBalance)
		r.Get("/self-check", h.SelfCheck)
	})
	router.Get("/ws/ledger", h.WSLedger)
	router.Handle("/metrics", metrics.Handler())

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
