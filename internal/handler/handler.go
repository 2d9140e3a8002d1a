package handler

import (
	"context"

	"github.com/gigmatch-dev/settlement/backend/internal/config"
	"github.com/gigmatch-dev/settlement/backend/internal/domain"
	"github.com/gigmatch-dev/settlement/backend/internal/idempotency"
	"github.com/gigmatch-dev/settlement/backend/internal/metrics"
	"github.com/gigmatch-dev/settlement/backend/internal/settlement"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type UserStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
}

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	translator  ut.Translator
	users       UserStore
	settlements *settlement.Service
	idempotency *idempotency.Store
	metrics     *metrics.Metrics

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, users UserStore, svc *settlement.Service, idem *idempotency.Store, m *metrics.Metrics) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	en := en.New()
	uni := ut.New(en, en)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:    validate,
		config:      cfg,
		translator:  trans,
		users:       users,
		settlements: svc,
		idempotency: idem,
		metrics:     m,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)
	h.Mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h.Mux.Get("/healthz", h.Healthz)
	h.Mux.Handle("/metrics", promhttp.Handler())

	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	// everything below requires a login
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Use(h.myInfo)
		r.Use(h.preventInactiveUser)

		r.Route("/my-info", func(r chi.Router) {
			r.Get("/", h.GetMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
		})

		r.Route("/schedule-records", func(r chi.Router) {
			r.With(h.RequiredRole([]domain.Role{domain.RoleWorker})).Get("/", h.GetMyScheduleRecords)
			// records are written when an employer accepts an application
			r.With(h.RequiredRole([]domain.Role{domain.RoleEmployer, domain.RoleAdmin})).Post("/", h.CreateScheduleRecord)
		})

		r.Route("/settlements", func(r chi.Router) {
			r.With(h.RequiredRole([]domain.Role{domain.RoleWorker})).Post("/", h.RequestSettlement)
			r.With(h.RequiredRole([]domain.Role{domain.RoleWorker})).Get("/mine", h.GetMySettlements)
			r.With(h.RequiredRole([]domain.Role{domain.RoleWorker})).Get("/summary", h.GetMySettlementSummary)
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Get("/pending", h.GetPendingSettlements)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.settlementRequest)
				r.Get("/", h.GetSettlementRequest)
				r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).With(h.idempotent("approve_settlement")).Post("/approve", h.ApproveSettlementRequest)
			})
		})
	})
}
