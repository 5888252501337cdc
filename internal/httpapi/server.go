package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"nutriplan/internal/app"
	"nutriplan/internal/auth"
	"nutriplan/internal/catalog"
	"nutriplan/internal/planner"
	"nutriplan/internal/profile"
	"nutriplan/internal/wallet"
	"nutriplan/pkg/logger"
)

type contextKey string

const telegramIDKey contextKey = "telegram_id"

// Server exposes the REST API for the web app.
type Server struct {
	app *app.App
	log *logger.Logger
	mux *http.ServeMux
}

// NewServer builds the API router.
func NewServer(a *app.App, log *logger.Logger) *Server {
	s := &Server{app: a, log: log, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/auth/telegram", s.handleAuth)

	s.mux.Handle("GET /api/profile", s.requireAuth(s.handleGetProfile))
	s.mux.Handle("PUT /api/profile", s.requireAuth(s.handleUpdateProfile))
	s.mux.Handle("GET /api/profile/metrics", s.requireAuth(s.handleProfileMetrics))

	s.mux.Handle("POST /api/plans/generate", s.requireAuth(s.handleGeneratePlan))
	s.mux.Handle("GET /api/plans", s.requireAuth(s.handleListPlans))
	s.mux.Handle("GET /api/plans/{id}", s.requireAuth(s.handleGetPlan))
	s.mux.Handle("PATCH /api/plans/{id}", s.requireAuth(s.handleUpdatePlan))
	s.mux.Handle("PATCH /api/plans/{id}/meals/{mealID}", s.requireAuth(s.handleUpdateMeal))

	s.mux.Handle("GET /api/wallet", s.requireAuth(s.handleWallet))
	s.mux.Handle("POST /api/wallet/topup", s.requireAuth(s.handleTopup))
	s.mux.Handle("POST /api/wallet/withdraw", s.requireAuth(s.handleWithdraw))
	s.mux.Handle("POST /api/orders", s.requireAuth(s.handleCreateOrder))
	s.mux.Handle("GET /api/orders", s.requireAuth(s.handleListOrders))
	s.mux.Handle("POST /api/orders/{id}/pay", s.requireAuth(s.handlePayOrder))
}

// ServeHTTP implements http.Handler with request logging.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.log.Debugw("http request", "method", r.Method, "path", r.URL.Path,
		"duration", time.Since(start))
}

// requireAuth validates the Bearer token and stores the Telegram id in the
// request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		telegramID, err := s.app.Tokens.Parse(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), telegramIDKey, telegramID)
		next(w, r.WithContext(ctx))
	})
}

func telegramID(r *http.Request) int64 {
	id, _ := r.Context().Value(telegramIDKey).(int64)
	return id
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps known domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, planner.ErrPlanNotFound),
		errors.Is(err, planner.ErrMealNotFound),
		errors.Is(err, wallet.ErrOrderNotFound),
		errors.Is(err, catalog.ErrItemNotFound),
		errors.Is(err, profile.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, planner.ErrInvalidStatus),
		errors.Is(err, planner.ErrInvalidQuantity),
		errors.Is(err, planner.ErrItemUnavailable),
		errors.Is(err, wallet.ErrInvalidAmount),
		errors.Is(err, wallet.ErrUnknownCurrency):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, wallet.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, auth.ErrInvalidInitData), errors.Is(err, auth.ErrExpiredInitData):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
