package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"nutriplan/internal/metrics"
	"nutriplan/internal/planner"
	"nutriplan/internal/profile"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"sys":    metrics.GetSysHealth(s.app.Config.DatabasePath),
	})
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InitData string `json:"init_data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.InitData == "" {
		writeError(w, http.StatusBadRequest, "init_data is required")
		return
	}

	token, p, err := s.app.Authenticate(r.Context(), req.InitData)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "profile": p})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.app.Profiles.GetOrCreate(r.Context(), telegramID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type profileRequest struct {
	City          *string  `json:"city"`
	Sex           *string  `json:"sex"`
	BirthDate     *string  `json:"birth_date"`
	HeightCm      *int     `json:"height_cm"`
	WeightKg      *float64 `json:"weight_kg"`
	BodyFatPct    *float64 `json:"body_fat_pct"`
	ActivityLevel *string  `json:"activity_level"`
	Goal          *string  `json:"goal"`
	Allergies     []string `json:"allergies"`
	Exclusions    []string `json:"exclusions"`
	DailyBudget   *int     `json:"daily_budget"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	upd := profile.Update{
		City:          req.City,
		Sex:           req.Sex,
		HeightCm:      req.HeightCm,
		WeightKg:      req.WeightKg,
		BodyFatPct:    req.BodyFatPct,
		ActivityLevel: req.ActivityLevel,
		Goal:          req.Goal,
		Allergies:     req.Allergies,
		Exclusions:    req.Exclusions,
		DailyBudget:   req.DailyBudget,
	}
	if req.BirthDate != nil {
		parsed, err := time.Parse(profile.DateLayout, *req.BirthDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "birth_date must be YYYY-MM-DD")
			return
		}
		upd.BirthDate = &parsed
	}

	p, err := s.app.Profiles.Apply(r.Context(), telegramID(r), upd)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleProfileMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.app.ProfileMetrics(r.Context(), telegramID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed body")
			return
		}
	}
	if req.Date != "" {
		if _, err := time.Parse(profile.DateLayout, req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
	}

	plan, err := s.app.GeneratePlan(r.Context(), telegramID(r), req.Date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	date := r.URL.Query().Get("date")

	plans, err := s.app.ListPlans(r.Context(), telegramID(r), limit, date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if plans == nil {
		plans = []planner.MenuPlan{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": plans})
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	planID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid plan id")
		return
	}
	plan, err := s.app.GetPlan(r.Context(), telegramID(r), planID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	planID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid plan id")
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	plan, err := s.app.UpdatePlanStatus(r.Context(), telegramID(r), planID, req.Status)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleUpdateMeal(w http.ResponseWriter, r *http.Request) {
	planID, okPlan := pathID(r, "id")
	mealID, okMeal := pathID(r, "mealID")
	if !okPlan || !okMeal {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req struct {
		ItemID   *int64   `json:"item_id"`
		Qty      *float64 `json:"qty"`
		TimeHint *string  `json:"time_hint"`
		UserNote *string  `json:"user_note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	plan, err := s.app.UpdatePlanMeal(r.Context(), telegramID(r), planID, mealID, planner.MealPatch{
		ItemID:   req.ItemID,
		Qty:      req.Qty,
		TimeHint: req.TimeHint,
		UserNote: req.UserNote,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	p, err := s.app.Profiles.GetOrCreate(r.Context(), telegramID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	balances, err := s.app.Wallet.Balances(r.Context(), p.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	txs, err := s.app.Wallet.ListTransactions(r.Context(), p.ID, 20)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balances": balances, "transactions": txs})
}

func (s *Server) handleTopup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Currency       string  `json:"currency"`
		Amount         float64 `json:"amount"`
		Description    string  `json:"description"`
		IdempotencyKey string  `json:"idempotency_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	p, err := s.app.Profiles.GetOrCreate(r.Context(), telegramID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	tx, err := s.app.Wallet.Topup(r.Context(), p.ID, req.Currency, req.Amount,
		req.Description, req.IdempotencyKey)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Currency       string  `json:"currency"`
		Amount         float64 `json:"amount"`
		Description    string  `json:"description"`
		IdempotencyKey string  `json:"idempotency_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	p, err := s.app.Profiles.GetOrCreate(r.Context(), telegramID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	tx, err := s.app.Wallet.Withdraw(r.Context(), p.ID, req.Currency, req.Amount,
		req.Description, req.IdempotencyKey)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string  `json:"title"`
		Currency string  `json:"currency"`
		Amount   float64 `json:"amount"`
		PlanID   *int64  `json:"plan_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	p, err := s.app.Profiles.GetOrCreate(r.Context(), telegramID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	order, err := s.app.Wallet.CreateOrder(r.Context(), p.ID, req.PlanID, req.Title,
		req.Currency, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	p, err := s.app.Profiles.GetOrCreate(r.Context(), telegramID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	orders, err := s.app.Wallet.ListOrders(r.Context(), p.ID, 20)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (s *Server) handlePayOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	p, err := s.app.Profiles.GetOrCreate(r.Context(), telegramID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	order, tx, err := s.app.Wallet.PayOrderFromWallet(r.Context(), p.ID, orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order, "transaction": tx})
}
