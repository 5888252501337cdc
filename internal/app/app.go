package app

import (
	"context"
	"fmt"
	"time"

	"nutriplan/internal/auth"
	"nutriplan/internal/catalog"
	"nutriplan/internal/config"
	"nutriplan/internal/database"
	"nutriplan/internal/llm"
	"nutriplan/internal/metrics"
	"nutriplan/internal/nutrition"
	"nutriplan/internal/planner"
	"nutriplan/internal/profile"
	"nutriplan/internal/wallet"
	"nutriplan/pkg/logger"
)

// App wires the repositories and services behind the HTTP API and the bot.
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	DB       *database.DB
	Catalog  *catalog.Repository
	Profiles *profile.Repository
	Plans    *planner.Repository
	Wallet   *wallet.Ledger
	Metrics  *metrics.Store
	Tokens   *auth.TokenManager

	composer *planner.MenuComposer
	provider string
	textGen  llm.TextGenerator
}

// New builds the application: opens the database, runs migrations and
// selects the configured text generation provider.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	textGen, err := buildGenerator(ctx, cfg, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return NewWithDeps(cfg, log, db, textGen), nil
}

// NewWithDeps assembles an App from pre-built dependencies. textGen may be
// nil, which disables model planning and leaves the greedy fallback.
func NewWithDeps(cfg *config.Config, log *logger.Logger, db *database.DB, textGen llm.TextGenerator) *App {
	store := metrics.NewStore(db.SQL)
	adapter := planner.NewProviderAdapter(cfg.LLMProvider, textGen, store, log,
		cfg.PromptItemsLimit, cfg.MaxPlanItems)

	return &App{
		Config:   cfg,
		Log:      log,
		DB:       db,
		Catalog:  catalog.NewRepository(db.SQL),
		Profiles: profile.NewRepository(db.SQL),
		Plans:    planner.NewRepository(db.SQL),
		Wallet:   wallet.NewLedger(db.SQL),
		Metrics:  store,
		Tokens:   auth.NewTokenManager(cfg.JWTSecret, 24*time.Hour),
		composer: planner.NewMenuComposer(adapter, log, cfg.MaxPlanItems),
		provider: cfg.LLMProvider,
		textGen:  textGen,
	}
}

func buildGenerator(ctx context.Context, cfg *config.Config, log *logger.Logger) (llm.TextGenerator, error) {
	if !cfg.ProviderConfigured() {
		log.Warnw("llm provider not configured, planning falls back to greedy selection",
			"provider", cfg.LLMProvider)
		return nil, nil
	}
	switch cfg.LLMProvider {
	case "gemini":
		gen, err := llm.NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		return gen, nil
	default:
		return llm.NewOpenAIClient(cfg), nil
	}
}

// Close releases the database and provider resources.
func (a *App) Close() error {
	if closer, ok := a.textGen.(llm.Closer); ok {
		_ = closer.Close()
	}
	return a.DB.Close()
}

// TextGenerator exposes the configured generator for auxiliary tooling
// like the menu scraper. Nil when no provider is configured.
func (a *App) TextGenerator() llm.TextGenerator {
	return a.textGen
}

// Authenticate verifies Telegram WebApp init data and issues an access
// token, creating the profile on first contact.
func (a *App) Authenticate(ctx context.Context, initData string) (string, *profile.Profile, error) {
	user, err := auth.VerifyInitData(initData, a.Config.TelegramBotToken, 24*time.Hour, time.Now())
	if err != nil {
		return "", nil, err
	}
	p, err := a.Profiles.GetOrCreate(ctx, user.ID)
	if err != nil {
		return "", nil, err
	}
	token, err := a.Tokens.Issue(user.ID, time.Now())
	if err != nil {
		return "", nil, err
	}
	return token, p, nil
}

// GeneratePlan composes and stores a day plan for the Telegram account.
// An empty date selects today. The call degrades instead of failing: a
// broken or unconfigured provider still yields a greedy plan, and an
// empty catalogue yields an empty plan.
func (a *App) GeneratePlan(ctx context.Context, telegramID int64, date string) (*planner.MenuPlan, error) {
	p, err := a.Profiles.GetOrCreate(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if date == "" {
		date = time.Now().UTC().Format(profile.DateLayout)
	}

	targets := nutrition.CalculateTargets(p.Sex, p.WeightKg, p.HeightCm, p.BirthDate,
		p.ActivityLevel, p.Goal)

	pool, err := a.Catalog.ListAvailable(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("load catalogue: %w", err)
	}

	pipeline := planner.NewFilterPipeline(a.cityLookup(ctx), a.Config.MenuFilterLimit)
	criteria := planner.Criteria{
		City:       p.City,
		Allergies:  p.Allergies,
		Exclusions: p.Exclusions,
	}
	if p.DailyBudget != nil {
		criteria.Budget = *p.DailyBudget
	}
	shortlist := pipeline.Filter(pool, criteria)

	entries := a.composer.SelectPlan(ctx, shortlist, targets, planner.Restrictions{
		Allergies:  p.Allergies,
		Exclusions: p.Exclusions,
	})

	plan, err := a.Plans.CreatePlan(ctx, p.ID, date, targets, a.provider, entries)
	if err != nil {
		return nil, fmt.Errorf("store plan: %w", err)
	}

	a.Log.Infow("plan generated",
		"telegram_id", telegramID, "plan_id", plan.ID, "meals", len(plan.Meals))
	return plan, nil
}

// cityLookup resolves a city to its active vendors, failing open on
// repository errors.
func (a *App) cityLookup(ctx context.Context) func(city string) map[int64]struct{} {
	return func(city string) map[int64]struct{} {
		ids, err := a.Catalog.ActiveVendorIDs(ctx, city)
		if err != nil {
			a.Log.Warnw("vendor lookup failed, skipping city filter", "city", city, "error", err)
			return nil
		}
		return ids
	}
}

// ListPlans returns stored plans for the account.
func (a *App) ListPlans(ctx context.Context, telegramID int64, limit int, date string) ([]planner.MenuPlan, error) {
	p, err := a.Profiles.GetOrCreate(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	return a.Plans.ListPlans(ctx, p.ID, limit, date)
}

// GetPlan loads one plan owned by the account.
func (a *App) GetPlan(ctx context.Context, telegramID, planID int64) (*planner.MenuPlan, error) {
	p, err := a.Profiles.GetOrCreate(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	return a.Plans.GetPlan(ctx, p.ID, planID)
}

// UpdatePlanStatus moves a plan between statuses.
func (a *App) UpdatePlanStatus(ctx context.Context, telegramID, planID int64, status string) (*planner.MenuPlan, error) {
	p, err := a.Profiles.GetOrCreate(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if err := a.Plans.UpdateStatus(ctx, p.ID, planID, status); err != nil {
		return nil, err
	}
	return a.Plans.GetPlan(ctx, p.ID, planID)
}

// UpdatePlanMeal patches one meal of a plan.
func (a *App) UpdatePlanMeal(ctx context.Context, telegramID, planID, mealID int64, patch planner.MealPatch) (*planner.MenuPlan, error) {
	p, err := a.Profiles.GetOrCreate(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if err := a.Plans.UpdateMeal(ctx, p.ID, planID, mealID, patch); err != nil {
		return nil, err
	}
	return a.Plans.GetPlan(ctx, p.ID, planID)
}

// ProfileMetrics computes the health summary for the account.
func (a *App) ProfileMetrics(ctx context.Context, telegramID int64) (nutrition.ProfileMetrics, error) {
	p, err := a.Profiles.GetOrCreate(ctx, telegramID)
	if err != nil {
		return nutrition.ProfileMetrics{}, err
	}
	return nutrition.BuildProfileMetrics(p.Sex, p.WeightKg, p.HeightCm, p.BirthDate,
		p.ActivityLevel, p.Goal), nil
}
