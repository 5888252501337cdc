package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no profile exists for the requested key.
var ErrNotFound = errors.New("profile not found")

// Repository persists user profiles.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a profile repository on top of an open database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const profileColumns = `id, telegram_id, city, sex, birth_date, height_cm, weight_kg,
	body_fat_pct, activity_level, goal, allergies, exclusions, daily_budget,
	stars_balance, calocoin_balance, created_at, updated_at`

// GetByTelegramID loads a profile by its Telegram account id.
func (r *Repository) GetByTelegramID(ctx context.Context, telegramID int64) (*Profile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE telegram_id = ?`, telegramID)
	return scanProfile(row)
}

// GetByID loads a profile by its primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Profile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
	return scanProfile(row)
}

// GetOrCreate returns the profile for telegramID, creating an empty one
// with defaults on first contact.
func (r *Repository) GetOrCreate(ctx context.Context, telegramID int64) (*Profile, error) {
	p, err := r.GetByTelegramID(ctx, telegramID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO profiles (telegram_id, created_at, updated_at) VALUES (?, ?, ?)`,
		telegramID, now, now)
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return r.GetByTelegramID(ctx, telegramID)
}

// Apply patches the profile with the non-nil fields of upd.
func (r *Repository) Apply(ctx context.Context, telegramID int64, upd Update) (*Profile, error) {
	p, err := r.GetOrCreate(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	if upd.City != nil {
		p.City = *upd.City
	}
	if upd.Sex != nil {
		p.Sex = *upd.Sex
	}
	if upd.BirthDate != nil {
		p.BirthDate = upd.BirthDate
	}
	if upd.HeightCm != nil {
		p.HeightCm = *upd.HeightCm
	}
	if upd.WeightKg != nil {
		p.WeightKg = *upd.WeightKg
	}
	if upd.BodyFatPct != nil {
		p.BodyFatPct = upd.BodyFatPct
	}
	if upd.ActivityLevel != nil {
		p.ActivityLevel = *upd.ActivityLevel
	}
	if upd.Goal != nil {
		p.Goal = *upd.Goal
	}
	if upd.Allergies != nil {
		p.Allergies = upd.Allergies
	}
	if upd.Exclusions != nil {
		p.Exclusions = upd.Exclusions
	}
	if upd.DailyBudget != nil {
		p.DailyBudget = upd.DailyBudget
	}

	allergies, err := json.Marshal(orEmpty(p.Allergies))
	if err != nil {
		return nil, err
	}
	exclusions, err := json.Marshal(orEmpty(p.Exclusions))
	if err != nil {
		return nil, err
	}

	var birthDate any
	if p.BirthDate != nil {
		birthDate = p.BirthDate.Format(DateLayout)
	}
	var bodyFat any
	if p.BodyFatPct != nil {
		bodyFat = *p.BodyFatPct
	}
	var budget any
	if p.DailyBudget != nil {
		budget = *p.DailyBudget
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE profiles SET city = ?, sex = ?, birth_date = ?, height_cm = ?,
			weight_kg = ?, body_fat_pct = ?, activity_level = ?, goal = ?,
			allergies = ?, exclusions = ?, daily_budget = ?, updated_at = ?
		WHERE telegram_id = ?`,
		p.City, p.Sex, birthDate, p.HeightCm, p.WeightKg, bodyFat,
		p.ActivityLevel, p.Goal, string(allergies), string(exclusions), budget,
		time.Now().UTC(), telegramID)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return r.GetByTelegramID(ctx, telegramID)
}

func scanProfile(row *sql.Row) (*Profile, error) {
	var (
		p          Profile
		birthDate  sql.NullString
		bodyFat    sql.NullFloat64
		budget     sql.NullInt64
		allergies  string
		exclusions string
	)
	err := row.Scan(&p.ID, &p.TelegramID, &p.City, &p.Sex, &birthDate, &p.HeightCm,
		&p.WeightKg, &bodyFat, &p.ActivityLevel, &p.Goal, &allergies, &exclusions,
		&budget, &p.StarsBalance, &p.CalocoinBalance, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}

	if birthDate.Valid && birthDate.String != "" {
		parsed, err := time.Parse(DateLayout, birthDate.String)
		if err != nil {
			return nil, fmt.Errorf("parse birth date: %w", err)
		}
		p.BirthDate = &parsed
	}
	if bodyFat.Valid {
		p.BodyFatPct = &bodyFat.Float64
	}
	if budget.Valid {
		v := int(budget.Int64)
		p.DailyBudget = &v
	}

	if err := json.Unmarshal([]byte(allergies), &p.Allergies); err != nil {
		return nil, fmt.Errorf("decode allergies: %w", err)
	}
	if err := json.Unmarshal([]byte(exclusions), &p.Exclusions); err != nil {
		return nil, fmt.Errorf("decode exclusions: %w", err)
	}
	return &p, nil
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
