package telegram

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Wizard states stored in bot_sessions.
const (
	StateAskSex      = "ask_sex"
	StateAskHeight   = "ask_height"
	StateAskWeight   = "ask_weight"
	StateAskActivity = "ask_activity"
	StateAskGoal     = "ask_goal"
)

const defaultSessionTTL = 15 * time.Minute

// Session is a short-lived conversation state, one active per user.
type Session struct {
	ID         int64
	TelegramID int64
	State      string
	Data       SessionData
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// SessionData is the structured payload of the context_data column.
type SessionData struct {
	MessageID int   `json:"message_id,omitempty"`
	PlanID    int64 `json:"plan_id,omitempty"`
}

// SessionRepository persists bot conversation state in sqlite.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Start replaces any previous session for the user and opens a new one.
func (r *SessionRepository) Start(ctx context.Context, telegramID int64, state string, data SessionData) (int64, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return 0, err
	}
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM bot_sessions WHERE telegram_id = ?`, telegramID); err != nil {
		return 0, fmt.Errorf("clear previous session: %w", err)
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO bot_sessions (telegram_id, state, context_data, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		telegramID, state, string(raw), now.Add(defaultSessionTTL), now)
	if err != nil {
		return 0, fmt.Errorf("create session: %w", err)
	}
	return res.LastInsertId()
}

// GetActive returns the current non-expired session, or nil when the user
// has none.
func (r *SessionRepository) GetActive(ctx context.Context, telegramID int64, now time.Time) (*Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, telegram_id, state, context_data, expires_at, created_at
		 FROM bot_sessions
		 WHERE telegram_id = ? AND expires_at > ?
		 ORDER BY id DESC LIMIT 1`,
		telegramID, now.UTC())

	var s Session
	var raw string
	err := row.Scan(&s.ID, &s.TelegramID, &s.State, &raw, &s.ExpiresAt, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &s.Data); err != nil {
		return nil, fmt.Errorf("decode session data: %w", err)
	}
	return &s, nil
}

// Advance moves the session to the next state and refreshes its TTL.
func (r *SessionRepository) Advance(ctx context.Context, sessionID int64, state string, data SessionData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE bot_sessions SET state = ?, context_data = ?, expires_at = ? WHERE id = ?`,
		state, string(raw), time.Now().UTC().Add(defaultSessionTTL), sessionID)
	return err
}

func (r *SessionRepository) Delete(ctx context.Context, sessionID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM bot_sessions WHERE id = ?`, sessionID)
	return err
}

// CleanupExpired drops stale sessions, returning how many were removed.
func (r *SessionRepository) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM bot_sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
