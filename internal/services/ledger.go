package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"choose-rich-backend/internal/models"
)

// StartingBalance is credited to every new account so players can bet
// without an external deposit.
const StartingBalance = 1000.0

// Ledger is the persistent balance store. Debits are a single conditional
// decrement so two concurrent session starts can never both pass a balance
// check before either debit lands.
type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(ctx context.Context, databaseURL string) (*Ledger, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	poolConfig.MaxConns = 25
	poolConfig.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	ledger := &Ledger{pool: pool}
	if err := ledger.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return ledger, nil
}

func (l *Ledger) Close() {
	l.pool.Close()
}

func (l *Ledger) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		in_game_balance NUMERIC(20, 8) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS game_transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		transaction_type TEXT NOT NULL,
		amount NUMERIC(20, 8) NOT NULL,
		game_kind TEXT,
		game_session_id TEXT,
		description TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_game_transactions_user_id
		ON game_transactions(user_id, created_at DESC);
	`

	if _, err := l.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

func (l *Ledger) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		Balance:      StartingBalance,
	}

	row := l.pool.QueryRow(ctx, `
		INSERT INTO users (id, username, password_hash, in_game_balance)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		user.ID, user.Username, user.PasswordHash, decimal.NewFromFloat(StartingBalance))
	if err := row.Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (l *Ledger) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return l.getUser(ctx, "username = $1", username)
}

func (l *Ledger) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return l.getUser(ctx, "id = $1", id)
}

func (l *Ledger) getUser(ctx context.Context, where, arg string) (*models.User, error) {
	var user models.User
	row := l.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, in_game_balance, created_at, updated_at
		FROM users WHERE `+where, arg)
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash,
		&user.Balance, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// DebitIfAvailable atomically decrements the balance, failing with
// ErrInsufficientFunds when it would go negative. Check and decrement are
// one statement; there is no read-then-write window.
func (l *Ledger) DebitIfAvailable(ctx context.Context, userID string, amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("debit amount must be positive, got %f", amount)
	}

	tag, err := l.pool.Exec(ctx, `
		UPDATE users
		SET in_game_balance = in_game_balance - $2, updated_at = NOW()
		WHERE id = $1 AND in_game_balance >= $2`,
		userID, decimal.NewFromFloat(amount))
	if err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := l.GetUserByID(ctx, userID); err != nil {
			return err
		}
		return models.ErrInsufficientFunds
	}
	return nil
}

func (l *Ledger) Credit(ctx context.Context, userID string, amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %f", amount)
	}

	tag, err := l.pool.Exec(ctx, `
		UPDATE users
		SET in_game_balance = in_game_balance + $2, updated_at = NOW()
		WHERE id = $1`,
		userID, decimal.NewFromFloat(amount))
	if err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}

func (l *Ledger) Balance(ctx context.Context, userID string) (float64, error) {
	user, err := l.GetUserByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}

func (l *Ledger) RecordTransaction(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	_, err := l.pool.Exec(ctx, `
		INSERT INTO game_transactions
			(id, user_id, transaction_type, amount, game_kind, game_session_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		tx.ID, tx.UserID, string(tx.Type), decimal.NewFromFloat(tx.Amount),
		string(tx.GameKind), tx.SessionID, tx.Description, tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}

func (l *Ledger) Transactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := l.pool.Query(ctx, `
		SELECT id, user_id, transaction_type, amount, game_kind, game_session_id, description, created_at
		FROM game_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Type, &tx.Amount,
			&tx.GameKind, &tx.SessionID, &tx.Description, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}
