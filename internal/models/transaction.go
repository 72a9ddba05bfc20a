package models

import "time"

type TransactionType string

const (
	TransactionTypeBetLoss TransactionType = "bet_loss"
	TransactionTypeBetWin  TransactionType = "bet_win"
	TransactionTypeCashout TransactionType = "cashout"
)

// Transaction is an immutable record of one balance-affecting event. Every
// ledger debit or credit is paired with exactly one of these.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Type        TransactionType `json:"type"`
	Amount      float64         `json:"amount"`
	GameKind    GameKind        `json:"game_kind,omitempty"`
	SessionID   string          `json:"session_id,omitempty"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}
