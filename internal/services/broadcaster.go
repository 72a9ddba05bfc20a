package services

import "choose-rich-backend/internal/models"

// Broadcaster pushes settled outcomes to the live results feed.
type Broadcaster interface {
	BroadcastResult(userID string, kind models.GameKind, sessionID string, won bool, payout float64)
}
