package services

import (
	"fmt"

	"github.com/google/uuid"

	"choose-rich-backend/internal/models"
)

// blindWinProbability is a fixed property of the blind rule (win iff the
// user's draw strictly beats the system's; a tie loses), not a function of
// the drawn system number.
const blindWinProbability = 0.45

// ApexSession is the single-draw number-comparison state machine. Both
// numbers live in [0, 9]. Blind mode draws the user number at creation and
// auto-resolves; choice mode draws it when the player commits a comparison.
type ApexSession struct {
	ID           string               `json:"id"`
	UserID       string               `json:"user_id"`
	Stake        float64              `json:"stake"`
	Mode         models.ApexMode      `json:"mode"`
	SystemNumber int                  `json:"system_number"`
	UserNumber   *int                 `json:"user_number,omitempty"`
	Status       models.SessionStatus `json:"status"`
}

func NewApexSession(stake float64, mode models.ApexMode, userID string, rng Rand) (*ApexSession, error) {
	if mode != models.ApexModeBlind && mode != models.ApexModeChoice {
		return nil, fmt.Errorf("%w: unknown mode %q", models.ErrInvalidConfiguration, mode)
	}

	session := &ApexSession{
		ID:           uuid.New().String(),
		UserID:       userID,
		Stake:        stake,
		Mode:         mode,
		SystemNumber: rng.IntN(10),
		Status:       models.SessionActive,
	}
	if mode == models.ApexModeBlind {
		n := rng.IntN(10)
		session.UserNumber = &n
	}
	return session, nil
}

// ChoiceOdds reports the true probability of a comparison against the
// system number holding for a fresh 0-9 draw, and the house-edge-adjusted
// payout multiplier. Display-only; never mutates state.
func (s *ApexSession) ChoiceOdds(choice models.ApexChoice) models.ChoiceOdds {
	var probability float64
	switch choice {
	case models.ApexChoiceGreater:
		probability = float64(9-s.SystemNumber) / 10.0
	case models.ApexChoiceLess:
		probability = float64(s.SystemNumber) / 10.0
	case models.ApexChoiceEqual:
		probability = 1.0 / 10.0
	}

	payout := 0.0
	if probability > 0 {
		payout = (1 - HouseEdge) / probability
	}
	return models.ChoiceOdds{Probability: probability, Payout: payout}
}

// BlindPayoutMultiplier is the fixed multiplier paid on a blind win.
func BlindPayoutMultiplier() float64 {
	return (1 - HouseEdge) / blindWinProbability
}

// ResolveBlind settles a blind session against the numbers drawn at
// creation. A draw counts as a system win.
func (s *ApexSession) ResolveBlind(requester string) (*models.ApexBlindResult, error) {
	if s.UserID != requester {
		return nil, models.ErrUnauthorized
	}
	if s.Status != models.SessionActive {
		return nil, models.ErrNotActive
	}
	if s.Mode != models.ApexModeBlind {
		return nil, fmt.Errorf("%w: not a blind session", models.ErrInvalidMove)
	}

	s.Status = models.SessionEnded
	won := *s.UserNumber > s.SystemNumber
	payout := 0.0
	if won {
		payout = s.Stake * BlindPayoutMultiplier()
	}
	return &models.ApexBlindResult{Won: won, Payout: payout}, nil
}

// ResolveChoice settles a choice session by drawing a fresh comparison
// number and testing it against the system number per the chosen rule.
func (s *ApexSession) ResolveChoice(choice models.ApexChoice, requester string, rng Rand) (*models.ApexChooseResponse, error) {
	if s.UserID != requester {
		return nil, models.ErrUnauthorized
	}
	if s.Status != models.SessionActive {
		return nil, models.ErrNotActive
	}
	if s.Mode != models.ApexModeChoice {
		return nil, fmt.Errorf("%w: cannot choose in blind mode", models.ErrInvalidMove)
	}
	switch choice {
	case models.ApexChoiceGreater, models.ApexChoiceLess, models.ApexChoiceEqual:
	default:
		return nil, fmt.Errorf("%w: unknown choice %q", models.ErrInvalidMove, choice)
	}

	s.Status = models.SessionEnded
	drawn := rng.IntN(10)
	odds := s.ChoiceOdds(choice)

	var won bool
	switch choice {
	case models.ApexChoiceGreater:
		won = drawn > s.SystemNumber
	case models.ApexChoiceLess:
		won = drawn < s.SystemNumber
	case models.ApexChoiceEqual:
		won = drawn == s.SystemNumber
	}

	payout := 0.0
	if won {
		payout = s.Stake * odds.Payout
	}
	return &models.ApexChooseResponse{
		ID:           s.ID,
		Choice:       choice,
		DrawnNumber:  drawn,
		SystemNumber: s.SystemNumber,
		Won:          won,
		Payout:       payout,
		Status:       s.Status,
	}, nil
}
