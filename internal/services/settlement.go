package services

import (
	"context"
	"fmt"

	"choose-rich-backend/internal/models"
)

// LedgerAPI is the slice of the balance store the coordinator needs.
type LedgerAPI interface {
	DebitIfAvailable(ctx context.Context, userID string, amount float64) error
	Credit(ctx context.Context, userID string, amount float64) error
	RecordTransaction(ctx context.Context, tx *models.Transaction) error
}

// SessionCache is the slice of the session store the coordinator needs.
type SessionCache interface {
	Get(ctx context.Context, kind models.GameKind, id string, dest any) (int64, error)
	Put(ctx context.Context, kind models.GameKind, id string, session any) error
	PutVersioned(ctx context.Context, kind models.GameKind, id string, expectedVersion int64, session any) (int64, error)
	Remove(ctx context.Context, kind models.GameKind, id string) error
}

// Settlement sequences ledger operations around game transitions so money
// movement and game outcome never diverge: the stake is debited before a
// session becomes visible, and each session's terminal transition is
// claimed exactly once (via the versioned put) before any credit lands.
//
// Ledger failures after a debit are surfaced to the caller without
// automatic rollback.
type Settlement struct {
	ledger   LedgerAPI
	sessions SessionCache
	rng      Rand
	feed     Broadcaster
}

func NewSettlement(ledger LedgerAPI, sessions SessionCache, rng Rand, feed Broadcaster) *Settlement {
	return &Settlement{
		ledger:   ledger,
		sessions: sessions,
		rng:      rng,
		feed:     feed,
	}
}

func (s *Settlement) broadcast(userID string, kind models.GameKind, sessionID string, won bool, payout float64) {
	if s.feed != nil {
		s.feed.BroadcastResult(userID, kind, sessionID, won, payout)
	}
}

func (s *Settlement) recordTransaction(ctx context.Context, userID string, txType models.TransactionType,
	amount float64, kind models.GameKind, sessionID, description string) error {
	return s.ledger.RecordTransaction(ctx, &models.Transaction{
		UserID:      userID,
		Type:        txType,
		Amount:      amount,
		GameKind:    kind,
		SessionID:   sessionID,
		Description: description,
	})
}

// StartMines validates the configuration, debits the stake and persists a
// fresh session. If the debit fails no session ever becomes visible.
func (s *Settlement) StartMines(ctx context.Context, userID string, req *models.MinesStartRequest) (*models.MinesStartResponse, error) {
	session, err := NewMinesSession(req.Stake, req.Blocks, req.Mines, userID, s.rng)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.DebitIfAvailable(ctx, userID, req.Stake); err != nil {
		return nil, err
	}

	if err := s.recordTransaction(ctx, userID, models.TransactionTypeBetLoss, req.Stake,
		models.GameKindMines, session.ID, "Mines game bet"); err != nil {
		return nil, err
	}

	if err := s.sessions.Put(ctx, models.GameKindMines, session.ID, session); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	return &models.MinesStartResponse{
		ID:     session.ID,
		Stake:  session.Stake,
		Blocks: session.Blocks,
		Mines:  session.Mines,
		Status: session.Status,
	}, nil
}

// MoveMines applies one reveal. The versioned put claims the transition;
// a concurrent reveal on the same session loses with ErrConflict.
func (s *Settlement) MoveMines(ctx context.Context, userID string, req *models.MinesMoveRequest) (*models.MinesMoveResponse, error) {
	var session MinesSession
	version, err := s.sessions.Get(ctx, models.GameKindMines, req.ID, &session)
	if err != nil {
		return nil, err
	}

	resp, err := session.Reveal(req.Block, userID)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessions.PutVersioned(ctx, models.GameKindMines, session.ID, version, &session); err != nil {
		return nil, err
	}

	if resp.Status == models.SessionEnded {
		// Mine hit: the stake was already debited at start, nothing to
		// credit. Evict early instead of waiting out the TTL.
		if err := s.sessions.Remove(ctx, models.GameKindMines, session.ID); err != nil {
			return nil, fmt.Errorf("failed to evict session: %w", err)
		}
		s.broadcast(userID, models.GameKindMines, session.ID, false, 0)
	}

	return resp, nil
}

// CashoutMines ends the session at the current multiplier, credits the
// payout and appends the cashout record.
func (s *Settlement) CashoutMines(ctx context.Context, userID string, req *models.MinesCashoutRequest) (*models.MinesCashoutResponse, error) {
	var session MinesSession
	version, err := s.sessions.Get(ctx, models.GameKindMines, req.ID, &session)
	if err != nil {
		return nil, err
	}

	resp, err := session.Cashout(userID)
	if err != nil {
		return nil, err
	}

	// Claim the terminal transition before touching money so a racing
	// request cannot trigger a second credit.
	if _, err := s.sessions.PutVersioned(ctx, models.GameKindMines, session.ID, version, &session); err != nil {
		return nil, err
	}

	if resp.FinalPayout > 0 {
		if err := s.ledger.Credit(ctx, userID, resp.FinalPayout); err != nil {
			return nil, fmt.Errorf("failed to credit winnings: %w", err)
		}
		if err := s.recordTransaction(ctx, userID, models.TransactionTypeCashout, resp.FinalPayout,
			models.GameKindMines, session.ID,
			fmt.Sprintf("Mines game cashout - won %.2f from bet of %.2f", resp.FinalPayout, resp.Stake)); err != nil {
			return nil, err
		}
	}

	if err := s.sessions.Remove(ctx, models.GameKindMines, session.ID); err != nil {
		return nil, fmt.Errorf("failed to evict session: %w", err)
	}

	s.broadcast(userID, models.GameKindMines, session.ID, resp.FinalPayout > 0, resp.FinalPayout)
	return resp, nil
}

// StartApex debits the stake and creates a session. Blind sessions resolve
// immediately: both numbers were drawn before the caller could react, so
// the outcome, credit and records all land in the start request. Choice
// sessions report the odds for every comparison and stay active.
func (s *Settlement) StartApex(ctx context.Context, userID string, req *models.ApexStartRequest) (*models.ApexStartResponse, error) {
	session, err := NewApexSession(req.Stake, req.Mode, userID, s.rng)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.DebitIfAvailable(ctx, userID, req.Stake); err != nil {
		return nil, err
	}

	resp := &models.ApexStartResponse{
		ID:           session.ID,
		Stake:        session.Stake,
		Mode:         session.Mode,
		SystemNumber: session.SystemNumber,
		UserNumber:   session.UserNumber,
	}

	switch session.Mode {
	case models.ApexModeBlind:
		result, err := session.ResolveBlind(userID)
		if err != nil {
			return nil, err
		}

		outcome := models.TransactionTypeBetLoss
		if result.Won {
			outcome = models.TransactionTypeBetWin
		}
		if err := s.recordTransaction(ctx, userID, outcome, req.Stake,
			models.GameKindApex, session.ID, "Apex blind game bet"); err != nil {
			return nil, err
		}

		if result.Won && result.Payout > 0 {
			if err := s.ledger.Credit(ctx, userID, result.Payout); err != nil {
				return nil, fmt.Errorf("failed to credit winnings: %w", err)
			}
			if err := s.recordTransaction(ctx, userID, models.TransactionTypeBetWin, result.Payout,
				models.GameKindApex, session.ID,
				fmt.Sprintf("Apex blind win - %.2f payout", result.Payout)); err != nil {
				return nil, err
			}
		}

		multiplier := BlindPayoutMultiplier()
		resp.BlindPayout = &multiplier
		resp.BlindResult = result
		s.broadcast(userID, models.GameKindApex, session.ID, result.Won, result.Payout)

	case models.ApexModeChoice:
		if err := s.recordTransaction(ctx, userID, models.TransactionTypeBetLoss, req.Stake,
			models.GameKindApex, session.ID, "Apex choice game bet"); err != nil {
			return nil, err
		}

		greater := session.ChoiceOdds(models.ApexChoiceGreater)
		less := session.ChoiceOdds(models.ApexChoiceLess)
		equal := session.ChoiceOdds(models.ApexChoiceEqual)
		resp.Greater = &greater
		resp.Less = &less
		resp.Equal = &equal
	}

	resp.Status = session.Status

	if err := s.sessions.Put(ctx, models.GameKindApex, session.ID, session); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	return resp, nil
}

// ChooseApex resolves a choice-mode session against a fresh draw.
func (s *Settlement) ChooseApex(ctx context.Context, userID string, req *models.ApexChooseRequest) (*models.ApexChooseResponse, error) {
	var session ApexSession
	version, err := s.sessions.Get(ctx, models.GameKindApex, req.ID, &session)
	if err != nil {
		return nil, err
	}

	resp, err := session.ResolveChoice(req.Choice, userID, s.rng)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessions.PutVersioned(ctx, models.GameKindApex, session.ID, version, &session); err != nil {
		return nil, err
	}

	if resp.Won && resp.Payout > 0 {
		if err := s.ledger.Credit(ctx, userID, resp.Payout); err != nil {
			return nil, fmt.Errorf("failed to credit winnings: %w", err)
		}
		if err := s.recordTransaction(ctx, userID, models.TransactionTypeBetWin, resp.Payout,
			models.GameKindApex, session.ID,
			fmt.Sprintf("Apex choice win - %.2f payout from choice %s", resp.Payout, resp.Choice)); err != nil {
			return nil, err
		}
	}

	s.broadcast(userID, models.GameKindApex, session.ID, resp.Won, resp.Payout)
	return resp, nil
}
