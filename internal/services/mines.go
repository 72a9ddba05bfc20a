package services

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"choose-rich-backend/internal/models"
)

// HouseEdge is the fractional cut applied to fair odds on every payout
// multiplier across all games.
const HouseEdge = 0.01

// MinesSession is the grid-reveal state machine. Blocks is the total cell
// count (a perfect square), mine positions are drawn without replacement
// from [1, Blocks]. The multiplier compounds per safe reveal.
type MinesSession struct {
	ID                string                       `json:"id"`
	UserID            string                       `json:"user_id"`
	Stake             float64                      `json:"stake"`
	Blocks            int                          `json:"blocks"`
	Mines             int                          `json:"mines"`
	MinePositions     []int                        `json:"mine_positions"`
	RevealedBlocks    []int                        `json:"revealed_blocks"`
	Actions           map[string]models.MoveAction `json:"actions"`
	CurrentMultiplier float64                      `json:"current_multiplier"`
	Status            models.SessionStatus         `json:"status"`
}

func NewMinesSession(stake float64, blocks, mines int, userID string, rng Rand) (*MinesSession, error) {
	if blocks < 1 || !isPerfectSquare(blocks) {
		return nil, fmt.Errorf("%w: blocks must be a perfect square", models.ErrInvalidConfiguration)
	}
	if mines < 1 || mines >= blocks {
		return nil, fmt.Errorf("%w: mines must be in [1, blocks)", models.ErrInvalidConfiguration)
	}

	// Rejection sampling: keep drawing until we have `mines` distinct
	// positions in [1, blocks].
	positions := make(map[int]struct{}, mines)
	for len(positions) < mines {
		positions[rng.IntN(blocks)+1] = struct{}{}
	}
	minePositions := make([]int, 0, mines)
	for pos := range positions {
		minePositions = append(minePositions, pos)
	}

	return &MinesSession{
		ID:                uuid.New().String(),
		UserID:            userID,
		Stake:             stake,
		Blocks:            blocks,
		Mines:             mines,
		MinePositions:     minePositions,
		RevealedBlocks:    []int{},
		Actions:           make(map[string]models.MoveAction),
		CurrentMultiplier: 1.0,
		Status:            models.SessionActive,
	}, nil
}

func isPerfectSquare(n int) bool {
	root := int(math.Sqrt(float64(n)))
	return root*root == n || (root+1)*(root+1) == n
}

func containsBlock(blocks []int, block int) bool {
	for _, b := range blocks {
		if b == block {
			return true
		}
	}
	return false
}

// Reveal uncovers one block. Hitting a mine ends the session with a final
// payout of 0 and exposes the full mine set; a safe pick advances the
// compounding multiplier.
func (s *MinesSession) Reveal(block int, requester string) (*models.MinesMoveResponse, error) {
	if s.UserID != requester {
		return nil, models.ErrUnauthorized
	}
	if s.Status != models.SessionActive {
		return nil, models.ErrNotActive
	}
	if block < 1 || block > s.Blocks || containsBlock(s.RevealedBlocks, block) {
		return nil, fmt.Errorf("%w: block %d", models.ErrInvalidMove, block)
	}

	s.RevealedBlocks = append(s.RevealedBlocks, block)
	moveKey := fmt.Sprintf("move_%d", len(s.Actions)+1)

	if containsBlock(s.MinePositions, block) {
		s.Status = models.SessionEnded
		s.Actions[moveKey] = models.MoveAction{Block: block, Multiplier: 0, Safe: false}
		finalPayout := 0.0
		return &models.MinesMoveResponse{
			ID:          s.ID,
			Actions:     s.Actions,
			FinalPayout: &finalPayout,
			MineBlocks:  s.MinePositions,
			Status:      s.Status,
		}, nil
	}

	s.CurrentMultiplier = s.multiplier(len(s.RevealedBlocks))
	s.Actions[moveKey] = models.MoveAction{Block: block, Multiplier: s.CurrentMultiplier, Safe: true}

	current := s.CurrentMultiplier
	potential := s.Stake * s.CurrentMultiplier
	return &models.MinesMoveResponse{
		ID:                s.ID,
		Actions:           s.Actions,
		CurrentMultiplier: &current,
		PotentialPayout:   &potential,
		Status:            s.Status,
	}, nil
}

// Cashout ends the session at the current multiplier and exposes the mine
// set post-hoc.
func (s *MinesSession) Cashout(requester string) (*models.MinesCashoutResponse, error) {
	if s.UserID != requester {
		return nil, models.ErrUnauthorized
	}
	if s.Status != models.SessionActive {
		return nil, models.ErrNotActive
	}

	s.Status = models.SessionEnded
	return &models.MinesCashoutResponse{
		ID:          s.ID,
		Stake:       s.Stake,
		FinalPayout: s.Stake * s.CurrentMultiplier,
		Actions:     s.Actions,
		MineBlocks:  s.MinePositions,
		Status:      s.Status,
	}, nil
}

// multiplier is the product over all safe picks so far of the house-edged
// fair odds for that pick: (1-edge) * blocks / (blocks - mines - i). The
// edge compounds per pick, so expected value stays strictly below the stake.
func (s *MinesSession) multiplier(safePicks int) float64 {
	acc := 1.0
	for i := 0; i < safePicks; i++ {
		remaining := s.Blocks - s.Mines - i
		if remaining > 0 {
			acc *= (1 - HouseEdge) * float64(s.Blocks) / float64(remaining)
		}
	}
	return acc
}
