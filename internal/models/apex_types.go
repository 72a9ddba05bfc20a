package models

type ApexMode string

const (
	// ApexModeBlind draws both numbers at creation and auto-resolves; the
	// player never sees either number before the outcome is fixed.
	ApexModeBlind ApexMode = "blind"
	// ApexModeChoice lets the player pick a comparison; the comparison
	// number is drawn at resolution time.
	ApexModeChoice ApexMode = "choice"
)

type ApexChoice string

const (
	ApexChoiceGreater ApexChoice = "greater"
	ApexChoiceLess    ApexChoice = "less"
	ApexChoiceEqual   ApexChoice = "equal"
)

type ApexStartRequest struct {
	Stake float64  `json:"stake" binding:"required,gt=0"`
	Mode  ApexMode `json:"mode" binding:"required"`
}

// ChoiceOdds is display-only: the true probability of a comparison holding
// and the house-edge-adjusted payout multiplier if it does.
type ChoiceOdds struct {
	Probability float64 `json:"probability"`
	Payout      float64 `json:"payout"`
}

type ApexBlindResult struct {
	Won    bool    `json:"won"`
	Payout float64 `json:"payout"`
}

type ApexStartResponse struct {
	ID           string   `json:"id"`
	Stake        float64  `json:"stake"`
	Mode         ApexMode `json:"mode"`
	SystemNumber int      `json:"system_number"`
	UserNumber   *int     `json:"user_number,omitempty"`

	// Choice mode: odds for each possible comparison, computed up front.
	Greater *ChoiceOdds `json:"greater,omitempty"`
	Less    *ChoiceOdds `json:"less,omitempty"`
	Equal   *ChoiceOdds `json:"equal,omitempty"`

	// Blind mode: fixed-probability payout multiplier and the auto-resolved
	// outcome.
	BlindPayout *float64         `json:"blind_payout,omitempty"`
	BlindResult *ApexBlindResult `json:"blind_result,omitempty"`

	Status SessionStatus `json:"session_status"`
}

type ApexChooseRequest struct {
	ID     string     `json:"id" binding:"required"`
	Choice ApexChoice `json:"choice" binding:"required"`
}

type ApexChooseResponse struct {
	ID           string        `json:"id"`
	Choice       ApexChoice    `json:"choice"`
	DrawnNumber  int           `json:"drawn_number"`
	SystemNumber int           `json:"system_number"`
	Won          bool          `json:"won"`
	Payout       float64       `json:"payout"`
	Status       SessionStatus `json:"session_status"`
}
