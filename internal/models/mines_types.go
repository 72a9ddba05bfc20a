package models

// MoveAction is the record of a single reveal. Actions accumulate on the
// session in call order under "move_1", "move_2", ... keys and are never
// removed. A mine hit is logged with multiplier 0 and Safe=false.
type MoveAction struct {
	Block      int     `json:"block"`
	Multiplier float64 `json:"multiplier"`
	Safe       bool    `json:"safe"`
}

type MinesStartRequest struct {
	Stake  float64 `json:"stake" binding:"required,gt=0"`
	Blocks int     `json:"blocks" binding:"required"`
	Mines  int     `json:"mines" binding:"required"`
}

type MinesStartResponse struct {
	ID     string        `json:"id"`
	Stake  float64       `json:"stake"`
	Blocks int           `json:"blocks"`
	Mines  int           `json:"mines"`
	Status SessionStatus `json:"session_status"`
}

type MinesMoveRequest struct {
	ID    string `json:"id" binding:"required"`
	Block int    `json:"block" binding:"required"`
}

type MinesMoveResponse struct {
	ID                string                `json:"id"`
	Actions           map[string]MoveAction `json:"actions"`
	CurrentMultiplier *float64              `json:"current_multiplier,omitempty"`
	PotentialPayout   *float64              `json:"potential_payout,omitempty"`
	FinalPayout       *float64              `json:"final_payout,omitempty"`
	MineBlocks        []int                 `json:"mine_blocks,omitempty"`
	Status            SessionStatus         `json:"session_status"`
}

type MinesCashoutRequest struct {
	ID string `json:"id" binding:"required"`
}

type MinesCashoutResponse struct {
	ID          string                `json:"id"`
	Stake       float64               `json:"stake"`
	FinalPayout float64               `json:"final_payout"`
	Actions     map[string]MoveAction `json:"actions"`
	MineBlocks  []int                 `json:"mine_blocks"`
	Status      SessionStatus         `json:"session_status"`
}
