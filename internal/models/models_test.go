package models_test

import (
	"encoding/json"
	"errors"
	"testing"

	"choose-rich-backend/internal/models"
)

func TestSentinelErrorsAreDistinct(t *testing.T) {
	sentinels := []error{
		models.ErrInvalidConfiguration,
		models.ErrInvalidMove,
		models.ErrUnauthorized,
		models.ErrNotActive,
		models.ErrInsufficientFunds,
		models.ErrSessionNotFound,
		models.ErrConflict,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel %v should not match %v", a, b)
			}
		}
	}
}

func TestMoveActionJSONShape(t *testing.T) {
	action := models.MoveAction{Block: 7, Multiplier: 1.2375, Safe: true}

	data, err := json.Marshal(action)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"block", "multiplier", "safe"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("expected key %q in %s", key, data)
		}
	}
}

func TestOptionalMoveResponseFieldsOmitted(t *testing.T) {
	resp := models.MinesMoveResponse{
		ID:      "abc",
		Actions: map[string]models.MoveAction{},
		Status:  models.SessionActive,
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"final_payout", "mine_blocks", "current_multiplier", "potential_payout"} {
		if _, ok := decoded[key]; ok {
			t.Errorf("unset field %q must be omitted, got %s", key, data)
		}
	}
}
