package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"choose-rich-backend/internal/models"
	"choose-rich-backend/internal/services"
)

type fakeLedger struct {
	balances     map[string]float64
	transactions []models.Transaction
	failDebit    bool
	failCredit   bool
}

func newFakeLedger(userID string, balance float64) *fakeLedger {
	return &fakeLedger{balances: map[string]float64{userID: balance}}
}

func (l *fakeLedger) DebitIfAvailable(_ context.Context, userID string, amount float64) error {
	if l.failDebit {
		return errors.New("ledger unavailable")
	}
	if l.balances[userID] < amount {
		return models.ErrInsufficientFunds
	}
	l.balances[userID] -= amount
	return nil
}

func (l *fakeLedger) Credit(_ context.Context, userID string, amount float64) error {
	if l.failCredit {
		return errors.New("ledger unavailable")
	}
	l.balances[userID] += amount
	return nil
}

func (l *fakeLedger) RecordTransaction(_ context.Context, tx *models.Transaction) error {
	l.transactions = append(l.transactions, *tx)
	return nil
}

type memEntry struct {
	kind    models.GameKind
	version int64
	payload []byte
}

type memSessionStore struct {
	entries       map[string]memEntry
	forceConflict bool
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{entries: make(map[string]memEntry)}
}

func storeKey(kind models.GameKind, id string) string {
	return fmt.Sprintf("%s/%s", kind, id)
}

func (s *memSessionStore) Get(_ context.Context, kind models.GameKind, id string, dest any) (int64, error) {
	entry, ok := s.entries[storeKey(kind, id)]
	if !ok || entry.kind != kind {
		return 0, models.ErrSessionNotFound
	}
	if err := json.Unmarshal(entry.payload, dest); err != nil {
		return 0, err
	}
	return entry.version, nil
}

func (s *memSessionStore) Put(_ context.Context, kind models.GameKind, id string, session any) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	s.entries[storeKey(kind, id)] = memEntry{kind: kind, version: 1, payload: payload}
	return nil
}

func (s *memSessionStore) PutVersioned(_ context.Context, kind models.GameKind, id string, expectedVersion int64, session any) (int64, error) {
	if s.forceConflict {
		return 0, models.ErrConflict
	}
	entry, ok := s.entries[storeKey(kind, id)]
	if !ok {
		return 0, models.ErrSessionNotFound
	}
	if entry.version != expectedVersion {
		return 0, models.ErrConflict
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return 0, err
	}
	entry.version++
	entry.payload = payload
	s.entries[storeKey(kind, id)] = entry
	return entry.version, nil
}

func (s *memSessionStore) Remove(_ context.Context, kind models.GameKind, id string) error {
	delete(s.entries, storeKey(kind, id))
	return nil
}

func TestStartMinesDebitFailureCreatesNoSession(t *testing.T) {
	ledger := newFakeLedger("user-1", 5)
	store := newMemSessionStore()
	settlement := services.NewSettlement(ledger, store, minesAt(25, 21, 22, 23, 24, 25), nil)

	_, err := settlement.StartMines(context.Background(), "user-1", &models.MinesStartRequest{
		Stake: 100, Blocks: 25, Mines: 5,
	})
	if !errors.Is(err, models.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	if len(store.entries) != 0 {
		t.Error("no session may be created when the debit fails")
	}
	if len(ledger.transactions) != 0 {
		t.Error("no transaction may be recorded when the debit fails")
	}
	if ledger.balances["user-1"] != 5 {
		t.Errorf("balance must be unchanged, got %v", ledger.balances["user-1"])
	}
}

func TestStartMinesInvalidConfigLeavesBalanceUntouched(t *testing.T) {
	ledger := newFakeLedger("user-1", 500)
	store := newMemSessionStore()
	settlement := services.NewSettlement(ledger, store, minesAt(25, 21, 22, 23, 24, 25), nil)

	_, err := settlement.StartMines(context.Background(), "user-1", &models.MinesStartRequest{
		Stake: 100, Blocks: 24, Mines: 5,
	})
	if !errors.Is(err, models.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
	if ledger.balances["user-1"] != 500 {
		t.Errorf("balance must be unchanged, got %v", ledger.balances["user-1"])
	}
}

func TestMinesFullRoundCashout(t *testing.T) {
	ledger := newFakeLedger("user-1", 500)
	store := newMemSessionStore()
	settlement := services.NewSettlement(ledger, store, minesAt(25, 21, 22, 23, 24, 25), nil)
	ctx := context.Background()

	start, err := settlement.StartMines(ctx, "user-1", &models.MinesStartRequest{
		Stake: 100, Blocks: 25, Mines: 5,
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if ledger.balances["user-1"] != 400 {
		t.Errorf("expected balance 400 after debit, got %v", ledger.balances["user-1"])
	}
	if len(ledger.transactions) != 1 || ledger.transactions[0].Type != models.TransactionTypeBetLoss {
		t.Fatalf("expected one bet_loss transaction, got %+v", ledger.transactions)
	}

	move, err := settlement.MoveMines(ctx, "user-1", &models.MinesMoveRequest{ID: start.ID, Block: 1})
	if err != nil {
		t.Fatalf("move failed: %v", err)
	}
	if move.Status != models.SessionActive {
		t.Fatalf("expected active session after safe reveal, got %s", move.Status)
	}

	cashout, err := settlement.CashoutMines(ctx, "user-1", &models.MinesCashoutRequest{ID: start.ID})
	if err != nil {
		t.Fatalf("cashout failed: %v", err)
	}
	if math.Abs(cashout.FinalPayout-123.75) > 1e-9 {
		t.Errorf("expected payout 123.75, got %v", cashout.FinalPayout)
	}
	if math.Abs(ledger.balances["user-1"]-523.75) > 1e-9 {
		t.Errorf("expected balance 523.75 after credit, got %v", ledger.balances["user-1"])
	}

	if len(ledger.transactions) != 2 {
		t.Fatalf("expected bet and cashout transactions, got %d", len(ledger.transactions))
	}
	win := ledger.transactions[1]
	if win.Type != models.TransactionTypeCashout || math.Abs(win.Amount-123.75) > 1e-9 {
		t.Errorf("unexpected cashout transaction: %+v", win)
	}
	if win.SessionID != start.ID || win.GameKind != models.GameKindMines {
		t.Errorf("cashout transaction missing session linkage: %+v", win)
	}

	if len(store.entries) != 0 {
		t.Error("cashed-out session must be evicted")
	}

	// A second settlement attempt finds no session.
	if _, err := settlement.CashoutMines(ctx, "user-1", &models.MinesCashoutRequest{ID: start.ID}); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after eviction, got %v", err)
	}
}

func TestMinesMineHitSettlesAsLoss(t *testing.T) {
	ledger := newFakeLedger("user-1", 500)
	store := newMemSessionStore()
	settlement := services.NewSettlement(ledger, store, minesAt(25, 21, 22, 23, 24, 25), nil)
	ctx := context.Background()

	start, err := settlement.StartMines(ctx, "user-1", &models.MinesStartRequest{
		Stake: 100, Blocks: 25, Mines: 5,
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	move, err := settlement.MoveMines(ctx, "user-1", &models.MinesMoveRequest{ID: start.ID, Block: 21})
	if err != nil {
		t.Fatalf("move failed: %v", err)
	}
	if move.Status != models.SessionEnded || *move.FinalPayout != 0 {
		t.Fatalf("expected ended session with payout 0, got %+v", move)
	}

	if ledger.balances["user-1"] != 400 {
		t.Errorf("no credit on a loss: expected balance 400, got %v", ledger.balances["user-1"])
	}
	if len(ledger.transactions) != 1 {
		t.Errorf("expected only the bet transaction, got %d", len(ledger.transactions))
	}
	if len(store.entries) != 0 {
		t.Error("busted session must be evicted")
	}
}

func TestMinesConflictBlocksCredit(t *testing.T) {
	ledger := newFakeLedger("user-1", 500)
	store := newMemSessionStore()
	settlement := services.NewSettlement(ledger, store, minesAt(25, 21, 22, 23, 24, 25), nil)
	ctx := context.Background()

	start, err := settlement.StartMines(ctx, "user-1", &models.MinesStartRequest{
		Stake: 100, Blocks: 25, Mines: 5,
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// A concurrent transition bumped the stored version between this
	// request's read and write.
	store.forceConflict = true
	if _, err := settlement.CashoutMines(ctx, "user-1", &models.MinesCashoutRequest{ID: start.ID}); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	if ledger.balances["user-1"] != 400 {
		t.Errorf("no credit may land on a conflicted transition, got balance %v", ledger.balances["user-1"])
	}
	if len(ledger.transactions) != 1 {
		t.Errorf("expected only the bet transaction, got %d", len(ledger.transactions))
	}
}

func TestMinesCashoutCreditFailureCannotDoubleSettle(t *testing.T) {
	ledger := newFakeLedger("user-1", 500)
	store := newMemSessionStore()
	settlement := services.NewSettlement(ledger, store, minesAt(25, 21, 22, 23, 24, 25), nil)
	ctx := context.Background()

	start, err := settlement.StartMines(ctx, "user-1", &models.MinesStartRequest{
		Stake: 100, Blocks: 25, Mines: 5,
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	ledger.failCredit = true
	if _, err := settlement.CashoutMines(ctx, "user-1", &models.MinesCashoutRequest{ID: start.ID}); err == nil {
		t.Fatal("expected the ledger failure to surface")
	}
	if ledger.balances["user-1"] != 400 {
		t.Errorf("no credit may land when the ledger fails, got balance %v", ledger.balances["user-1"])
	}
	if len(ledger.transactions) != 1 {
		t.Fatalf("expected only the bet transaction, got %d", len(ledger.transactions))
	}

	// The versioned put already claimed the terminal transition, so a
	// retry against a recovered ledger cannot pay out.
	ledger.failCredit = false
	if _, err := settlement.CashoutMines(ctx, "user-1", &models.MinesCashoutRequest{ID: start.ID}); !errors.Is(err, models.ErrNotActive) {
		t.Errorf("expected ErrNotActive on retry, got %v", err)
	}
	if ledger.balances["user-1"] != 400 {
		t.Errorf("retry must not credit, got balance %v", ledger.balances["user-1"])
	}
	if len(ledger.transactions) != 1 {
		t.Errorf("retry must not record transactions, got %d", len(ledger.transactions))
	}
}

func TestApexChooseCreditFailureCannotDoubleSettle(t *testing.T) {
	ledger := newFakeLedger("user-1", 500)
	store := newMemSessionStore()
	settlement := services.NewSettlement(ledger, store, &seqRand{values: []int{3, 7}}, nil)
	ctx := context.Background()

	start, err := settlement.StartApex(ctx, "user-1", &models.ApexStartRequest{
		Stake: 100, Mode: models.ApexModeChoice,
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	ledger.failCredit = true
	if _, err := settlement.ChooseApex(ctx, "user-1", &models.ApexChooseRequest{
		ID: start.ID, Choice: models.ApexChoiceGreater,
	}); err == nil {
		t.Fatal("expected the ledger failure to surface")
	}
	if ledger.balances["user-1"] != 400 {
		t.Errorf("no credit may land when the ledger fails, got balance %v", ledger.balances["user-1"])
	}

	ledger.failCredit = false
	if _, err := settlement.ChooseApex(ctx, "user-1", &models.ApexChooseRequest{
		ID: start.ID, Choice: models.ApexChoiceGreater,
	}); !errors.Is(err, models.ErrNotActive) {
		t.Errorf("expected ErrNotActive on retry, got %v", err)
	}
	if ledger.balances["user-1"] != 400 {
		t.Errorf("retry must not credit, got balance %v", ledger.balances["user-1"])
	}
	if len(ledger.transactions) != 1 {
		t.Errorf("expected only the bet transaction, got %d", len(ledger.transactions))
	}
}

func TestApexBlindCreditFailureSurfaces(t *testing.T) {
	ledger := newFakeLedger("user-1", 500)
	store := newMemSessionStore()
	settlement := services.NewSettlement(ledger, store, &seqRand{values: []int{3, 7}}, nil)

	ledger.failCredit = true
	if _, err := settlement.StartApex(context.Background(), "user-1", &models.ApexStartRequest{
		Stake: 100, Mode: models.ApexModeBlind,
	}); err == nil {
		t.Fatal("expected the ledger failure to surface")
	}

	if ledger.balances["user-1"] != 400 {
		t.Errorf("stake stays debited, no credit lands, got balance %v", ledger.balances["user-1"])
	}
	// The outcome record lands before the credit; the credit-paired win
	// record does not.
	if len(ledger.transactions) != 1 || ledger.transactions[0].Type != models.TransactionTypeBetWin {
		t.Errorf("expected only the bet outcome record, got %+v", ledger.transactions)
	}
	if len(store.entries) != 0 {
		t.Error("a failed blind start must not persist a session")
	}
}

func TestStartApexDebitFailureCreatesNoSession(t *testing.T) {
	ledger := newFakeLedger("user-1", 500)
	store := newMemSessionStore()
	settlement := services.NewSettlement(ledger, store, &seqRand{values: []int{3, 7}}, nil)

	ledger.failDebit = true
	if _, err := settlement.StartApex(context.Background(), "user-1", &models.ApexStartRequest{
		Stake: 100, Mode: models.ApexModeChoice,
	}); err == nil {
		t.Fatal("expected the ledger failure to surface")
	}

	if ledger.balances["user-1"] != 500 {
		t.Errorf("balance must be unchanged, got %v", ledger.balances["user-1"])
	}
	if len(store.entries) != 0 {
		t.Error("no session may be created when the debit fails")
	}
	if len(ledger.transactions) != 0 {
		t.Error("no transaction may be recorded when the debit fails")
	}
}

func TestApexBlindStartSettlesImmediately(t *testing.T) {
	ledger := newFakeLedger("user-1", 500)
	store := newMemSessionStore()
	// System 3, user 7: a blind win.
	settlement := services.NewSettlement(ledger, store, &seqRand{values: []int{3, 7}}, nil)

	resp, err := settlement.StartApex(context.Background(), "user-1", &models.ApexStartRequest{
		Stake: 100, Mode: models.ApexModeBlind,
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if resp.Status != models.SessionEnded {
		t.Errorf("blind session must auto-resolve, got %s", resp.Status)
	}
	if resp.BlindResult == nil || !resp.BlindResult.Won {
		t.Fatalf("expected a blind win, got %+v", resp.BlindResult)
	}
	expected := 100 * 0.99 / 0.45
	if math.Abs(resp.BlindResult.Payout-expected) > 1e-9 {
		t.Errorf("expected payout %v, got %v", expected, resp.BlindResult.Payout)
	}
	if math.Abs(ledger.balances["user-1"]-(500-100+expected)) > 1e-9 {
		t.Errorf("unexpected balance %v", ledger.balances["user-1"])
	}

	// Bet outcome record plus the credit-paired win record.
	if len(ledger.transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(ledger.transactions))
	}
	if ledger.transactions[0].Type != models.TransactionTypeBetWin || ledger.transactions[0].Amount != 100 {
		t.Errorf("unexpected bet transaction: %+v", ledger.transactions[0])
	}
	if ledger.transactions[1].Type != models.TransactionTypeBetWin || math.Abs(ledger.transactions[1].Amount-expected) > 1e-9 {
		t.Errorf("unexpected win transaction: %+v", ledger.transactions[1])
	}
}

func TestApexBlindLoss(t *testing.T) {
	ledger := newFakeLedger("user-1", 500)
	store := newMemSessionStore()
	settlement := services.NewSettlement(ledger, store, &seqRand{values: []int{5, 5}}, nil)

	resp, err := settlement.StartApex(context.Background(), "user-1", &models.ApexStartRequest{
		Stake: 100, Mode: models.ApexModeBlind,
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if resp.BlindResult.Won {
		t.Error("a tie must lose")
	}
	if ledger.balances["user-1"] != 400 {
		t.Errorf("expected balance 400, got %v", ledger.balances["user-1"])
	}
	if len(ledger.transactions) != 1 || ledger.transactions[0].Type != models.TransactionTypeBetLoss {
		t.Errorf("expected a single bet_loss transaction, got %+v", ledger.transactions)
	}
}

func TestApexChoiceRound(t *testing.T) {
	ledger := newFakeLedger("user-1", 500)
	store := newMemSessionStore()
	// First draw: system number 3. Second draw (at resolution): 7.
	settlement := services.NewSettlement(ledger, store, &seqRand{values: []int{3, 7}}, nil)
	ctx := context.Background()

	start, err := settlement.StartApex(ctx, "user-1", &models.ApexStartRequest{
		Stake: 100, Mode: models.ApexModeChoice,
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if start.Status != models.SessionActive {
		t.Fatalf("choice session must stay active, got %s", start.Status)
	}
	if start.Greater == nil || math.Abs(start.Greater.Payout-1.65) > 1e-9 {
		t.Errorf("expected greater payout 1.65 up front, got %+v", start.Greater)
	}
	if start.Less == nil || math.Abs(start.Less.Payout-3.3) > 1e-9 {
		t.Errorf("expected less payout 3.3 up front, got %+v", start.Less)
	}
	if start.Equal == nil || math.Abs(start.Equal.Payout-9.9) > 1e-9 {
		t.Errorf("expected equal payout 9.9 up front, got %+v", start.Equal)
	}

	choose, err := settlement.ChooseApex(ctx, "user-1", &models.ApexChooseRequest{
		ID: start.ID, Choice: models.ApexChoiceGreater,
	})
	if err != nil {
		t.Fatalf("choose failed: %v", err)
	}
	if !choose.Won || math.Abs(choose.Payout-165.0) > 1e-9 {
		t.Errorf("expected win with payout 165, got %+v", choose)
	}
	if math.Abs(ledger.balances["user-1"]-565.0) > 1e-9 {
		t.Errorf("expected balance 565, got %v", ledger.balances["user-1"])
	}

	// Terminal transition already claimed: a replay must not credit again.
	if _, err := settlement.ChooseApex(ctx, "user-1", &models.ApexChooseRequest{
		ID: start.ID, Choice: models.ApexChoiceGreater,
	}); !errors.Is(err, models.ErrNotActive) {
		t.Errorf("expected ErrNotActive on replayed choose, got %v", err)
	}
	if math.Abs(ledger.balances["user-1"]-565.0) > 1e-9 {
		t.Errorf("balance changed on replay: %v", ledger.balances["user-1"])
	}
}

func TestApexChooseWrongOwner(t *testing.T) {
	ledger := newFakeLedger("user-1", 500)
	ledger.balances["user-2"] = 500
	store := newMemSessionStore()
	settlement := services.NewSettlement(ledger, store, &seqRand{values: []int{3, 7}}, nil)
	ctx := context.Background()

	start, err := settlement.StartApex(ctx, "user-1", &models.ApexStartRequest{
		Stake: 100, Mode: models.ApexModeChoice,
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if _, err := settlement.ChooseApex(ctx, "user-2", &models.ApexChooseRequest{
		ID: start.ID, Choice: models.ApexChoiceGreater,
	}); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}

	// State unchanged: the owner can still resolve.
	if _, err := settlement.ChooseApex(ctx, "user-1", &models.ApexChooseRequest{
		ID: start.ID, Choice: models.ApexChoiceGreater,
	}); err != nil {
		t.Errorf("owner resolve should still succeed, got %v", err)
	}
}
