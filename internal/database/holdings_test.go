package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"portfolio-sync-go/internal/models"
	"portfolio-sync-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) (*Service, func()) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	service := &Service{db: db}
	if err := service.initSchema(); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return service, cleanup
}

// seedAccount inserts a user, portfolio, broker type and broker account and
// returns the portfolio and account ids.
func seedAccount(t *testing.T, s *Service, brokerCode string) (string, string) {
	t.Helper()

	stmts := []struct {
		query string
		args  []any
	}{
		{"INSERT OR IGNORE INTO users (id, name, email) VALUES (?, ?, ?)",
			[]any{"user1", "Test User", "test@example.com"}},
		{"INSERT OR IGNORE INTO portfolios (id, user_id, name) VALUES (?, ?, ?)",
			[]any{"portfolio1", "user1", "Main"}},
		{"INSERT OR IGNORE INTO broker_types (id, code, display_name) VALUES (?, ?, ?)",
			[]any{"type-" + brokerCode, brokerCode, brokerCode}},
		{"INSERT OR IGNORE INTO broker_accounts (id, portfolio_id, broker_type_id, external_account_id) VALUES (?, ?, ?, ?)",
			[]any{"account-" + brokerCode, "portfolio1", "type-" + brokerCode, "EXT-" + brokerCode}},
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt.query, stmt.args...); err != nil {
			t.Fatalf("Failed to seed test data: %v", err)
		}
	}

	return "portfolio1", "account-" + brokerCode
}

func testSnapshot(records ...models.HoldingRecord) *models.Snapshot {
	return &models.Snapshot{Records: records, FetchedAt: time.Now().UTC()}
}

func TestPersistHoldings_Idempotent(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	_, accountId := seedAccount(t, service, "zerodha")

	closePrice := decimal.NewFromFloat(2190)
	snapshot := testSnapshot(
		models.HoldingRecord{
			Symbol:    "TCS",
			AssetType: "equity",
			Isin:      "INE467B01029",
			Quantity:  decimal.NewFromInt(10),
			AvgPrice:  decimal.NewFromFloat(2100.50),
			LastPrice: decimal.NewFromFloat(2200),
			ClosePrice: &closePrice,
			Currency:  "INR",
		},
		models.HoldingRecord{
			Symbol:    "INFY",
			AssetType: "equity",
			Quantity:  decimal.NewFromInt(4),
			AvgPrice:  decimal.NewFromFloat(1500),
			LastPrice: decimal.NewFromFloat(1480),
		},
	)

	first, err := service.PersistHoldings(ctx, accountId, snapshot)
	if err != nil {
		t.Fatalf("First persist failed: %v", err)
	}
	second, err := service.PersistHoldings(ctx, accountId, snapshot)
	if err != nil {
		t.Fatalf("Second persist failed: %v", err)
	}

	if first != 2 || second != 2 {
		t.Errorf("Expected both persists to save 2 records, got %d and %d", first, second)
	}

	var stockCount, holdingCount int
	if err := service.db.QueryRow("SELECT COUNT(*) FROM stock_prices").Scan(&stockCount); err != nil {
		t.Fatalf("Failed to count stocks: %v", err)
	}
	if err := service.db.QueryRow("SELECT COUNT(*) FROM holdings").Scan(&holdingCount); err != nil {
		t.Fatalf("Failed to count holdings: %v", err)
	}
	if stockCount != 2 {
		t.Errorf("Expected 2 stock rows after double persist, got %d", stockCount)
	}
	if holdingCount != 2 {
		t.Errorf("Expected 2 holding rows after double persist, got %d", holdingCount)
	}

	var quantity decimal.Decimal
	err = service.db.QueryRow(
		"SELECT h.quantity FROM holdings h JOIN stock_prices s ON s.id = h.stock_id WHERE s.symbol = 'TCS'").
		Scan(&quantity)
	if err != nil {
		t.Fatalf("Failed to read TCS holding: %v", err)
	}
	if !quantity.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected TCS quantity 10, got %s", quantity.String())
	}
}

func TestPersistHoldings_OverwritesLatestPrice(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	_, accountId := seedAccount(t, service, "zerodha")

	record := models.HoldingRecord{
		Symbol:    "TCS",
		AssetType: "equity",
		Quantity:  decimal.NewFromInt(10),
		AvgPrice:  decimal.NewFromFloat(2100),
		LastPrice: decimal.NewFromFloat(2200),
	}
	if _, err := service.PersistHoldings(ctx, accountId, testSnapshot(record)); err != nil {
		t.Fatalf("First persist failed: %v", err)
	}

	var firstReceivedAt time.Time
	if err := service.db.QueryRow("SELECT received_at FROM stock_prices WHERE symbol = 'TCS'").Scan(&firstReceivedAt); err != nil {
		t.Fatalf("Failed to read received_at: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	record.LastPrice = decimal.NewFromFloat(2215.50)
	if _, err := service.PersistHoldings(ctx, accountId, testSnapshot(record)); err != nil {
		t.Fatalf("Second persist failed: %v", err)
	}

	var (
		lastPrice      decimal.Decimal
		nextReceivedAt time.Time
	)
	err := service.db.QueryRow("SELECT last_price, received_at FROM stock_prices WHERE symbol = 'TCS'").
		Scan(&lastPrice, &nextReceivedAt)
	if err != nil {
		t.Fatalf("Failed to read stock row: %v", err)
	}

	if !lastPrice.Equal(decimal.NewFromFloat(2215.50)) {
		t.Errorf("Expected last_price 2215.50, got %s", lastPrice.String())
	}
	if !nextReceivedAt.After(firstReceivedAt) {
		t.Errorf("Expected received_at to advance, got %v then %v", firstReceivedAt, nextReceivedAt)
	}
}

func TestPersistHoldings_SharedStockAcrossAccounts(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	_, accountA := seedAccount(t, service, "zerodha")
	_, accountB := seedAccount(t, service, "other")

	record := models.HoldingRecord{
		Symbol:    "TCS",
		AssetType: "equity",
		Quantity:  decimal.NewFromInt(5),
		AvgPrice:  decimal.NewFromFloat(2000),
		LastPrice: decimal.NewFromFloat(2200),
	}
	if _, err := service.PersistHoldings(ctx, accountA, testSnapshot(record)); err != nil {
		t.Fatalf("Persist for account A failed: %v", err)
	}
	record.LastPrice = decimal.NewFromFloat(2210)
	if _, err := service.PersistHoldings(ctx, accountB, testSnapshot(record)); err != nil {
		t.Fatalf("Persist for account B failed: %v", err)
	}

	var stockCount int
	if err := service.db.QueryRow("SELECT COUNT(*) FROM stock_prices WHERE symbol = 'TCS'").Scan(&stockCount); err != nil {
		t.Fatalf("Failed to count stocks: %v", err)
	}
	if stockCount != 1 {
		t.Errorf("Expected one shared stock row, got %d", stockCount)
	}

	// Last writer wins on the shared price cache.
	var lastPrice decimal.Decimal
	if err := service.db.QueryRow("SELECT last_price FROM stock_prices WHERE symbol = 'TCS'").Scan(&lastPrice); err != nil {
		t.Fatalf("Failed to read last_price: %v", err)
	}
	if !lastPrice.Equal(decimal.NewFromFloat(2210)) {
		t.Errorf("Expected last_price 2210, got %s", lastPrice.String())
	}

	var holdingCount int
	if err := service.db.QueryRow("SELECT COUNT(*) FROM holdings").Scan(&holdingCount); err != nil {
		t.Fatalf("Failed to count holdings: %v", err)
	}
	if holdingCount != 2 {
		t.Errorf("Expected one holding per account, got %d", holdingCount)
	}
}

func TestPersistHoldings_SkipsRecordsWithoutSymbol(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	_, accountId := seedAccount(t, service, "zerodha")

	snapshot := testSnapshot(
		models.HoldingRecord{Symbol: "", Quantity: decimal.NewFromInt(3)},
		models.HoldingRecord{
			Symbol:    "INFY",
			Quantity:  decimal.NewFromInt(4),
			AvgPrice:  decimal.NewFromFloat(1500),
			LastPrice: decimal.NewFromFloat(1480),
		},
	)

	count, err := service.PersistHoldings(ctx, accountId, snapshot)
	if err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 persisted record, got %d", count)
	}

	var holdingCount int
	if err := service.db.QueryRow("SELECT COUNT(*) FROM holdings").Scan(&holdingCount); err != nil {
		t.Fatalf("Failed to count holdings: %v", err)
	}
	if holdingCount != 1 {
		t.Errorf("Expected 1 holding row, got %d", holdingCount)
	}
}

func TestPersistHoldings_RetainsStaleHoldings(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	_, accountId := seedAccount(t, service, "zerodha")

	full := testSnapshot(
		models.HoldingRecord{Symbol: "TCS", Quantity: decimal.NewFromInt(10), AvgPrice: decimal.NewFromFloat(2100), LastPrice: decimal.NewFromFloat(2200)},
		models.HoldingRecord{Symbol: "INFY", Quantity: decimal.NewFromInt(4), AvgPrice: decimal.NewFromFloat(1500), LastPrice: decimal.NewFromFloat(1480)},
	)
	if _, err := service.PersistHoldings(ctx, accountId, full); err != nil {
		t.Fatalf("First persist failed: %v", err)
	}

	// INFY was liquidated upstream; the next snapshot omits it.
	partial := testSnapshot(
		models.HoldingRecord{Symbol: "TCS", Quantity: decimal.NewFromInt(12), AvgPrice: decimal.NewFromFloat(2110), LastPrice: decimal.NewFromFloat(2230)},
	)
	if _, err := service.PersistHoldings(ctx, accountId, partial); err != nil {
		t.Fatalf("Second persist failed: %v", err)
	}

	var holdingCount int
	if err := service.db.QueryRow("SELECT COUNT(*) FROM holdings").Scan(&holdingCount); err != nil {
		t.Fatalf("Failed to count holdings: %v", err)
	}
	if holdingCount != 2 {
		t.Errorf("Expected the absent holding to be retained, got %d rows", holdingCount)
	}
}

func TestGetHoldings_JoinsStockFields(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	portfolioId, accountId := seedAccount(t, service, "zerodha")

	snapshot := testSnapshot(models.HoldingRecord{
		Symbol:    "TCS",
		AssetType: "equity",
		Quantity:  decimal.NewFromInt(10),
		AvgPrice:  decimal.NewFromFloat(2100),
		LastPrice: decimal.NewFromFloat(2200),
		Meta:      []byte(`{"exchange":"NSE"}`),
	})
	if _, err := service.PersistHoldings(ctx, accountId, snapshot); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	holdings, err := service.GetHoldings(ctx, portfolioId)
	if err != nil {
		t.Fatalf("GetHoldings failed: %v", err)
	}
	if len(holdings) != 1 {
		t.Fatalf("Expected 1 holding, got %d", len(holdings))
	}

	h := holdings[0]
	if h.Symbol != "TCS" || h.AssetType != "equity" {
		t.Errorf("Unexpected joined stock fields: %s/%s", h.Symbol, h.AssetType)
	}
	if !h.LastPrice.Equal(decimal.NewFromFloat(2200)) {
		t.Errorf("Expected joined last price 2200, got %s", h.LastPrice.String())
	}
	if !h.MarketValue().Equal(decimal.NewFromInt(22000)) {
		t.Errorf("Expected market value 22000, got %s", h.MarketValue().String())
	}
}

func TestRecordSyncResult(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	portfolioId, accountId := seedAccount(t, service, "zerodha")

	err := service.RecordSyncResult(ctx, store.RecordSyncResultParams{
		PortfolioId:     portfolioId,
		BrokerAccountId: accountId,
		Action:          models.ActionHoldings,
		Status:          models.SyncStatusSucceeded,
		TokenSource:     "cache",
		PersistedCount:  3,
	})
	if err != nil {
		t.Fatalf("RecordSyncResult failed: %v", err)
	}

	var (
		status      string
		tokenSource string
		count       int
	)
	err = service.db.QueryRow(
		"SELECT status, token_source, persisted_count FROM sync_results WHERE broker_account_id = ?", accountId).
		Scan(&status, &tokenSource, &count)
	if err != nil {
		t.Fatalf("Failed to read sync result: %v", err)
	}
	if status != models.SyncStatusSucceeded || count != 3 {
		t.Errorf("Unexpected sync result: status=%s count=%d", status, count)
	}
	if tokenSource != "cache" {
		t.Errorf("Expected token source to be stored, got %q", tokenSource)
	}
}
