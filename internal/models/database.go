package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// User represents a user in the system
type User struct {
	Id        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
}

// Portfolio groups the broker accounts a user syncs together
type Portfolio struct {
	Id          string    `db:"id"`
	UserId      string    `db:"user_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	IsDefault   bool      `db:"is_default"`
	Active      bool      `db:"active"`
	CreatedAt   time.Time `db:"created_at"`
}

// BrokerType is a catalog entry identifying one integration, e.g. "zerodha".
// The code is the key the trigger registry dispatches on.
type BrokerType struct {
	Id          string `db:"id"`
	Code        string `db:"code"`
	DisplayName string `db:"display_name"`
}

// BrokerAccount is a credentialed connection to one external brokerage,
// scoped to one portfolio. BrokerTypeCode and Credential are populated by
// the joined lookup used by the broker action task.
type BrokerAccount struct {
	Id                string    `db:"id"`
	PortfolioId       string    `db:"portfolio_id"`
	BrokerTypeId      string    `db:"broker_type_id"`
	ExternalAccountId string    `db:"external_account_id"`
	DisplayName       string    `db:"display_name"`
	Status            string    `db:"status"`
	CreatedAt         time.Time `db:"created_at"`

	BrokerTypeCode string
	Credential     *BrokerAccountCredential
}

// BrokerAccountCredential holds the durable credential payload for one
// broker account. Credentials is an opaque JSON object (api keys, secrets);
// Encrypted signals whether the payload is ciphertext. Encryption itself
// happens outside this service.
type BrokerAccountCredential struct {
	Id              string          `db:"id"`
	BrokerAccountId string          `db:"broker_account_id"`
	Credentials     json.RawMessage `db:"credentials"`
	Encrypted       bool            `db:"encrypted"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

// DecodedCredentials unmarshals the credential payload into a flat string
// map. Non-string values are dropped.
func (c *BrokerAccountCredential) DecodedCredentials() map[string]string {
	out := make(map[string]string)
	if c == nil || len(c.Credentials) == 0 {
		return out
	}
	var raw map[string]any
	if err := json.Unmarshal(c.Credentials, &raw); err != nil {
		return out
	}
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// Stock is an instrument identity plus its most recently observed price.
// It is a shared price cache across all holdings of the same instrument,
// never account-scoped. Isin is empty (not NULL) when the instrument has
// none, so the (symbol, isin, asset_type) uniqueness holds in SQLite.
type Stock struct {
	Id         string              `db:"id"`
	Symbol     string              `db:"symbol"`
	Isin       string              `db:"isin"`
	AssetType  string              `db:"asset_type"`
	AsOf       time.Time           `db:"as_of"`
	LastPrice  decimal.Decimal     `db:"last_price"`
	ClosePrice decimal.NullDecimal `db:"close_price"`
	ReceivedAt time.Time           `db:"received_at"`
}

// Holding is the position one broker account has in one stock. Exactly one
// row exists per (broker_account, stock); re-sync overwrites it in place.
type Holding struct {
	Id               string          `db:"id"`
	BrokerAccountId  string          `db:"broker_account_id"`
	StockId          string          `db:"stock_id"`
	Quantity         decimal.Decimal `db:"quantity"`
	AvgPrice         decimal.Decimal `db:"avg_price"`
	Currency         string          `db:"currency"`
	AsOf             time.Time       `db:"as_of"`
	SourceSnapshotId string          `db:"source_snapshot_id"`
	Meta             json.RawMessage `db:"meta"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`

	// Joined stock fields for read paths.
	Symbol    string
	AssetType string
	LastPrice decimal.Decimal
}

// CostValue is the total invested value of the position.
func (h *Holding) CostValue() decimal.Decimal {
	return h.Quantity.Mul(h.AvgPrice)
}

// MarketValue is the current value using the stock's latest observed price.
func (h *Holding) MarketValue() decimal.Decimal {
	return h.Quantity.Mul(h.LastPrice)
}

// Transaction is an executed trade tied to a broker account and stock.
// Append-only. The holdings pipeline does not reconcile transactions today;
// the schema exists for the transaction-sync action.
type Transaction struct {
	Id              string          `db:"id"`
	BrokerAccountId string          `db:"broker_account_id"`
	StockId         string          `db:"stock_id"`
	Side            string          `db:"side"`
	Quantity        decimal.Decimal `db:"quantity"`
	Price           decimal.Decimal `db:"price"`
	ExecutedAt      time.Time       `db:"executed_at"`
	CreatedAt       time.Time       `db:"created_at"`
}

// SyncResult records the outcome of one broker action task execution so a
// sync cycle always ends with a queryable per-account result set.
type SyncResult struct {
	Id              string    `db:"id"`
	PortfolioId     string    `db:"portfolio_id"`
	BrokerAccountId string    `db:"broker_account_id"`
	Action          string    `db:"action"`
	Status          string    `db:"status"`
	Message         string    `db:"message"`
	TokenSource     string    `db:"token_source"`
	PersistedCount  int       `db:"persisted_count"`
	CreatedAt       time.Time `db:"created_at"`
}
