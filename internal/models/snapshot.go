package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// HoldingRecord is one normalized position inside a snapshot. Every trigger
// must emit this shape so persistence stays adapter-agnostic.
//
// Quantity and AvgPrice are always set (zero when the upstream omits them).
// ClosePrice is nil when the upstream has no closing price for the
// instrument (crypto venues typically don't).
type HoldingRecord struct {
	Symbol           string
	Isin             string
	AssetType        string
	Quantity         decimal.Decimal
	AvgPrice         decimal.Decimal
	LastPrice        decimal.Decimal
	ClosePrice       *decimal.Decimal
	Currency         string
	AsOf             time.Time
	SourceSnapshotId string
	Meta             json.RawMessage
}

// Snapshot is the result of one successful fetch against a broker API.
// A failed fetch is an error from Trigger.FetchHoldings, never a Snapshot.
type Snapshot struct {
	Records     []HoldingRecord
	FetchedAt   time.Time
	TokenSource string
}
