/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"portfolio-sync-go/internal/models"
	"portfolio-sync-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PersistHoldings reconciles a normalized snapshot into the stock and
// holdings tables inside a single transaction. Records without a symbol are
// skipped, not errors. Holdings absent from the snapshot are left untouched;
// positions fully liquidated upstream keep their last synced row.
//
// Duplicate task delivery is safe here: both upserts key on natural identity,
// so replaying the same snapshot rewrites identical rows.
func (s *Service) PersistHoldings(ctx context.Context, brokerAccountId string, snapshot *models.Snapshot) (int, error) {
	if snapshot == nil || len(snapshot.Records) == 0 {
		return 0, nil
	}

	// One wall-clock start per call; every stock row written by this
	// invocation carries the same received_at.
	receivedAt := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("unable to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			zap.L().Warn("Failed to roll back holdings transaction", zap.Error(err))
		}
	}()

	saved := 0
	for _, rec := range snapshot.Records {
		if rec.Symbol == "" {
			zap.L().Debug("Skipping holding record without symbol",
				zap.String("broker_account_id", brokerAccountId))
			continue
		}

		assetType := rec.AssetType
		if assetType == "" {
			assetType = "equity"
		}

		asOf := rec.AsOf
		if asOf.IsZero() {
			asOf = receivedAt
		}

		closePrice := decimal.NullDecimal{}
		if rec.ClosePrice != nil {
			closePrice = decimal.NullDecimal{Decimal: *rec.ClosePrice, Valid: true}
		}

		_, err := tx.ExecContext(ctx, queryUpsertStock,
			uuid.New().String(), rec.Symbol, rec.Isin, assetType,
			asOf, rec.LastPrice, closePrice, receivedAt)
		if err != nil {
			return 0, fmt.Errorf("unable to upsert stock %s: %w", rec.Symbol, err)
		}

		var stockId string
		err = tx.QueryRowContext(ctx, queryGetStockId, rec.Symbol, rec.Isin, assetType).Scan(&stockId)
		if err != nil {
			return 0, fmt.Errorf("unable to read back stock %s: %w", rec.Symbol, err)
		}

		currency := rec.Currency
		if currency == "" {
			currency = "INR"
		}

		var meta any
		if len(rec.Meta) > 0 {
			meta = string(rec.Meta)
		}

		_, err = tx.ExecContext(ctx, queryUpsertHolding,
			uuid.New().String(), brokerAccountId, stockId,
			rec.Quantity, rec.AvgPrice, currency, asOf, rec.SourceSnapshotId, meta)
		if err != nil {
			return 0, fmt.Errorf("unable to upsert holding %s: %w", rec.Symbol, err)
		}

		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("unable to commit holdings transaction: %w", err)
	}

	zap.L().Info("Holdings persisted",
		zap.String("broker_account_id", brokerAccountId),
		zap.Int("saved", saved),
		zap.Int("skipped", len(snapshot.Records)-saved))

	return saved, nil
}

func (s *Service) GetHoldings(ctx context.Context, portfolioId string) ([]models.Holding, error) {
	rows, err := s.db.QueryContext(ctx, queryGetPortfolioHoldings, portfolioId)
	if err != nil {
		zap.L().Error("Failed to query holdings", zap.String("portfolio_id", portfolioId), zap.Error(err))
		return nil, fmt.Errorf("unable to query holdings: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var holdings []models.Holding
	for rows.Next() {
		var (
			h    models.Holding
			meta sql.NullString
		)
		err := rows.Scan(&h.Id, &h.BrokerAccountId, &h.StockId, &h.Quantity, &h.AvgPrice,
			&h.Currency, &h.AsOf, &h.SourceSnapshotId, &meta, &h.CreatedAt, &h.UpdatedAt,
			&h.Symbol, &h.AssetType, &h.LastPrice)
		if err != nil {
			return nil, fmt.Errorf("unable to scan holding row: %w", err)
		}
		if meta.Valid {
			h.Meta = []byte(meta.String)
		}
		holdings = append(holdings, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holding rows: %w", err)
	}

	return holdings, nil
}

func (s *Service) RecordSyncResult(ctx context.Context, params store.RecordSyncResultParams) error {
	_, err := s.db.ExecContext(ctx, queryInsertSyncResult,
		uuid.New().String(), params.PortfolioId, params.BrokerAccountId,
		params.Action, params.Status, params.Message, params.TokenSource, params.PersistedCount)
	if err != nil {
		zap.L().Error("Failed to record sync result",
			zap.String("broker_account_id", params.BrokerAccountId),
			zap.String("status", params.Status),
			zap.Error(err))
		return fmt.Errorf("unable to record sync result: %w", err)
	}
	return nil
}
