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
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"portfolio-sync-go/internal/models"
	"portfolio-sync-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SeedBrokerTypes inserts catalog entries that don't exist yet. Existing
// codes are left untouched.
func (s *Service) SeedBrokerTypes(ctx context.Context, types []models.BrokerType) error {
	for _, bt := range types {
		id := bt.Id
		if id == "" {
			id = uuid.New().String()
		}
		if _, err := s.db.ExecContext(ctx, queryInsertBrokerType, id, bt.Code, bt.DisplayName); err != nil {
			zap.L().Error("Failed to seed broker type", zap.String("code", bt.Code), zap.Error(err))
			return fmt.Errorf("unable to seed broker type %s: %w", bt.Code, err)
		}
	}
	zap.L().Info("Broker type catalog seeded", zap.Int("count", len(types)))
	return nil
}

func (s *Service) GetBrokerAccount(ctx context.Context, brokerAccountId string) (*models.BrokerAccount, error) {
	zap.L().Debug("Querying broker account", zap.String("broker_account_id", brokerAccountId))

	var (
		acc           models.BrokerAccount
		credId        sql.NullString
		credPayload   sql.NullString
		credEncrypted sql.NullBool
		credCreatedAt sql.NullTime
		credUpdatedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, queryGetBrokerAccount, brokerAccountId).Scan(
		&acc.Id, &acc.PortfolioId, &acc.BrokerTypeId, &acc.ExternalAccountId,
		&acc.DisplayName, &acc.Status, &acc.CreatedAt, &acc.BrokerTypeCode,
		&credId, &credPayload, &credEncrypted, &credCreatedAt, &credUpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("broker account %s: %w", brokerAccountId, store.ErrNotFound)
		}
		zap.L().Error("Failed to query broker account", zap.String("broker_account_id", brokerAccountId), zap.Error(err))
		return nil, fmt.Errorf("unable to query broker account: %w", err)
	}

	if credId.Valid {
		acc.Credential = &models.BrokerAccountCredential{
			Id:              credId.String,
			BrokerAccountId: acc.Id,
			Credentials:     json.RawMessage(credPayload.String),
			Encrypted:       credEncrypted.Bool,
			CreatedAt:       credCreatedAt.Time,
			UpdatedAt:       credUpdatedAt.Time,
		}
	}

	return &acc, nil
}

func (s *Service) ListBrokerAccounts(ctx context.Context, portfolioId string) ([]models.BrokerAccount, error) {
	rows, err := s.db.QueryContext(ctx, queryListBrokerAccounts, portfolioId)
	if err != nil {
		zap.L().Error("Failed to query broker accounts", zap.String("portfolio_id", portfolioId), zap.Error(err))
		return nil, fmt.Errorf("unable to query broker accounts: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var accounts []models.BrokerAccount
	for rows.Next() {
		var acc models.BrokerAccount
		err := rows.Scan(&acc.Id, &acc.PortfolioId, &acc.BrokerTypeId, &acc.ExternalAccountId,
			&acc.DisplayName, &acc.Status, &acc.CreatedAt, &acc.BrokerTypeCode)
		if err != nil {
			return nil, fmt.Errorf("unable to scan broker account row: %w", err)
		}
		accounts = append(accounts, acc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating broker account rows: %w", err)
	}

	return accounts, nil
}

func (s *Service) CreateBrokerAccount(ctx context.Context, params store.CreateBrokerAccountParams) (*models.BrokerAccount, error) {
	var bt models.BrokerType
	err := s.db.QueryRowContext(ctx, queryGetBrokerTypeByCode, params.BrokerTypeCode).Scan(
		&bt.Id, &bt.Code, &bt.DisplayName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("broker type %s: %w", params.BrokerTypeCode, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query broker type: %w", err)
	}

	id := uuid.New().String()
	zap.L().Info("Creating broker account",
		zap.String("id", id),
		zap.String("portfolio_id", params.PortfolioId),
		zap.String("broker_type", params.BrokerTypeCode),
		zap.String("external_account_id", params.ExternalAccountId))

	_, err = s.db.ExecContext(ctx, queryInsertBrokerAccount,
		id, params.PortfolioId, bt.Id, params.ExternalAccountId, params.DisplayName)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%s/%s: %w", params.BrokerTypeCode, params.ExternalAccountId, store.ErrDuplicateAccount)
		}
		zap.L().Error("Failed to insert broker account", zap.Error(err))
		return nil, fmt.Errorf("unable to insert broker account: %w", err)
	}

	return s.GetBrokerAccount(ctx, id)
}

func (s *Service) UpsertCredential(ctx context.Context, params store.UpsertCredentialParams) error {
	if !json.Valid(params.Credentials) {
		return fmt.Errorf("credential payload is not valid JSON")
	}

	_, err := s.db.ExecContext(ctx, queryUpsertCredential,
		uuid.New().String(), params.BrokerAccountId, string(params.Credentials), params.Encrypted)
	if err != nil {
		zap.L().Error("Failed to upsert credential",
			zap.String("broker_account_id", params.BrokerAccountId), zap.Error(err))
		return fmt.Errorf("unable to upsert credential: %w", err)
	}

	zap.L().Info("Credential stored",
		zap.String("broker_account_id", params.BrokerAccountId),
		zap.Time("updated_at", time.Now().UTC()))
	return nil
}
