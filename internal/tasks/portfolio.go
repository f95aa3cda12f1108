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

package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"portfolio-sync-go/internal/models"
	"portfolio-sync-go/internal/store"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// HandlePortfolioSync enumerates a portfolio's broker accounts and fans out
// one broker action task per (account, action) pair. The fan-out is
// uncoordinated: the handler returns right after enqueuing and never
// aggregates executor outcomes.
func (s *Service) HandlePortfolioSync(ctx context.Context, t *asynq.Task) error {
	var payload models.PortfolioSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("malformed portfolio sync payload: %v: %w", err, asynq.SkipRetry)
	}

	portfolio, err := s.store.GetPortfolio(ctx, payload.PortfolioId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The dispatcher decided this portfolio existed when it
			// enqueued, so absence means stale enumeration, not a
			// transient fault. Terminal, no retry.
			zap.L().Warn("Portfolio not found, skipping sync",
				zap.String("portfolio_id", payload.PortfolioId))
			return nil
		}
		return fmt.Errorf("unable to load portfolio %s: %w", payload.PortfolioId, err)
	}

	actions := payload.Actions
	if len(actions) == 0 {
		actions = []string{models.ActionHoldings}
	}

	accounts, err := s.store.ListBrokerAccounts(ctx, portfolio.Id)
	if err != nil {
		return fmt.Errorf("unable to list broker accounts for portfolio %s: %w", portfolio.Id, err)
	}

	created := 0
	for _, account := range accounts {
		for _, action := range actions {
			task, err := NewBrokerActionTask(models.BrokerActionPayload{
				PortfolioId:     portfolio.Id,
				BrokerAccountId: account.Id,
				Action:          action,
			})
			if err != nil {
				return err
			}
			if _, err := s.enqueuer.EnqueueContext(ctx, task, asynq.Queue(s.queue), asynq.MaxRetry(s.maxRetry)); err != nil {
				return fmt.Errorf("unable to enqueue broker action for account %s: %w", account.Id, err)
			}
			created++
		}
	}

	zap.L().Info("Portfolio sync fanned out",
		zap.String("portfolio_id", portfolio.Id),
		zap.Int("accounts", len(accounts)),
		zap.Int("tasks", created))
	return nil
}
