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
	"fmt"

	"portfolio-sync-go/internal/models"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// HandleDispatch enumerates active users and their active portfolios and
// fans out one portfolio sync task per portfolio. Fire-and-forget: it never
// waits for downstream results, it only reports how many it enqueued.
func (s *Service) HandleDispatch(ctx context.Context, _ *asynq.Task) error {
	users, err := s.store.GetActiveUsers(ctx)
	if err != nil {
		return fmt.Errorf("unable to enumerate active users: %w", err)
	}

	total := 0
	for _, user := range users {
		portfolios, err := s.store.GetActivePortfolios(ctx, user.Id)
		if err != nil {
			return fmt.Errorf("unable to enumerate portfolios for user %s: %w", user.Id, err)
		}

		for _, portfolio := range portfolios {
			task, err := NewPortfolioSyncTask(models.PortfolioSyncPayload{PortfolioId: portfolio.Id})
			if err != nil {
				return err
			}
			if _, err := s.enqueuer.EnqueueContext(ctx, task, asynq.Queue(s.queue)); err != nil {
				return fmt.Errorf("unable to enqueue portfolio sync for %s: %w", portfolio.Id, err)
			}
			total++
		}
	}

	zap.L().Info("Dispatch complete",
		zap.Int("users", len(users)),
		zap.Int("enqueued_portfolios", total))
	return nil
}
