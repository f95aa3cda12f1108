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
	"portfolio-sync-go/internal/triggers"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// actionHandlers maps an action code to the trigger invocation it selects.
// Extending the pipeline to new actions (e.g. transaction sync) means adding
// a row here and the matching trigger capability.
var actionHandlers = map[string]func(ctx context.Context, trigger triggers.Trigger) (*models.Snapshot, error){
	models.ActionHoldings: func(ctx context.Context, trigger triggers.Trigger) (*models.Snapshot, error) {
		return trigger.FetchHoldings(ctx)
	},
}

// HandleBrokerAction executes one (portfolio, broker account, action)
// triple: resolve the trigger, fetch, persist, record the outcome. Failures
// stop here as recorded results; they never propagate to sibling accounts.
func (s *Service) HandleBrokerAction(ctx context.Context, t *asynq.Task) error {
	var payload models.BrokerActionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("malformed broker action payload: %v: %w", err, asynq.SkipRetry)
	}

	account, err := s.store.GetBrokerAccount(ctx, payload.BrokerAccountId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Possibly a replication-lag race against a just-created
			// account: retry on the queue's fixed backoff until the
			// attempt budget runs out.
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			if retried >= maxRetry {
				s.recordResult(ctx, payload, models.SyncStatusFailed,
					fmt.Sprintf("broker account %s still not found after %d attempts", payload.BrokerAccountId, retried+1), "", 0)
			}
			return fmt.Errorf("broker account %s not readable yet: %w", payload.BrokerAccountId, err)
		}
		return fmt.Errorf("unable to load broker account %s: %w", payload.BrokerAccountId, err)
	}

	factory, ok := s.registry.Resolve(account.BrokerTypeCode)
	if !ok {
		// Unconfigured integrations are expected during rollout; a miss is
		// a graceful skip, not a failure.
		zap.L().Info("No trigger registered for broker type, skipping",
			zap.String("broker_account_id", account.Id),
			zap.String("broker_type", account.BrokerTypeCode))
		s.recordResult(ctx, payload, models.SyncStatusSkippedNoTrigger, "", "", 0)
		return nil
	}

	handler, ok := actionHandlers[payload.Action]
	if !ok {
		s.recordResult(ctx, payload, models.SyncStatusFailed,
			fmt.Sprintf("unknown action %q", payload.Action), "", 0)
		return fmt.Errorf("unknown action %q: %w", payload.Action, asynq.SkipRetry)
	}

	trigger, err := factory(account)
	if err != nil {
		s.recordResult(ctx, payload, models.SyncStatusFailed, err.Error(), "", 0)
		return fmt.Errorf("unable to build %s trigger: %v: %w", account.BrokerTypeCode, err, asynq.SkipRetry)
	}

	snapshot, err := handler(ctx, trigger)
	if err != nil {
		zap.L().Error("Broker fetch failed",
			zap.String("broker_account_id", account.Id),
			zap.String("broker_type", account.BrokerTypeCode),
			zap.String("action", payload.Action),
			zap.Error(err))
		s.recordResult(ctx, payload, models.SyncStatusFailed, err.Error(), "", 0)
		// Requires external remediation (token regeneration, upstream
		// recovery); the queue's retry policy would not help.
		return fmt.Errorf("%s fetch failed for broker account %s: %v: %w",
			account.BrokerTypeCode, account.Id, err, asynq.SkipRetry)
	}

	count, err := s.store.PersistHoldings(ctx, account.Id, snapshot)
	if err != nil {
		zap.L().Error("Holdings persistence failed",
			zap.String("broker_account_id", account.Id),
			zap.Error(err))
		s.recordResult(ctx, payload, models.SyncStatusFailed, err.Error(), snapshot.TokenSource, 0)
		return fmt.Errorf("persistence failed for broker account %s: %v: %w", account.Id, err, asynq.SkipRetry)
	}

	zap.L().Info("Broker action succeeded",
		zap.String("broker_account_id", account.Id),
		zap.String("broker_type", account.BrokerTypeCode),
		zap.String("action", payload.Action),
		zap.Int("persisted", count))
	s.recordResult(ctx, payload, models.SyncStatusSucceeded, "", snapshot.TokenSource, count)
	return nil
}

// recordResult stores the terminal outcome of one execution. Recording is
// best-effort: a failure here is logged, never turned into a task retry.
func (s *Service) recordResult(ctx context.Context, payload models.BrokerActionPayload, status, message, tokenSource string, count int) {
	err := s.store.RecordSyncResult(ctx, store.RecordSyncResultParams{
		PortfolioId:     payload.PortfolioId,
		BrokerAccountId: payload.BrokerAccountId,
		Action:          payload.Action,
		Status:          status,
		Message:         message,
		TokenSource:     tokenSource,
		PersistedCount:  count,
	})
	if err != nil {
		zap.L().Warn("Failed to record sync result",
			zap.String("broker_account_id", payload.BrokerAccountId),
			zap.String("status", status),
			zap.Error(err))
	}
}
