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
	"fmt"

	"portfolio-sync-go/internal/models"
	"portfolio-sync-go/internal/store"
	"portfolio-sync-go/internal/triggers"

	"github.com/hibiken/asynq"
)

// Task type names. Delivery is at-least-once for all three, so every
// handler is written to be idempotent: duplicate dispatch or portfolio runs
// produce duplicate downstream enqueues, duplicate broker action runs
// produce duplicate natural-key upserts. Both are benign.
const (
	TypeDispatch      = "sync:dispatch"
	TypePortfolioSync = "sync:portfolio"
	TypeBrokerAction  = "sync:broker_action"
)

// Enqueuer is the slice of asynq's client the handlers need, kept narrow so
// tests can capture enqueues without a broker connection.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewDispatchTask builds a sync:dispatch task.
func NewDispatchTask() *asynq.Task {
	return asynq.NewTask(TypeDispatch, nil)
}

// NewPortfolioSyncTask builds a sync:portfolio task for one portfolio.
func NewPortfolioSyncTask(payload models.PortfolioSyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal portfolio sync payload: %w", err)
	}
	return asynq.NewTask(TypePortfolioSync, data), nil
}

// NewBrokerActionTask builds a sync:broker_action task for one
// (portfolio, broker account, action) triple.
func NewBrokerActionTask(payload models.BrokerActionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal broker action payload: %w", err)
	}
	return asynq.NewTask(TypeBrokerAction, data), nil
}

// Service owns the three sync task handlers and their dependencies.
type Service struct {
	store    store.SyncStore
	registry *triggers.Registry
	enqueuer Enqueuer
	maxRetry int
	queue    string
}

func NewService(syncStore store.SyncStore, registry *triggers.Registry, enqueuer Enqueuer, cfg models.WorkerConfig) *Service {
	queue := cfg.QueueName
	if queue == "" {
		queue = "default"
	}
	return &Service{
		store:    syncStore,
		registry: registry,
		enqueuer: enqueuer,
		maxRetry: cfg.MaxRetries,
		queue:    queue,
	}
}

// RegisterHandlers attaches the sync handlers to the worker mux.
func (s *Service) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeDispatch, s.HandleDispatch)
	mux.HandleFunc(TypePortfolioSync, s.HandlePortfolioSync)
	mux.HandleFunc(TypeBrokerAction, s.HandleBrokerAction)
}
