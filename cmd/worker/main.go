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

package main

import (
	"context"
	"time"

	"portfolio-sync-go/internal/common"
	"portfolio-sync-go/internal/config"
	"portfolio-sync-go/internal/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting holdings sync worker")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	// Seed the broker type catalog so accounts can reference types by code.
	catalog, err := config.LoadBrokerCatalog(cfg.Brokers.CatalogFile)
	if err != nil {
		zap.L().Warn("Broker catalog not loaded, relying on existing broker_types rows", zap.Error(err))
	} else if err := services.DbService.SeedBrokerTypes(ctx, catalog); err != nil {
		zap.L().Fatal("Failed to seed broker types", zap.Error(err))
	}

	taskService := tasks.NewService(services.DbService, services.Registry, services.QueueClient, cfg.Worker)

	srv := asynq.NewServer(common.RedisOpt(cfg.Redis), asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues:      map[string]int{cfg.Worker.QueueName: 1},
		// Fixed backoff for the transient-lookup retry path; terminal
		// failures skip retry entirely.
		RetryDelayFunc: func(n int, e error, t *asynq.Task) time.Duration {
			return cfg.Worker.RetryDelay
		},
		ShutdownTimeout: cfg.Worker.ShutdownWait,
	})

	mux := asynq.NewServeMux()
	taskService.RegisterHandlers(mux)

	zap.L().Info("Worker ready",
		zap.Int("concurrency", cfg.Worker.Concurrency),
		zap.String("queue", cfg.Worker.QueueName),
		zap.Duration("retry_delay", cfg.Worker.RetryDelay))

	if err := srv.Run(mux); err != nil {
		zap.L().Fatal("Worker stopped with error", zap.Error(err))
	}
}
