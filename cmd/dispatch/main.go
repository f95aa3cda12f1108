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

// Operational trigger: enqueues one dispatch task and exits. The worker
// does all the actual fan-out.
package main

import (
	"context"

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

	client := asynq.NewClient(common.RedisOpt(cfg.Redis))
	defer func() {
		if err := client.Close(); err != nil {
			zap.L().Warn("Failed to close queue client", zap.Error(err))
		}
	}()

	info, err := client.EnqueueContext(context.Background(), tasks.NewDispatchTask(),
		asynq.Queue(cfg.Worker.QueueName))
	if err != nil {
		zap.L().Fatal("Failed to enqueue dispatch task", zap.Error(err))
	}

	zap.L().Info("Dispatch task enqueued",
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue))
}
