/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	mobo "github.com/chetanchaudhari789/MOBO-sub001"
	"github.com/chetanchaudhari789/MOBO-sub001/config"
	"github.com/chetanchaudhari789/MOBO-sub001/internal/apierror"
	redis_db "github.com/chetanchaudhari789/MOBO-sub001/internal/redis-db"
	"github.com/chetanchaudhari789/MOBO-sub001/internal/search"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
)

// indexData represents the payload coming off the index queue: the collection
// name and the document to upsert.
type indexData struct {
	Collection string                 `json:"collection"`
	Payload    map[string]interface{} `json:"payload"`
}

// processSettlementDue settles an order whose cooling period has elapsed.
// Business rejections (already settled, frozen, cap exceeded) are terminal
// and must not be retried; everything else is pushed back for retry.
func (b *moboInstance) processSettlementDue(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("mobo.settlement.worker").Start(ctx, "Process Settlement From Redis Queue")
	defer span.End()

	var orderID string
	if err := json.Unmarshal(t.Payload(), &orderID); err != nil {
		logrus.Error(err)
		return err
	}

	_, err := b.mobo.Settle(ctx, orderID, "system", "wallet")
	if err != nil {
		var apiErr apierror.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.Code {
			case apierror.ErrConflict, apierror.ErrPrecondition, apierror.ErrUnprocessable, apierror.ErrNotFound:
				logrus.Infof("Settlement for order %s rejected: %v", orderID, err)
				return nil
			}
		}

		logrus.Infof("Order %s pushed back for retry due to error: %v", orderID, err)
		return err
	}

	log.Println(" [*] Order Settled", orderID)
	return nil
}

// indexData indexes data into TypeSense for searchability. It fetches the
// collection name and payload from the task, ensures the collections exist,
// and upserts the document.
func (b *moboInstance) indexData(_ context.Context, t *asynq.Task) error {
	var data indexData

	if err := json.Unmarshal(t.Payload(), &data); err != nil {
		logrus.Error(err)
		return err
	}

	collection := data.Collection
	payload := data.Payload

	newSearch := search.NewTypesenseClient(b.cnf.TypeSense.Key, []string{b.cnf.TypeSense.Dns})
	err := newSearch.EnsureCollectionsExist(context.Background())
	if err != nil {
		log.Printf("Failed to ensure collections exist: %v", err)
		return err
	}

	err = newSearch.HandleNotification(context.Background(), collection, payload)
	if err != nil {
		log.Println("Error indexing data", err)
		return err
	}

	log.Println(" [*] Data indexed", collection)
	return nil
}

func initializeQueues() map[string]int {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return nil
	}

	queues := make(map[string]int)
	queues[cfg.Queue.WebhookQueue] = 3
	queues[cfg.Queue.IndexQueue] = 1
	queues[cfg.Queue.SettlementQueue] = 3
	return queues
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		asynq.Config{
			Concurrency: 1,
			Queues:      queues,
		},
	), nil
}

func initializeTaskHandlers(b *moboInstance, mux *asynq.ServeMux) {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return
	}

	mux.HandleFunc(cfg.Queue.SettlementQueue, b.processSettlementDue)
	mux.HandleFunc(cfg.Queue.IndexQueue, b.indexData)
	mux.HandleFunc(cfg.Queue.WebhookQueue, mobo.ProcessWebhook)
}

// workerCommands defines the "workers" command to start worker processes.
// The workers listen to the settlement, indexing and webhook queues.
func workerCommands(b *moboInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start mobo workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			phClient, shutdown, err := initializeObservability(ctx, conf)
			if err != nil {
				log.Fatal(err)
			}
			if shutdown != nil {
				defer func() {
					if err := shutdown(ctx); err != nil {
						log.Printf("Error during shutdown: %v", err)
					}
				}()
			}
			if phClient != nil {
				defer phClient.Close()
			}

			queues := initializeQueues()

			srv, err := initializeWorkerServer(conf, queues)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(b, mux)

			// Asynqmon for queue health checks and monitoring.
			redisOption, _ := redis_db.ParseRedisURL(conf.Redis.Dns)
			h := asynqmon.New(asynqmon.Options{
				RootPath: "/monitoring",
				RedisConnOpt: asynq.RedisClientOpt{
					Addr:      redisOption.Addr,
					Password:  redisOption.Password,
					DB:        redisOption.DB,
					TLSConfig: redisOption.TLSConfig,
				},
			})

			go func() {
				monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
				log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
				if err := http.ListenAndServe(monitoringAddr, h); err != nil {
					log.Fatalf("could not start asynqmon server: %v", err)
				}
			}()

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
