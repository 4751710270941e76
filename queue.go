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

package mobo

import (
	"encoding/json"
	"log"
	"time"

	"github.com/chetanchaudhari789/MOBO-sub001/config"
	redis_db "github.com/chetanchaudhari789/MOBO-sub001/internal/redis-db"

	"github.com/hibiken/asynq"
)

// Queue represents a queue for handling background tasks.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// queueIndexData enqueues a task to index data in a specified collection.
func (q *Queue) queueIndexData(id string, collection string, data interface{}) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	if cfg.TypeSense.Dns == "" {
		return nil
	}

	payload := map[string]interface{}{
		"collection": collection,
		"payload":    data,
	}

	IPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	taskOptions := []asynq.Option{asynq.Queue(cfg.Queue.IndexQueue)}
	task := asynq.NewTask(cfg.Queue.IndexQueue, IPayload, taskOptions...)
	info, err := q.Client.Enqueue(task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued index data: %+v", id)
	return nil
}

// queueSettlementDue enqueues a settlement attempt for an order once its
// cooling period has elapsed. The task ID is the order ID, so re-approving
// an order after unsettlement replaces rather than duplicates the task.
func (q *Queue) queueSettlementDue(orderID string, dueAt time.Time) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	IPayload, err := json.Marshal(orderID)
	if err != nil {
		return err
	}
	taskOptions := []asynq.Option{
		asynq.TaskID(orderID),
		asynq.Queue(cfg.Queue.SettlementQueue),
		asynq.ProcessIn(time.Until(dueAt)),
	}
	task := asynq.NewTask(cfg.Queue.SettlementQueue, IPayload, taskOptions...)
	info, err := q.Client.Enqueue(task)
	if err != nil {
		if err == asynq.ErrTaskIDConflict {
			return nil
		}
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued settlement due: %+v", orderID)
	return nil
}

// GetSettlementTask retrieves a pending settlement task for an order, if any.
func (q *Queue) GetSettlementTask(orderID string) (*asynq.TaskInfo, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	return q.Inspector.GetTaskInfo(cfg.Queue.SettlementQueue, orderID)
}
