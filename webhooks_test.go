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
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"

	"github.com/chetanchaudhari789/MOBO-sub001/config"
	"github.com/chetanchaudhari789/MOBO-sub001/model"
)

func webhookConfig(url, redisDns string) *config.Configuration {
	conf := &config.Configuration{
		Redis: config.RedisConfig{Dns: redisDns},
	}
	conf.Notification.Webhook.Url = url
	config.MockConfig(conf)
	return conf
}

func TestSendWebhookEnqueues(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("an error '%s' occurred when starting miniredis", err)
	}
	defer mr.Close()

	webhookConfig("http://localhost:5001/webhook", mr.Addr())

	err = SendWebhook(NewWebhook{
		Event:   "order.approved",
		Payload: map[string]interface{}{"order_id": "ord_1"},
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, mr.Keys())
}

func TestSendWebhookSkipsWithoutURL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("an error '%s' occurred when starting miniredis", err)
	}
	defer mr.Close()

	webhookConfig("", mr.Addr())

	err = SendWebhook(NewWebhook{Event: "order.approved"})
	assert.NoError(t, err)
	assert.Empty(t, mr.Keys())
}

func TestProcessHTTPDeliversPayload(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	webhookConfig("http://example.com/webhook", "localhost:6379")

	var received NewWebhook
	httpmock.RegisterResponder("POST", "http://example.com/webhook",
		func(req *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(req.Body).Decode(&received); err != nil {
				return httpmock.NewStringResponse(400, "bad payload"), nil
			}
			return httpmock.NewStringResponse(200, `{"ok":true}`), nil
		})

	err := processHTTP(NewWebhook{
		Event:   "order.settled",
		Payload: map[string]interface{}{"order_id": "ord_1"},
	})
	assert.NoError(t, err)
	assert.Equal(t, "order.settled", received.Event)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestProcessHTTPDoesNotRetryClientErrors(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	webhookConfig("http://example.com/webhook", "localhost:6379")

	httpmock.RegisterResponder("POST", "http://example.com/webhook",
		httpmock.NewStringResponder(422, "rejected"))

	err := processHTTP(NewWebhook{Event: "order.settled"})
	assert.Error(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestGetEventFromState(t *testing.T) {
	assert.Equal(t, "order.created", getEventFromState(model.StateCreated))
	assert.Equal(t, "order.under_review", getEventFromState(model.StateUnderReview))
	assert.Equal(t, "order.settled", getEventFromState(model.StateCompleted))
	assert.Equal(t, "order.rejected", getEventFromState(model.StateRejected))
	assert.Equal(t, "order.unknown", getEventFromState(model.WorkflowState("bogus")))
}
