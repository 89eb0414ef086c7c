package main

import (
	"encoding/json"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/nimbuslab/flotilla/fleet"
	"github.com/nimbuslab/flotilla/server/log"
	"github.com/samber/lo"
)

// webhook pushes invocation results to an external endpoint. Delivery is best
// effort: transient failures are retried a few times, and a result that still
// cannot be delivered is only logged, it never fails the invocation.
type webhook struct {
	url    string
	client *retryablehttp.Client
}

func newWebhook(url string) *webhook {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil
	return &webhook{url: url, client: client}
}

func (w *webhook) Notify(result *fleet.ReconciliationResult) {
	request, err := retryablehttp.NewRequest(http.MethodPost, w.url, lo.Must(json.Marshal(result)))
	if err != nil {
		log.Error("Failed to create webhook request", "error", err)
		return
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := w.client.Do(request)
	if err != nil {
		log.Warn("Failed to deliver invocation result", "invocation", result.Name, "error", err)
		return
	}
	defer response.Body.Close()

	if response.StatusCode >= http.StatusBadRequest {
		log.Warn("Webhook rejected invocation result", "invocation", result.Name, "status", response.Status)
		return
	}
	log.Debug("Delivered invocation result", "invocation", result.Name, "status", response.Status)
}
