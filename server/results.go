package main

import (
	"path"
	"sync"

	"github.com/nimbuslab/flotilla/fleet"
	"github.com/nimbuslab/flotilla/server/flags"
	"github.com/nimbuslab/flotilla/server/log"
	"github.com/spf13/viper"
)

// results is the single sink for invocation outcomes, written by
// invokeTrigger and read by the status and results endpoints.
var results *Recorder

// Recorder fans each invocation result out to the in-memory ring served by
// the API, the on-disk journal, and the webhook when one is configured.
type Recorder struct {
	retention int
	journal   *journal
	webhook   *webhook

	mutex sync.RWMutex
	ring  []*fleet.ReconciliationResult // newest last
}

func newRecorder(dataRoot string) (*Recorder, error) {
	journal, err := openJournal(path.Join(dataRoot, "results"), int64(viper.GetInt(flags.JournalMaxSize)))
	if err != nil {
		return nil, err
	}

	recorder := &Recorder{
		retention: viper.GetInt(flags.ResultsRetention),
		journal:   journal,
	}
	if url := viper.GetString(flags.WebhookUrl); url != "" {
		recorder.webhook = newWebhook(url)
	}
	return recorder, nil
}

// Record stores one invocation result. Journal and webhook failures are
// logged and never surface to the invocation.
func (r *Recorder) Record(result *fleet.ReconciliationResult) {
	r.mutex.Lock()
	r.ring = append(r.ring, result)
	if len(r.ring) > r.retention {
		r.ring = r.ring[len(r.ring)-r.retention:]
	}
	r.mutex.Unlock()

	if err := r.journal.Append(result); err != nil {
		log.Error("Failed to journal invocation result", "invocation", result.Name, "error", err)
	}
	if r.webhook != nil {
		go r.webhook.Notify(result)
	}
}

// Recent returns up to limit results, newest first.
func (r *Recorder) Recent(limit int) []*fleet.ReconciliationResult {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if limit <= 0 || limit > len(r.ring) {
		limit = len(r.ring)
	}
	recent := make([]*fleet.ReconciliationResult, 0, limit)
	for i := len(r.ring) - 1; i >= len(r.ring)-limit; i-- {
		recent = append(recent, r.ring[i])
	}
	return recent
}

// Last returns the most recent result recorded for a group, nil when the
// group has not been invoked since startup.
func (r *Recorder) Last(group string) *fleet.ReconciliationResult {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for i := len(r.ring) - 1; i >= 0; i-- {
		if r.ring[i].Group == group {
			return r.ring[i]
		}
	}
	return nil
}

// Close closes the journal. Webhook deliveries still in flight are abandoned.
func (r *Recorder) Close() {
	if err := r.journal.Close(); err != nil {
		log.Warn("Failed to close journal", "error", err)
	}
}
