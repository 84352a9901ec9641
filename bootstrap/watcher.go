package bootstrap

import (
	"context"
	"time"

	"balgil/connectivity"
	"balgil/metrics"
	"balgil/util/goroutine"
)

// installWatcher subscribes to the connectivity signal for the process
// lifetime. Run calls it exactly once, after the join.
func (o *Orchestrator) installWatcher() {
	if o.subs.Network == nil {
		o.logger.Debug("No connectivity signal, sync on reconnect disabled")
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.unsubscribe = o.subs.Network.Subscribe(o.onConnectivity)
	o.logger.Debug("Connectivity watcher installed")
}

func (o *Orchestrator) onConnectivity(e connectivity.Event) {
	if o.subs.Data == nil {
		return
	}

	switch e.Kind {
	case connectivity.Online:
		// no dedup against the deferred sync; SyncToServer skips overlaps itself
		o.logger.Info("Connection restored, syncing")
		o.triggerSync("online")

	case connectivity.TypeChange:
		o.debounceNetworkChange(e.NetworkType)

	case connectivity.Foreground:
		if o.subs.Data.CheckSyncEligibility(false) {
			o.triggerSync("foreground")
		}
	}
}

// debounceNetworkChange syncs once the network type has been stable for
// NetworkChangeDebounce, if syncing is still allowed then
func (o *Orchestrator) debounceNetworkChange(networkType string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}

	if o.debounce != nil {
		o.debounce.Stop()
	}
	o.debounce = time.AfterFunc(o.timings.NetworkChangeDebounce, func() {
		if !o.subs.Data.CheckSyncEligibility(false) {
			o.logger.Debugw("Network changed but sync not eligible", "network_type", networkType)
			return
		}
		o.logger.Infow("Network changed, syncing", "network_type", networkType)
		o.triggerSync("network_change")
	})
}

func (o *Orchestrator) triggerSync(trigger string) {
	metrics.SyncTriggers.WithLabelValues(trigger).Inc()
	data := o.subs.Data
	goroutine.Go("sync-"+trigger, o.logger, func() error {
		return data.SyncToServer(context.Background())
	})
}
