package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rotisserie/eris"
)

// Push sends the default registry to a Prometheus push-gateway. CLI runs are
// too short-lived to be scraped, so the sync command pushes once at exit.
func Push(ctx context.Context, gatewayURL, job string) error {
	if gatewayURL == "" {
		return nil
	}
	if job == "" {
		job = "wa_frontend_archive_sync"
	}
	err := push.New(gatewayURL, job).
		Gatherer(prometheus.DefaultGatherer).
		PushContext(ctx)
	return eris.Wrap(err, "metrics: push")
}
