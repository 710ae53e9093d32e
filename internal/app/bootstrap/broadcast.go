package bootstrap

import (
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/wolfman30/guardian-ai/internal/cloud"
	appconfig "github.com/wolfman30/guardian-ai/internal/config"
	"github.com/wolfman30/guardian-ai/pkg/logging"
)

// BuildBroadcaster connects to NATS for community sharing. The returned
// close func is never nil. Without NATS_URL, or when the connection
// fails, the simulated broadcaster is used.
func BuildBroadcaster(cfg *appconfig.Config, logger *logging.Logger) (cloud.Broadcaster, func()) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return cloud.NewSimulatedBroadcaster(0), func() {}
	}
	simulated := cloud.NewSimulatedBroadcaster(cfg.BroadcastLatency)
	if strings.TrimSpace(cfg.NATSURL) == "" {
		return simulated, func() {}
	}

	conn, err := nats.Connect(cfg.NATSURL, nats.Name("guardian-api"))
	if err != nil {
		logger.Warn("nats not available; using simulated broadcast", "error", err)
		return simulated, func() {}
	}
	logger.Info("community broadcast via nats", "subject", cfg.NATSBroadcastSubject)
	b := cloud.NewNATSBroadcaster(conn, cloud.NATSBroadcasterConfig{
		Subject:  cfg.NATSBroadcastSubject,
		Timeout:  cfg.BroadcastTimeout,
		Fallback: simulated,
		Logger:   logger,
	})
	return b, conn.Close
}

