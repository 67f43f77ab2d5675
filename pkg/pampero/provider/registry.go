package provider

import (
	"k8s.io/klog/v2"

	"github.com/meteosur/pampero/pkg/pampero/config"
	"github.com/meteosur/pampero/pkg/pampero/meteo"
)

// BuildClients constructs one client per configured active source. Sources
// that cannot be built are skipped with a log line rather than failing the
// whole set; config validation catches genuine misconfiguration earlier.
func BuildClients(cfg *config.Config, opts ...Option) []Client {
	clients := make([]Client, 0, len(cfg.Providers.ActiveSources))
	for _, source := range cfg.Providers.ActiveSources {
		switch source {
		case meteo.SourceWindyECMWF, meteo.SourceWindyGFS, meteo.SourceWindyICON:
			wc, err := NewWindyClient(source, cfg.Providers.WindyAPIKey, cfg.Providers.WindyBaseURL, opts...)
			if err != nil {
				klog.ErrorS(err, "Skipping windy source", "source", source)
				continue
			}
			clients = append(clients, wc)
		case meteo.SourceWRFSMN:
			if !cfg.Providers.WRFSMN.Enabled {
				klog.V(2).InfoS("WRF-SMN provider disabled, skipping")
				continue
			}
			clients = append(clients, NewWRFSMNClient(
				cfg.Providers.WRFSMN.BaseURL,
				cfg.Providers.WRFSMN.CacheTTL,
				cfg.Cache.CleanupInterval,
				opts...))
		default:
			klog.InfoS("No client implementation for source", "source", source)
		}
	}
	return clients
}

// CloseAll shuts down any client that holds background resources.
func CloseAll(clients []Client) {
	for _, c := range clients {
		if closer, ok := c.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}
