// Package plugins maps configured type names to the concrete stores,
// notifiers, fallbacks and timeline stores of the service.
package plugins

import (
	"context"
	"fmt"
	"sort"

	"github.com/kilianp07/carrierchain/config"
	"github.com/kilianp07/carrierchain/core/dispatch"
	dispatchlog "github.com/kilianp07/carrierchain/core/dispatch/logging"
	"github.com/kilianp07/carrierchain/core/factory"
	"github.com/kilianp07/carrierchain/core/logger"
	"github.com/kilianp07/carrierchain/core/notify"
	"github.com/kilianp07/carrierchain/core/store"
	"github.com/kilianp07/carrierchain/infra/mqtt"
)

// Deps are the shared resources handed to delivery factories. MQTT is nil
// when no broker is configured.
type Deps struct {
	MQTT   *mqtt.PahoClient
	Logger logger.Logger
}

// StoreFactory opens a persistence backend.
type StoreFactory func(ctx context.Context, cfg config.StoreConfig) (store.Store, error)

// NotifierFactory builds a carrier notifier from a raw configuration map.
type NotifierFactory func(deps Deps, conf map[string]any) (notify.Notifier, error)

// FallbackFactory builds a marketplace fallback from a raw configuration map.
type FallbackFactory func(deps Deps, conf map[string]any) (dispatch.Fallback, error)

// LogStoreFactory builds a dispatch timeline store. A nil store disables the
// timeline.
type LogStoreFactory func(cfg config.LoggingConfig) (dispatchlog.LogStore, error)

var (
	Stores    = map[string]StoreFactory{}
	Notifiers = map[string]NotifierFactory{}
	Fallbacks = map[string]FallbackFactory{}
	LogStores = map[string]LogStoreFactory{}
)

func RegisterStore(name string, f StoreFactory)       { Stores[name] = f }
func RegisterNotifier(name string, f NotifierFactory) { Notifiers[name] = f }
func RegisterFallback(name string, f FallbackFactory) { Fallbacks[name] = f }
func RegisterLogStore(name string, f LogStoreFactory) { LogStores[name] = f }

// NewStore opens the configured backend.
func NewStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	f, ok := Stores[cfg.Backend]
	if !ok {
		return nil, unknown("store", cfg.Backend, Stores)
	}
	return f(ctx, cfg)
}

// NewNotifier builds the configured notifier.
func NewNotifier(cfg factory.ModuleConfig, deps Deps) (notify.Notifier, error) {
	f, ok := Notifiers[cfg.Type]
	if !ok {
		return nil, unknown("notifier", cfg.Type, Notifiers)
	}
	return f(deps, cfg.Conf)
}

// NewFallback builds the configured fallback.
func NewFallback(cfg factory.ModuleConfig, deps Deps) (dispatch.Fallback, error) {
	f, ok := Fallbacks[cfg.Type]
	if !ok {
		return nil, unknown("fallback", cfg.Type, Fallbacks)
	}
	return f(deps, cfg.Conf)
}

// NewLogStore builds the configured timeline store.
func NewLogStore(cfg config.LoggingConfig) (dispatchlog.LogStore, error) {
	f, ok := LogStores[cfg.Backend]
	if !ok {
		return nil, unknown("log store", cfg.Backend, LogStores)
	}
	return f(cfg)
}

func unknown[F any](kind, name string, m map[string]F) error {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return fmt.Errorf("unknown %s type %q (known: %v)", kind, name, names)
}
