package plugins

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/carrierchain/config"
	"github.com/kilianp07/carrierchain/core/dispatch"
	dispatchlog "github.com/kilianp07/carrierchain/core/dispatch/logging"
	"github.com/kilianp07/carrierchain/core/factory"
	"github.com/kilianp07/carrierchain/core/notify"
	"github.com/kilianp07/carrierchain/core/store"
	"github.com/kilianp07/carrierchain/infra/marketplace"
	"github.com/kilianp07/carrierchain/infra/mqtt"
	"github.com/kilianp07/carrierchain/infra/store/memory"
	"github.com/kilianp07/carrierchain/infra/store/mysql"
)

var errNoBroker = errors.New("mqtt broker not configured")

// mockConf configures the in-memory publisher.
type mockConf struct {
	// FailIDs lists carrier or order ids whose publish fails.
	FailIDs []string `json:"fail_ids"`
}

func newMock(conf map[string]any) (*mqtt.MockPublisher, error) {
	var c mockConf
	if err := factory.Decode(conf, &c); err != nil {
		return nil, fmt.Errorf("mock conf: %w", err)
	}
	p := mqtt.NewMockPublisher()
	for _, id := range c.FailIDs {
		p.FailIDs[id] = true
	}
	return p, nil
}

func init() {
	RegisterStore(config.StoreMemory, func(_ context.Context, cfg config.StoreConfig) (store.Store, error) {
		s := memory.New()
		if cfg.Fixtures != "" {
			if err := s.LoadFixtures(cfg.Fixtures); err != nil {
				return nil, err
			}
		}
		return s, nil
	})
	RegisterStore(config.StoreMySQL, func(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
		s, err := mysql.Open(ctx, cfg.MySQL)
		if err != nil {
			return nil, err
		}
		if cfg.Fixtures != "" {
			f, err := store.ReadFixtures(cfg.Fixtures)
			if err == nil {
				err = s.Seed(ctx, f)
			}
			if err != nil {
				_ = s.Close()
				return nil, err
			}
		}
		return s, nil
	})

	RegisterNotifier("mqtt", func(deps Deps, _ map[string]any) (notify.Notifier, error) {
		if deps.MQTT == nil {
			return nil, errNoBroker
		}
		return mqtt.NewNotifier(deps.MQTT), nil
	})
	RegisterNotifier("mock", func(_ Deps, conf map[string]any) (notify.Notifier, error) {
		return newMock(conf)
	})
	RegisterNotifier("nop", func(Deps, map[string]any) (notify.Notifier, error) {
		return notify.NopNotifier{}, nil
	})

	RegisterFallback("noop", func(Deps, map[string]any) (dispatch.Fallback, error) {
		return dispatch.NoopFallback{}, nil
	})
	RegisterFallback("mqtt", func(deps Deps, _ map[string]any) (dispatch.Fallback, error) {
		if deps.MQTT == nil {
			return nil, errNoBroker
		}
		return mqtt.NewMarketplaceFallback(deps.MQTT), nil
	})
	RegisterFallback("mock", func(_ Deps, conf map[string]any) (dispatch.Fallback, error) {
		return newMock(conf)
	})
	RegisterFallback("http", func(deps Deps, conf map[string]any) (dispatch.Fallback, error) {
		var c marketplace.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, fmt.Errorf("marketplace conf: %w", err)
		}
		return marketplace.New(c, deps.Logger)
	})

	RegisterLogStore(config.TimelineJSONL, func(lc config.LoggingConfig) (dispatchlog.LogStore, error) {
		return dispatchlog.NewJSONLStore(lc.Path)
	})
	RegisterLogStore(config.TimelineRotating, func(lc config.LoggingConfig) (dispatchlog.LogStore, error) {
		return dispatchlog.NewRotatingJSONLStore(lc.Path, lc.MaxSizeMB, lc.MaxBackups, lc.MaxAgeDays)
	})
	RegisterLogStore(config.TimelineSQLite, func(lc config.LoggingConfig) (dispatchlog.LogStore, error) {
		return dispatchlog.NewSQLiteStore(lc.Path)
	})
	RegisterLogStore(config.TimelineNone, func(config.LoggingConfig) (dispatchlog.LogStore, error) {
		return nil, nil
	})
}
