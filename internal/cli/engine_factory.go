package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/ferry"
	"github.com/aretw0/ferry/internal/config"
)

// NewEngine builds an engine from the configuration. The returned close
// function releases the history backend.
func NewEngine(cfg *config.Config, logger *slog.Logger, opts ...ferry.Option) (*ferry.Engine, func() error, error) {
	if cfg.BaseURL == "" {
		return nil, nil, errors.New("base url is required (--base-url or base_url in the config file)")
	}

	storage, err := config.OpenHistory(cfg.History)
	if err != nil {
		return nil, nil, err
	}

	engineOpts := []ferry.Option{
		ferry.WithLogger(logger),
		ferry.WithLifecycleHooks(DebugHooks(logger)),
		ferry.WithHTTPClient(&http.Client{Timeout: cfg.Timeout.Duration}),
		ferry.WithStore(storage.Store),
		ferry.WithRootID(cfg.RootID),
	}
	if cfg.History.Scope != "" {
		engineOpts = append(engineOpts, ferry.WithScope(cfg.History.Scope))
	}
	if storage.Locker != nil {
		engineOpts = append(engineOpts, ferry.WithLocker(storage.Locker))
	}
	engineOpts = append(engineOpts, opts...)

	engine, err := ferry.New(cfg.BaseURL, engineOpts...)
	if err != nil {
		storage.Close()
		return nil, nil, fmt.Errorf("error initializing ferry: %w", err)
	}
	return engine, storage.Close, nil
}
