package main

import (
	"context"
	"time"

	"github.com/sells-group/guardianship-cli/internal/config"
	"github.com/sells-group/guardianship-cli/internal/fetcher"
	"github.com/sells-group/guardianship-cli/internal/registry"
	"github.com/sells-group/guardianship-cli/internal/resilience"
	"github.com/sells-group/guardianship-cli/internal/store"
	"github.com/sells-group/guardianship-cli/pkg/box"
)

// newLooker wires the rate-limited fetcher, the portal circuit breaker and
// the registry client from config.
func newLooker(rc config.RegistryConfig) (*registry.Client, error) {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:         rc.UserAgent,
		Timeout:           time.Duration(rc.TimeoutSecs) * time.Second,
		Retry:             resilience.FromRetryConfig(rc.MaxAttempts, rc.InitialBackoffMs, rc.MaxBackoffMs),
		RequestsPerSecond: rc.RequestsPerSecond,
	})

	breakerCfg := resilience.FromCircuitConfig(rc.BreakerThreshold, rc.BreakerResetSecs)
	breakerCfg.OnStateChange = resilience.BreakerLogger("court-portal")

	return registry.NewClient(f, rc.SearchURL,
		registry.WithDetailURLTemplate(rc.DetailURLTemplate),
		registry.WithBreaker(resilience.NewCircuitBreaker(breakerCfg)),
	)
}

func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	return store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
}

func newBoxClient(bc config.BoxConfig) (box.Client, error) {
	return box.NewClient(box.Config{
		ClientID:     bc.ClientID,
		ClientSecret: bc.ClientSecret,
		AccessToken:  bc.AccessToken,
		EnterpriseID: bc.EnterpriseID,
		BaseURL:      bc.BaseURL,
		AuthURL:      bc.AuthURL,
	})
}
