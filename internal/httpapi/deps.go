package httpapi

import (
	"context"
	"sync/atomic"

	"realty-engine/internal/config"
	"realty-engine/internal/events"
	"realty-engine/internal/poll"
	"realty-engine/internal/store"
)

// PropertyLister reads stored listings for the API.
type PropertyLister interface {
	ListProperties(ctx context.Context, limit int) ([]store.StoredProperty, error)
	CountProperties(ctx context.Context) (int, error)
}

// RunController starts runs and reports on them.
type RunController interface {
	Trigger() bool
	Status() poll.Status
}

type Deps struct {
	Store PropertyLister
	Hub   *events.Hub
	Runs  RunController

	// Atomic stores
	CfgVal *atomic.Value // stores config.Config

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)
}
