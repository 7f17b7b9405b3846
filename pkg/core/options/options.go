//
//  Copyright © Manetu Inc. All rights reserved.
//
// shared between pkg/core and internal/core, and thus must be in a separate package to avoid circular dependencies

package options

import (
	"time"

	"github.com/manetu/ocpihub/internal/logging"
	"github.com/manetu/ocpihub/pkg/core/accesslog"
	"github.com/manetu/ocpihub/pkg/core/config"
	"github.com/manetu/ocpihub/pkg/identity"
	"github.com/manetu/ocpihub/pkg/persistence"
)

var logger = logging.GetLogger("ocpihub")
var agent = "ocpihub"

// Observer is told the outcome of every resource write, e.g. ("locations", "created").
type Observer func(kind, outcome string)

// HubOptions defines the configuration options for initializing a hub.
type HubOptions struct {
	AccessLogFactory accesslog.Factory
	Persistence      persistence.Backend
	Registry         *identity.Registry
	Settings         *config.Settings
	Clock            func() time.Time
	Observer         Observer
}

// HubOptionsFunc is a function that modifies HubOptions.
type HubOptionsFunc func(*HubOptions)

// WithAccessLog configures the access log stream for the hub.
func WithAccessLog(factory accesslog.Factory) HubOptionsFunc {
	return func(o *HubOptions) {
		o.AccessLogFactory = factory
	}
}

// WithPersistence configures where the hub state is saved and reloaded from.
// It overrides the backend selected by the store.path setting.
func WithPersistence(backend persistence.Backend) HubOptionsFunc {
	return func(o *HubOptions) {
		o.Persistence = backend
	}
}

// WithRegistry supplies a pre-populated identity registry.
func WithRegistry(r *identity.Registry) HubOptionsFunc {
	return func(o *HubOptions) {
		o.Registry = r
	}
}

// WithSettings replaces the settings otherwise read from the configuration.
func WithSettings(s config.Settings) HubOptionsFunc {
	return func(o *HubOptions) {
		if s.PaginationMaxLimit <= 0 {
			logger.Warnf(agent, "WithSettings", "pagination limit %d is invalid, using %d", s.PaginationMaxLimit, config.Defaults().PaginationMaxLimit)
			s.PaginationMaxLimit = config.Defaults().PaginationMaxLimit
		}
		o.Settings = &s
	}
}

// WithClock sets the time source used to stamp patched resources, access
// records and the registry.
func WithClock(clock func() time.Time) HubOptionsFunc {
	return func(o *HubOptions) {
		o.Clock = clock
	}
}

// WithObserver registers a callback for write outcomes, used for metrics.
func WithObserver(fn Observer) HubOptionsFunc {
	return func(o *HubOptions) {
		o.Observer = fn
	}
}
