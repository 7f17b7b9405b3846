//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package core provides the primary interface of the hub: a single
// [Hub.Handle] entry point that authorizes, resolves and serves OCPI module
// requests against the in-process resource stores.
//
// Every request passes the same pipeline.  The access gate checks the
// caller's token and role against the identity registry, the resolution
// chain turns the path into a resource handle, and the request is either
// read from a store or written through the patch engine and the concurrency
// controller.  Each gate decision is sent to the access log.
//
// # Quick Start
//
// Create a hub with default options (stdout access log, memory persistence):
//
//	hub, err := core.NewHub()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Serve a request:
//
//	outcome := hub.Handle(ctx, &types.Request{
//	    Method:   http.MethodGet,
//	    Kind:     "locations",
//	    Segments: []string{"DE", "ABC", "LOC1"},
//	    Token:    token,
//	})
//
// # Configuration
//
// The hub supports various configuration options via functional options:
//
//	hub, err := core.NewHub(
//	    options.WithPersistence(persistence.NewFile("/var/lib/ocpihub/state.json")),
//	    options.WithAccessLog(accesslog.NewStdoutFactory()),
//	)
//
// See the [options] package for all available configuration options.
package core

import (
	"context"

	"github.com/manetu/ocpihub/internal/core"
	"github.com/manetu/ocpihub/internal/logging"
	"github.com/manetu/ocpihub/pkg/core/accesslog"
	"github.com/manetu/ocpihub/pkg/core/config"
	"github.com/manetu/ocpihub/pkg/core/options"
	"github.com/manetu/ocpihub/pkg/core/types"
	"github.com/manetu/ocpihub/pkg/identity"
	"github.com/manetu/ocpihub/pkg/persistence"
	"github.com/pkg/errors"
)

var logger = logging.GetLogger("ocpihub")
var agent = "ocpihub"

// Hub is the primary interface for serving OCPI module requests.
//
// Implementations of Hub are safe for concurrent use by multiple goroutines.
type Hub interface {
	// Handle serves one request.  Failures are part of the outcome; Handle
	// never panics on client input and never returns a partial write.
	Handle(ctx context.Context, req *types.Request) types.Outcome

	// Registry returns the identity registry, for administration.
	Registry() *identity.Registry

	// RemoveParty deletes a party.  With purge set, the resources of its
	// partition go too, unless another party still owns the partition.
	RemoveParty(key string, purge bool) (int, error)

	// Settings returns the effective settings.
	Settings() config.Settings

	// Snapshot captures the complete state.
	Snapshot() *persistence.Snapshot

	// Start begins background persistence until ctx is done.
	Start(ctx context.Context)

	// Stop flushes pending state and releases the access log.
	Stop() error
}

// HubImpl is the default implementation of the [Hub] interface.
//
// Use [NewHub] to create a properly initialized instance.
type HubImpl struct {
	instance *core.Hub
}

// NewHub creates and initializes a new [Hub] instance.
//
// By default, the hub uses a stdout access log and the settings read from the
// configuration.  A store path in the configuration selects file persistence,
// otherwise state lives in memory only.
//
// NewHub loads configuration from environment variables and config files
// before initializing the hub. See the [config] package for details.
//
// Returns an error if configuration loading fails, if the saved state cannot
// be restored, or if the registry seed is invalid.
func NewHub(hubOptions ...options.HubOptionsFunc) (Hub, error) {
	err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "error loading config")
	}

	opts := &options.HubOptions{
		AccessLogFactory: accesslog.NewStdoutFactory(),
	}
	for _, o := range hubOptions {
		o(opts)
	}

	if opts.Settings == nil {
		s := config.Current()
		opts.Settings = &s
	}
	if opts.Persistence == nil && opts.Settings.StorePath != "" {
		logger.Infof(agent, "NewHub", "persisting state to %s", opts.Settings.StorePath)
		opts.Persistence = persistence.NewFile(opts.Settings.StorePath)
	}

	instance, err := core.NewHub(opts)
	if err != nil {
		return nil, err
	}

	return &HubImpl{instance: instance}, nil
}

// Handle serves one request.
//
// The outcome carries the HTTP status, the OCPI status code and message, the
// data to render and, for single objects, the entity tag and modification
// time.  See the [types] package for the request and outcome structures.
func (h *HubImpl) Handle(ctx context.Context, req *types.Request) types.Outcome {
	logger.Debug(agent, "Handle", "Enter")
	defer logger.Debug(agent, "Handle", "Exit")

	return h.instance.Handle(ctx, req)
}

// Registry returns the identity registry.
func (h *HubImpl) Registry() *identity.Registry {
	return h.instance.Registry()
}

// RemoveParty deletes a party and, with purge set, the resources of its
// partition.  It returns the number of resources purged.
func (h *HubImpl) RemoveParty(key string, purge bool) (int, error) {
	return h.instance.RemoveParty(key, purge)
}

// Settings returns the effective settings.
func (h *HubImpl) Settings() config.Settings {
	return h.instance.Settings()
}

// Snapshot captures the complete state.
func (h *HubImpl) Snapshot() *persistence.Snapshot {
	return h.instance.Snapshot()
}

// Start begins background persistence until ctx is done.
func (h *HubImpl) Start(ctx context.Context) {
	h.instance.Start(ctx)
}

// Stop flushes pending state and releases the access log.
func (h *HubImpl) Stop() error {
	return h.instance.Stop()
}
