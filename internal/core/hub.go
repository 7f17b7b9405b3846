//
//  Copyright © Manetu Inc. All rights reserved.
//

package core

import (
	"context"
	"net/http"
	"time"

	"github.com/manetu/ocpihub/internal/logging"
	"github.com/manetu/ocpihub/pkg/common"
	"github.com/manetu/ocpihub/pkg/core/accesslog"
	"github.com/manetu/ocpihub/pkg/core/config"
	"github.com/manetu/ocpihub/pkg/core/options"
	"github.com/manetu/ocpihub/pkg/core/types"
	"github.com/manetu/ocpihub/pkg/identity"
	"github.com/manetu/ocpihub/pkg/ocpi/model"
	"github.com/manetu/ocpihub/pkg/ocpi/schema"
	"github.com/manetu/ocpihub/pkg/patch"
	"github.com/manetu/ocpihub/pkg/persistence"
	"github.com/manetu/ocpihub/pkg/store"
	"github.com/pkg/errors"
)

var logger = logging.GetLogger("ocpihub")

const agent string = "hub"

// Hub owns the stores, the registry and the patch engine, and serves
// requests through the access gate.
type Hub struct {
	settings config.Settings
	clock    func() time.Time
	registry *identity.Registry
	patcher  *patch.Engine
	gate     *gate
	observer options.Observer

	locations *store.Store[*model.Location]
	sessions  *store.Store[*model.Session]
	tariffs   *store.Store[*model.Tariff]
	cdrs      *store.Store[*model.CDR]
	tokens    *store.Store[*model.Token]
	commands  *store.Store[*model.CommandResult]

	modules map[string]module

	backend persistence.Backend
	flusher *persistence.Flusher
	audit   accesslog.Stream
}

// NewHub returns a hub built from fully defaulted options.  The saved state
// of the persistence backend is restored and the registry seed applied.
func NewHub(opts *options.HubOptions) (*Hub, error) {
	settings := config.Defaults()
	if opts.Settings != nil {
		settings = *opts.Settings
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	registry := opts.Registry
	if registry == nil {
		registry = identity.NewRegistry(identity.WithClock(clock))
	}
	backend := opts.Persistence
	if backend == nil {
		backend = persistence.NewMemory()
	}

	factory := opts.AccessLogFactory
	if factory == nil {
		factory = accesslog.NewNullFactory()
	}
	al, err := factory.NewStream()
	if err != nil {
		return nil, err
	}

	h := &Hub{
		settings:  settings,
		clock:     clock,
		registry:  registry,
		patcher:   patch.NewEngine(patch.WithClock(clock), patch.WithImplicitCreate(settings.ImplicitCreate)),
		observer:  opts.Observer,
		locations: store.New[*model.Location](schema.KindLocations),
		sessions:  store.New[*model.Session](schema.KindSessions),
		tariffs:   store.New[*model.Tariff](schema.KindTariffs),
		cdrs:      store.New[*model.CDR](schema.KindCDRs),
		tokens:    store.New[*model.Token](schema.KindTokens),
		commands:  store.New[*model.CommandResult](schema.KindCommands),
		backend:   backend,
		audit:     al,
	}
	h.gate = &gate{registry: registry, audit: al, env: settings.AuditEnv, clock: clock}
	h.modules = h.buildModules()

	saved, err := backend.Load()
	if err != nil {
		al.Close()
		return nil, errors.Wrap(err, "error restoring state")
	}
	if saved != nil {
		if err := h.Restore(saved); err != nil {
			al.Close()
			return nil, err
		}
	}

	if settings.RegistrySeed != "" {
		if err := h.seed(settings.RegistrySeed); err != nil {
			al.Close()
			return nil, err
		}
	}

	h.flusher = persistence.NewFlusher(backend, h.Snapshot, settings.FlushInterval)
	mark := h.flusher.Mark
	h.registry.OnChange(mark)
	h.locations.OnChange(mark)
	h.sessions.OnChange(mark)
	h.tariffs.OnChange(mark)
	h.cdrs.OnChange(mark)
	h.tokens.OnChange(mark)
	h.commands.OnChange(mark)

	return h, nil
}

// seed registers the parties of the seed file that are not already known.
func (h *Hub) seed(path string) error {
	s, err := identity.LoadSeed(path)
	if err != nil {
		return err
	}

	fresh := &identity.Seed{}
	for _, p := range s.Parties {
		if _, err := h.registry.Get(p.Key()); err == nil {
			logger.Debugf(agent, "seed", "%s already registered", p.Key())
			continue
		}
		fresh.Parties = append(fresh.Parties, p)
	}

	registered, err := fresh.Apply(h.registry)
	if err != nil {
		return err
	}
	logger.SysInfof("seeded %d parties from %s", len(registered), path)
	return nil
}

// Registry returns the identity registry.
func (h *Hub) Registry() *identity.Registry {
	return h.registry
}

// RemoveParty deletes the party with identity key from the registry.  With
// purge set, the resources of its partition are deleted as well, unless
// another registered party still owns the partition.  It returns the number
// of resources purged.
func (h *Hub) RemoveParty(key string, purge bool) (int, error) {
	party, err := h.registry.Get(key)
	if err != nil {
		return 0, err
	}
	if err := h.registry.Remove(key); err != nil {
		return 0, err
	}
	if !purge {
		return 0, nil
	}

	part := party.Partition()
	for _, other := range h.registry.List() {
		if other.Partition() == part {
			logger.Infof(agent, "removeParty", "partition %s kept, still owned by %s", part, other.Key())
			return 0, nil
		}
	}

	n := h.locations.RemoveAll(part) +
		h.sessions.RemoveAll(part) +
		h.tariffs.RemoveAll(part) +
		h.cdrs.RemoveAll(part) +
		h.tokens.RemoveAll(part) +
		h.commands.RemoveAll(part)
	logger.Infof(agent, "removeParty", "purged %d resources of partition %s", n, part)
	return n, nil
}

// Settings returns the settings the hub was built with.
func (h *Hub) Settings() config.Settings {
	return h.settings
}

// Handle serves one request.  Every outcome, including failures, is returned
// as a renderable [types.Outcome].  The token is checked before anything
// else, including the state of ctx.
func (h *Hub) Handle(ctx context.Context, req *types.Request) types.Outcome {
	logger.Debugf(agent, "handle", "Enter %s %s %v", req.Method, req.Kind, req.Segments)
	defer logger.Debug(agent, "handle", "Exit")

	switch req.Kind {
	case types.KindCredentials, types.KindVersions, types.KindVersionDetails:
		return h.discovery(ctx, req)
	}

	m, ok := h.modules[req.Kind]
	if !ok {
		// the token is checked first so that an invalid token never learns which modules exist
		if _, _, f := h.gate.admit(req, rule{}); f != nil {
			return failure(f)
		}
		return failure(common.NewError(common.ClassNotFound, "unknown module "+req.Kind))
	}

	k := m.info()
	party, role, f := h.gate.admit(req, k.rule(req.Method))
	if f != nil {
		return failure(f)
	}
	if err := ctx.Err(); err != nil {
		return failure(common.Cancelled(err))
	}

	c := &call{ctx: ctx, req: req, party: party, role: role, hub: h, kind: k}
	return m.serve(c)
}

// discovery serves the credentials, versions and version details endpoints,
// open to every active party.
func (h *Hub) discovery(ctx context.Context, req *types.Request) types.Outcome {
	party, _, f := h.gate.admit(req, rule{})
	if f != nil {
		return failure(f)
	}
	if err := ctx.Err(); err != nil {
		return failure(common.Cancelled(err))
	}
	if req.Method != http.MethodGet {
		return failure(common.NewError(common.ClassNotAllowed, req.Method+" is not supported on "+req.Kind))
	}

	switch req.Kind {
	case types.KindCredentials:
		return success(http.StatusOK, party.Credentials(req.Token))
	case types.KindVersions:
		return success(http.StatusOK, []versionInfo{{Version: types.Version, URL: h.settings.BasePath + types.ModulePath}})
	default:
		details := versionDetails{Version: types.Version}
		for _, name := range moduleOrder {
			details.Endpoints = append(details.Endpoints, endpoint{
				Identifier: name,
				Role:       "RECEIVER",
				URL:        h.settings.BasePath + types.ModulePath + "/" + name,
			})
		}
		return success(http.StatusOK, details)
	}
}

type versionInfo struct {
	Version string `json:"version"`
	URL     string `json:"url"`
}

type endpoint struct {
	Identifier string `json:"identifier"`
	Role       string `json:"role"`
	URL        string `json:"url"`
}

type versionDetails struct {
	Version   string     `json:"version"`
	Endpoints []endpoint `json:"endpoints"`
}

func (h *Hub) observe(kind, outcome string) {
	if h.observer != nil {
		h.observer(kind, outcome)
	}
}

// Snapshot captures the complete hub state.
func (h *Hub) Snapshot() *persistence.Snapshot {
	return &persistence.Snapshot{
		Version:   persistence.SnapshotVersion,
		SavedAt:   h.clock().UTC(),
		Parties:   h.registry.List(),
		Locations: h.locations.Snapshot(),
		Sessions:  h.sessions.Snapshot(),
		Tariffs:   h.tariffs.Snapshot(),
		CDRs:      h.cdrs.Snapshot(),
		Tokens:    h.tokens.Snapshot(),
		Commands:  h.commands.Snapshot(),
	}
}

// Restore replaces the hub state with s.
func (h *Hub) Restore(s *persistence.Snapshot) error {
	if err := h.registry.Load(s.Parties); err != nil {
		return errors.Wrap(err, "error restoring parties")
	}
	h.locations.Load(s.Locations)
	h.sessions.Load(s.Sessions)
	h.tariffs.Load(s.Tariffs)
	h.cdrs.Load(s.CDRs)
	h.tokens.Load(s.Tokens)
	h.commands.Load(s.Commands)

	logger.SysInfof("restored %d parties and %d locations from snapshot of %s",
		len(s.Parties), len(s.Locations), s.SavedAt.Format(time.RFC3339))
	return nil
}

// Start flushes the state in the background until ctx is done.
func (h *Hub) Start(ctx context.Context) {
	go h.flusher.Run(ctx)
}

// Stop flushes pending state and closes the access log.
func (h *Hub) Stop() error {
	defer h.audit.Close()
	return h.flusher.Flush()
}
