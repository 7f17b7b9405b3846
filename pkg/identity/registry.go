//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package identity is the registry of remote parties and the tokens that
// authenticate them.  It answers one question for the access gate: may the
// holder of this token act in this role?  It knows nothing about resources.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/manetu/ocpihub/internal/logging"
	"github.com/manetu/ocpihub/pkg/ocpi/canonical"
	"github.com/manetu/ocpihub/pkg/ocpi/model"
	"github.com/mohae/deepcopy"
)

var logger = logging.GetLogger("ocpihub.identity")

const agent = "identity"

// Registry errors.  Returned errors wrap one of these.
var (
	ErrNotFound     = errors.New("party not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrDuplicate    = errors.New("duplicate")
	ErrInvalid      = errors.New("invalid party")
)

// Registry holds the registered parties.  It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	parties  map[string]*model.RemoteParty
	order    []string
	tokens   map[string]string
	clock    func() time.Time
	onChange func()
}

// Option configures a [Registry].
type Option func(*Registry)

// WithClock sets the time source of LastUpdated.
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) {
		r.clock = clock
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		parties: make(map[string]*model.RemoteParty),
		tokens:  make(map[string]string),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnChange registers fn to be called after every successful mutation.
func (r *Registry) OnChange(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

func (r *Registry) changed() {
	r.mu.RLock()
	fn := r.onChange
	r.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func copyParty(p *model.RemoteParty) *model.RemoteParty {
	return deepcopy.Copy(p).(*model.RemoteParty)
}

// ComputeHash returns the content hash of p: the SHA-256 of its canonical JSON
// without the hash field.
func ComputeHash(p *model.RemoteParty) (string, error) {
	return canonical.Hash(p, "hash")
}

// stamp refreshes LastUpdated and then the hash, which covers LastUpdated.
func (r *Registry) stamp(p *model.RemoteParty) error {
	p.LastUpdated = r.clock().UTC()
	h, err := ComputeHash(p)
	if err != nil {
		return err
	}
	p.Hash = h
	return nil
}

// applyDefaults fills the fields a party may omit.  Status defaults to ENABLED.
func applyDefaults(p *model.RemoteParty) {
	if p.Status == "" {
		p.Status = model.PartyEnabled
	}
}

func validate(p *model.RemoteParty) error {
	if err := p.Partition().Valid(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, err)
	}
	if !p.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalid, p.Role)
	}
	switch p.Status {
	case model.PartyEnabled, model.PartyDisabled:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, p.Status)
	}
	return validateAccessInfo(p.AccessInfo)
}

func validateAccessInfo(infos []model.AccessInfo) error {
	seen := make(map[string]bool, len(infos))
	for _, ai := range infos {
		if ai.Token == "" {
			return fmt.Errorf("%w: empty token", ErrInvalid)
		}
		if seen[ai.Token] {
			return fmt.Errorf("%w: token listed twice", ErrDuplicate)
		}
		seen[ai.Token] = true
		switch ai.Status {
		case model.GrantAllowed, model.GrantBlocked, model.GrantPending:
		default:
			return fmt.Errorf("%w: unknown token status %q", ErrInvalid, ai.Status)
		}
		for _, role := range ai.Roles {
			if !role.Valid() {
				return fmt.Errorf("%w: unknown role %q", ErrInvalid, role)
			}
		}
	}
	return nil
}

// tokensFree checks that none of infos' tokens belongs to a party other than key.
// Callers hold the write lock.
func (r *Registry) tokensFree(key string, infos []model.AccessInfo) error {
	for _, ai := range infos {
		if owner, ok := r.tokens[ai.Token]; ok && owner != key {
			return fmt.Errorf("%w: token already issued to another party", ErrDuplicate)
		}
	}
	return nil
}

func (r *Registry) indexTokens(key string, old, next []model.AccessInfo) {
	for _, ai := range old {
		delete(r.tokens, ai.Token)
	}
	for _, ai := range next {
		r.tokens[ai.Token] = key
	}
}

// Register adds a party, applying the same defaults as Load.  The identity key and
// every token must be unused.
func (r *Registry) Register(party *model.RemoteParty) (*model.RemoteParty, error) {
	p := copyParty(party)
	applyDefaults(p)
	if err := validate(p); err != nil {
		return nil, err
	}
	if err := r.stamp(p); err != nil {
		return nil, err
	}

	key := p.Key()

	r.mu.Lock()
	if _, exists := r.parties[key]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: party %s already registered", ErrDuplicate, key)
	}
	if err := r.tokensFree(key, p.AccessInfo); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.parties[key] = p
	r.order = append(r.order, key)
	r.indexTokens(key, nil, p.AccessInfo)
	r.mu.Unlock()

	r.changed()
	logger.Infof(agent, "register", "registered %s", key)
	return copyParty(p), nil
}

// Find returns the party with the given identity.
func (r *Registry) Find(countryCode, partyID string, role model.Role) (*model.RemoteParty, error) {
	return r.Get(model.PartyKey(countryCode, partyID, role))
}

// Get returns the party with identity key.
func (r *Registry) Get(key string) (*model.RemoteParty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.parties[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return copyParty(p), nil
}

// List returns every party in registration order.
func (r *Registry) List() []*model.RemoteParty {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.RemoteParty, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, copyParty(r.parties[key]))
	}
	return out
}

// Remove deletes the party with identity key and revokes its tokens.
func (r *Registry) Remove(key string) error {
	r.mu.Lock()
	p, ok := r.parties[key]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	r.indexTokens(key, p.AccessInfo, nil)
	delete(r.parties, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	r.changed()
	logger.Infof(agent, "remove", "removed %s", key)
	return nil
}

// ResolveToken returns the party a token was issued to and the matching
// AccessInfo, regardless of the token status.
func (r *Registry) ResolveToken(token string) (*model.RemoteParty, *model.AccessInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, ok := r.tokens[token]
	if !ok || token == "" {
		return nil, nil, fmt.Errorf("%w: unknown token", ErrUnauthorized)
	}
	p := r.parties[key]
	for i := range p.AccessInfo {
		if p.AccessInfo[i].Token == token {
			ai := p.AccessInfo[i]
			return copyParty(p), &ai, nil
		}
	}
	// the token index is maintained under the same lock as the parties
	return nil, nil, fmt.Errorf("%w: unknown token", ErrUnauthorized)
}

// Authenticate resolves token to an active party.  It fails with
// ErrUnauthorized for an unknown token and ErrForbidden when the token is not
// ALLOWED or the party is DISABLED.
func (r *Registry) Authenticate(token string) (*model.RemoteParty, *model.AccessInfo, error) {
	p, ai, err := r.ResolveToken(token)
	if err != nil {
		return nil, nil, err
	}
	if ai.Status != model.GrantAllowed {
		return p, ai, fmt.Errorf("%w: token is %s", ErrForbidden, ai.Status)
	}
	if p.Status == model.PartyDisabled {
		return p, ai, fmt.Errorf("%w: party %s is disabled", ErrForbidden, p.Key())
	}
	return p, ai, nil
}

// Authorize checks that token may act as role.  It fails like [Registry.Authenticate]
// and with ErrForbidden when role is outside the token's roles.
func (r *Registry) Authorize(token string, role model.Role) (*model.RemoteParty, error) {
	p, _, err := r.AuthorizeAny(token, role)
	return p, err
}

// AuthorizeAny checks that token may act as at least one of roles and returns
// the first it may act as.  With no roles any active token is accepted.
func (r *Registry) AuthorizeAny(token string, roles ...model.Role) (*model.RemoteParty, model.Role, error) {
	p, ai, err := r.Authenticate(token)
	if err != nil {
		return p, "", err
	}
	if len(roles) == 0 {
		return p, p.Role, nil
	}
	for _, role := range roles {
		if ai.Permits(p.Role, role) {
			return p, role, nil
		}
	}

	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	return p, "", fmt.Errorf("%w: token may not act as %s", ErrForbidden, strings.Join(names, " or "))
}

// update applies fn to a private copy of the party and commits it, with a
// fresh LastUpdated and hash, only if fn succeeds.
func (r *Registry) update(key string, fn func(p *model.RemoteParty) error) (*model.RemoteParty, error) {
	r.mu.Lock()
	cur, ok := r.parties[key]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	next := copyParty(cur)
	if err := fn(next); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	if err := validate(next); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	if err := r.tokensFree(key, next.AccessInfo); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	if err := r.stamp(next); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.indexTokens(key, cur.AccessInfo, next.AccessInfo)
	r.parties[key] = next
	r.mu.Unlock()

	r.changed()
	logger.Debugf(agent, "update", "updated %s hash=%s", key, next.Hash)
	return copyParty(next), nil
}

// SetAccessInfo replaces the tokens the party presents to us.
func (r *Registry) SetAccessInfo(key string, infos []model.AccessInfo) (*model.RemoteParty, error) {
	if err := validateAccessInfo(infos); err != nil {
		return nil, err
	}
	infos = deepcopy.Copy(infos).([]model.AccessInfo)
	return r.update(key, func(p *model.RemoteParty) error {
		p.AccessInfo = infos
		return nil
	})
}

// SetTokenStatus changes the grant status of one token of the party.
func (r *Registry) SetTokenStatus(key, token string, status model.GrantStatus) (*model.RemoteParty, error) {
	return r.update(key, func(p *model.RemoteParty) error {
		for i := range p.AccessInfo {
			if p.AccessInfo[i].Token == token {
				p.AccessInfo[i].Status = status
				return nil
			}
		}
		return fmt.Errorf("%w: token not issued to %s", ErrNotFound, key)
	})
}

// SetRemoteAccessInfo replaces the tokens we present to the party.
func (r *Registry) SetRemoteAccessInfo(key string, infos []model.RemoteAccessInfo) (*model.RemoteParty, error) {
	infos = deepcopy.Copy(infos).([]model.RemoteAccessInfo)
	return r.update(key, func(p *model.RemoteParty) error {
		p.RemoteAccessInfo = infos
		return nil
	})
}

// SetStatus enables or disables the party.
func (r *Registry) SetStatus(key string, status model.PartyStatus) (*model.RemoteParty, error) {
	return r.update(key, func(p *model.RemoteParty) error {
		p.Status = status
		return nil
	})
}

// SetBusinessDetails replaces the party's business details.
func (r *Registry) SetBusinessDetails(key string, details model.BusinessDetails) (*model.RemoteParty, error) {
	details = deepcopy.Copy(details).(model.BusinessDetails)
	return r.update(key, func(p *model.RemoteParty) error {
		p.BusinessDetails = details
		return nil
	})
}

// Load replaces the registry content with parties, keeping their LastUpdated
// and recomputing hashes.  It does not fire the change hook.
func (r *Registry) Load(parties []*model.RemoteParty) error {
	next := make(map[string]*model.RemoteParty, len(parties))
	tokens := make(map[string]string)
	order := make([]string, 0, len(parties))

	for _, party := range parties {
		p := copyParty(party)
		applyDefaults(p)
		if err := validate(p); err != nil {
			return err
		}
		key := p.Key()
		if _, dup := next[key]; dup {
			return fmt.Errorf("%w: party %s listed twice", ErrDuplicate, key)
		}
		for _, ai := range p.AccessInfo {
			if _, dup := tokens[ai.Token]; dup {
				return fmt.Errorf("%w: token issued to more than one party", ErrDuplicate)
			}
			tokens[ai.Token] = key
		}
		h, err := ComputeHash(p)
		if err != nil {
			return err
		}
		p.Hash = h
		next[key] = p
		order = append(order, key)
	}

	r.mu.Lock()
	r.parties = next
	r.tokens = tokens
	r.order = order
	r.mu.Unlock()
	return nil
}
