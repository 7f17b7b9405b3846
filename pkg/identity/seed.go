//
//  Copyright © Manetu Inc. All rights reserved.
//

package identity

import (
	"bytes"
	"io"
	"os"

	"github.com/manetu/ocpihub/pkg/ocpi/model"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Seed is the YAML document of parties registered at startup:
//
//	parties:
//	  - country_code: DE
//	    party_id: ABC
//	    role: CPO
//	    business_details:
//	      name: ACME Charging
//	    access_info:
//	      - token: 5e1f9b0e
//	        status: ALLOWED
//	        roles: [CPO]
type Seed struct {
	Parties []*model.RemoteParty `yaml:"parties"`
}

// ParseSeed decodes a seed document.  Unknown keys are rejected.
func ParseSeed(r io.Reader) (*Seed, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var seed Seed
	if err := dec.Decode(&seed); err != nil {
		if errors.Is(err, io.EOF) {
			return &seed, nil
		}
		return nil, errors.Wrap(err, "error parsing seed")
	}
	return &seed, nil
}

// LoadSeed reads and decodes the seed file at path.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
	if err != nil {
		return nil, errors.Wrapf(err, "error reading seed %s", path)
	}
	return ParseSeed(bytes.NewReader(data))
}

// Apply registers every party of the seed, stopping at the first failure.
func (s *Seed) Apply(r *Registry) ([]*model.RemoteParty, error) {
	out := make([]*model.RemoteParty, 0, len(s.Parties))
	for _, p := range s.Parties {
		registered, err := r.Register(p)
		if err != nil {
			return out, errors.Wrapf(err, "error registering %s", p.Key())
		}
		out = append(out, registered)
	}
	return out, nil
}
