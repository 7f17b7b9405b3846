//
//  Copyright © Manetu Inc. All rights reserved.
//

package test

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/manetu/ocpihub/internal/core/accesslog"
	"github.com/manetu/ocpihub/pkg/core"
	"github.com/manetu/ocpihub/pkg/core/config"
	"github.com/manetu/ocpihub/pkg/core/options"

	events "github.com/manetu/ocpihub/pkg/core/accesslog"
)

// TestConfigFilename is the name of the test configuration file (without extension).
const TestConfigFilename = "ocpihub-config"

// SeedFilename is the party seed used by tests.
const SeedFilename = "parties.yaml"

// GetTestdataPath returns the absolute path to the testdata directory.
// This uses runtime.Caller to locate the source file and compute the path
// relative to it, ensuring tests work regardless of the working directory.
func GetTestdataPath() string {
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		// Fallback to relative path if runtime.Caller fails
		return "testdata"
	}
	// thisFile is internal/core/test/instance.go
	// We need to go up 3 levels to reach the project root, then into testdata
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(filepath.Dir(thisFile))))
	return filepath.Join(projectRoot, "testdata")
}

// SetupTestConfig configures the environment to use the test configuration.
// This sets both OCPIHUB_CONFIG_PATH and OCPIHUB_CONFIG_FILENAME to ensure tests
// use the correct configuration regardless of user environment variables.
func SetupTestConfig() error {
	if err := os.Setenv(config.ConfigPathEnv, GetTestdataPath()); err != nil {
		return err
	}
	if err := os.Setenv(config.ConfigFileNameEnv, TestConfigFilename); err != nil {
		return err
	}
	config.ResetConfig()
	return nil
}

// NewTestHub instantiates a hub suitable for unit-testing, seeded with the
// parties of testdata/parties.yaml.  Access records are delivered to the
// returned channel, which buffers depth records.
func NewTestHub(depth int, opts ...options.HubOptionsFunc) (core.Hub, chan *events.AccessRecord, error) {
	if err := SetupTestConfig(); err != nil {
		return nil, nil, err
	}

	settings := config.Current()
	settings.RegistrySeed = filepath.Join(GetTestdataPath(), SeedFilename)

	ch := make(chan *events.AccessRecord, depth)
	opts = append([]options.HubOptionsFunc{
		options.WithSettings(settings),
		options.WithAccessLog(accesslog.NewChannelLogger(ch)),
	}, opts...)

	hub, err := core.NewHub(opts...)
	if err != nil {
		return nil, nil, err
	}

	return hub, ch, nil
}
