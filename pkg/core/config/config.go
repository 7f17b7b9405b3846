//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package config provides configuration management for the hub using
// [Viper] for flexible configuration sources.
//
// Configuration can be provided via:
//   - YAML configuration files
//   - Environment variables with the OCPIHUB_ prefix
//   - Programmatic defaults
//
// # Configuration File
//
// By default, the hub looks for ocpihub-config.yaml in the current directory.
// Override the location using environment variables:
//
//	OCPIHUB_CONFIG_PATH=/etc/ocpihub
//	OCPIHUB_CONFIG_FILENAME=production-config
//
// Example configuration file:
//
//	log:
//	  level: ".:info;ocpihub.store:debug"
//	server:
//	  port: 8080
//	store:
//	  allowdowngrade: false
//	  path: /var/lib/ocpihub/state.json
//	patch:
//	  implicitcreate:
//	    locations: false
//	registry:
//	  seed: /etc/ocpihub/parties.yaml
//
// # Environment Variables
//
// All configuration keys can be set via environment variables with the
// OCPIHUB_ prefix. Dots in key names become underscores:
//
//	OCPIHUB_LOG_LEVEL=.:debug
//	OCPIHUB_STORE_ALLOWDOWNGRADE=true
//	OCPIHUB_ADMIN_TOKEN=s3cr3t
//
// [Viper]: https://github.com/spf13/viper
package config

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/manetu/ocpihub/internal/logging"
	"github.com/spf13/viper"
)

// Environment variable and default path constants for configuration loading.
const (
	// EnvVarPrefix is the prefix for all hub environment variables.
	// For example, the key "log.level" becomes OCPIHUB_LOG_LEVEL.
	EnvVarPrefix string = "OCPIHUB"

	// ConfigPathEnv is the environment variable that specifies the directory
	// containing the configuration file.
	ConfigPathEnv string = "OCPIHUB_CONFIG_PATH"

	// ConfigFileNameEnv is the environment variable that specifies the
	// configuration file name (without extension).
	ConfigFileNameEnv string = "OCPIHUB_CONFIG_FILENAME"

	// ConfigDefaultPath is the default directory to search for config files.
	ConfigDefaultPath string = "."

	// ConfigDefaultFilename is the default configuration file name (without extension).
	ConfigDefaultFilename string = "ocpihub-config"
)

// Configuration key constants for use with [VConfig].
const (
	logLevel string = "log.level"

	// ServerPort is the TCP port the HTTP server listens on.
	ServerPort string = "server.port"

	// ServerBasePath is the public base URL used to build pagination links and
	// the versions endpoint, e.g. "https://hub.example.com".
	ServerBasePath string = "server.basepath"

	// AllowDowngrade accepts writes whose last_updated is not newer than the stored
	// version.  The protocol leaves this undefined; the default is to reject.
	AllowDowngrade string = "store.allowdowngrade"

	// AllowOverride lets a caller request a downgrade for a single call with
	// ?forceDowngrade=true.
	AllowOverride string = "store.allowoverride"

	// StorePath is the snapshot file of the file persistence backend.  Empty
	// selects the memory backend.
	StorePath string = "store.path"

	// StoreFlushInterval is how often a dirty store is flushed to StorePath.
	StoreFlushInterval string = "store.flushinterval"

	// ImplicitCreate is the key prefix of the per-kind implicit child creation
	// policy, e.g. "patch.implicitcreate.locations".
	ImplicitCreate string = "patch.implicitcreate"

	// RegistrySeed points at a YAML file of parties registered at startup.
	RegistrySeed string = "registry.seed"

	// AdminToken protects the /admin API.  Empty disables it.
	AdminToken string = "admin.token"

	// EnforceIfMatch rejects PUT/PATCH whose If-Match header does not match the
	// stored ETag.  Without it If-Match is ignored.
	EnforceIfMatch string = "http.enforceifmatch"

	// RateLimitRPS is the sustained request rate allowed per caller token.
	// Zero disables rate limiting.
	RateLimitRPS string = "http.ratelimit.rps"

	// RateLimitBurst is the token bucket size per caller token.
	RateLimitBurst string = "http.ratelimit.burst"

	// PaginationMaxLimit caps the limit query parameter of collection GETs.
	PaginationMaxLimit string = "pagination.maxlimit"

	// AuditEnv defines a mapping from access log metadata keys to environment
	// variable names. The values of the specified environment variables are
	// included in every access log record.
	//
	// Example config:
	//
	//	audit:
	//	  env:
	//	    pod: HOSTNAME
	//	    region: AWS_REGION
	AuditEnv string = "audit.env"
)

var (
	once     sync.Once
	loadOnce sync.Once
	loadErr  error

	// VConfig is the global Viper configuration instance for the hub.
	//
	// Use the key constants ([AllowDowngrade], [ServerPort], etc.) to access
	// specific settings, or [Current] to obtain a typed snapshot.
	VConfig *viper.Viper
	logger  = logging.GetLogger("ocpihub.config")
)

// Init initializes the configuration system without loading config files.
//
// This function is safe to call multiple times; subsequent calls are no-ops.
func Init() {
	once.Do(func() {
		doInitialize()
	})
}

func getConfigPath() string {
	configPath, ok := os.LookupEnv(ConfigPathEnv)
	if ok {
		return configPath
	}

	return ConfigDefaultPath
}

func getConfigFileName() string {
	configName, ok := os.LookupEnv(ConfigFileNameEnv)
	if ok {
		return configName
	}

	return ConfigDefaultFilename
}

func doInitialize() {
	VConfig = viper.New()

	// default is './ocpihub-config.yaml' but can be overridden with $(OCPIHUB_CONFIG_PATH)/$(OCPIHUB_CONFIG_FILENAME).yaml
	VConfig.AddConfigPath(getConfigPath())
	VConfig.SetConfigName(getConfigFileName())
	VConfig.SetConfigType("yaml")

	// keys such as 'log.level' become 'OCPIHUB_LOG_LEVEL'
	VConfig.SetEnvPrefix(EnvVarPrefix)
	VConfig.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	VConfig.AutomaticEnv()

	VConfig.SetDefault(logLevel, ".:info")
	VConfig.SetDefault(ServerPort, 8080)
	VConfig.SetDefault(ServerBasePath, "http://localhost:8080")
	VConfig.SetDefault(AllowDowngrade, false)
	VConfig.SetDefault(AllowOverride, true)
	VConfig.SetDefault(StorePath, "")
	VConfig.SetDefault(StoreFlushInterval, "5s")
	VConfig.SetDefault(ImplicitCreate+".locations", false)
	VConfig.SetDefault(RegistrySeed, "")
	VConfig.SetDefault(AdminToken, "")
	VConfig.SetDefault(EnforceIfMatch, false)
	VConfig.SetDefault(RateLimitRPS, 0)
	VConfig.SetDefault(RateLimitBurst, 20)
	VConfig.SetDefault(PaginationMaxLimit, 100)
}

// Load initializes configuration and loads settings from files and environment.
//
// A missing configuration file is not an error.  Subsequent calls after the
// first load are no-ops that return the first result.
func Load() error {
	loadOnce.Do(func() {
		Init()

		// Early log level update from environment variable allows us to debug the config loading.
		earlyLoglevel := os.Getenv("OCPIHUB_LOG_LEVEL")
		if earlyLoglevel != "" {
			if err := logging.UpdateLogLevels(earlyLoglevel); err != nil {
				logger.SysErrorf("Failed updating early log level %s: %+v", earlyLoglevel, err)
				loadErr = err
				return
			}
		}

		logger.SysDebugf("Loading configuration from %s/%s.yaml", getConfigPath(), getConfigFileName())
		err := VConfig.ReadInConfig()
		if err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				logger.SysWarnf("error reading config; using defaults: %+v", err)
			}
			logger.SysDebugf("No config file found at %s/%s.yaml", getConfigPath(), getConfigFileName())
		}

		loglevel := VConfig.GetString(logLevel)
		if err := logging.UpdateLogLevels(loglevel); err != nil {
			logger.SysErrorf("Failed updating log level %s: %+v", loglevel, err)
			loadErr = err
			return
		}

		if logger.IsDebugEnabled() {
			VConfig.DebugTo(logger.Out())
		}
	})

	return loadErr
}

// ResetConfig clears all configuration and reinitializes with defaults.
//
// WARNING: This function is intended for testing only.
func ResetConfig() {
	VConfig = nil
	once = sync.Once{}
	loadOnce = sync.Once{}
	loadErr = nil
	Init()
	// ignore any reset errors
	_ = Load()
}

// GetAuditEnv returns resolved audit environment metadata for access log records.
//
// Environment variables that are not set have empty values in the result.
func GetAuditEnv() map[string]string {
	result := make(map[string]string)

	envConfig := VConfig.GetStringMapString(AuditEnv)
	if envConfig == nil {
		return result
	}

	for key, envVarName := range envConfig {
		result[key] = os.Getenv(envVarName)
	}

	return result
}

// Settings is a typed snapshot of the configuration consumed by the hub and
// the server.  Components receive a Settings value rather than reading
// [VConfig] themselves.
type Settings struct {
	Port               int
	BasePath           string
	AllowDowngrade     bool
	AllowOverride      bool
	StorePath          string
	FlushInterval      time.Duration
	ImplicitCreate     map[string]bool
	RegistrySeed       string
	AdminToken         string
	EnforceIfMatch     bool
	RateLimitRPS       float64
	RateLimitBurst     int
	PaginationMaxLimit int
	// AuditEnv is the resolved [AuditEnv] metadata.
	AuditEnv map[string]string
}

// Current returns the Settings held by [VConfig], calling [Init] if needed.
func Current() Settings {
	Init()

	implicit := make(map[string]bool)
	for kind := range VConfig.GetStringMap(ImplicitCreate) {
		implicit[kind] = VConfig.GetBool(ImplicitCreate + "." + kind)
	}

	flush := VConfig.GetDuration(StoreFlushInterval)
	if flush <= 0 {
		flush = 5 * time.Second
	}

	return Settings{
		Port:               VConfig.GetInt(ServerPort),
		BasePath:           strings.TrimSuffix(VConfig.GetString(ServerBasePath), "/"),
		AllowDowngrade:     VConfig.GetBool(AllowDowngrade),
		AllowOverride:      VConfig.GetBool(AllowOverride),
		StorePath:          VConfig.GetString(StorePath),
		FlushInterval:      flush,
		ImplicitCreate:     implicit,
		RegistrySeed:       VConfig.GetString(RegistrySeed),
		AdminToken:         VConfig.GetString(AdminToken),
		EnforceIfMatch:     VConfig.GetBool(EnforceIfMatch),
		RateLimitRPS:       VConfig.GetFloat64(RateLimitRPS),
		RateLimitBurst:     VConfig.GetInt(RateLimitBurst),
		PaginationMaxLimit: VConfig.GetInt(PaginationMaxLimit),
		AuditEnv:           GetAuditEnv(),
	}
}

// Defaults returns the Settings of an unconfigured hub without touching
// [VConfig].  Tests construct hubs from it.
func Defaults() Settings {
	return Settings{
		Port:               8080,
		BasePath:           "http://localhost:8080",
		AllowOverride:      true,
		FlushInterval:      5 * time.Second,
		ImplicitCreate:     map[string]bool{},
		RateLimitBurst:     20,
		PaginationMaxLimit: 100,
		AuditEnv:           map[string]string{},
	}
}
