//
//  Copyright © Manetu Inc. All rights reserved.
//

package logging

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

// LogManager keeps track of all instantiated loggers so a level string can be
// applied to modules created before and after it was parsed.
type LogManager struct {
	loggers  map[string]*Logger
	explicit map[string]bool
	defLevel zapcore.Level
}

var (
	manager *LogManager
	mu      sync.RWMutex
	once    sync.Once
)

// resetForTesting resets the manager state - only for testing
func resetForTesting() {
	mu.Lock()
	defer mu.Unlock()
	manager = nil
	once = sync.Once{}
}

func initManager() {
	manager = &LogManager{
		loggers:  make(map[string]*Logger),
		explicit: make(map[string]bool),
		defLevel: zapcore.InfoLevel,
	}
}

// GetLogger returns the logger for the specified module, creating it at the
// current default level on first use.
func GetLogger(module string) *Logger {
	once.Do(initManager)

	mu.RLock()
	l := manager.loggers[module]
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()

	if l := manager.loggers[module]; l != nil {
		return l
	}

	l = newLogger(module)
	l.SetLevel(manager.defLevel)
	manager.loggers[module] = l
	return l
}

// ParseLevel converts a level name to a zapcore.Level.  "trace" maps to debug
// since zap has no trace level.
func ParseLevel(levelStr string) (zapcore.Level, error) {
	switch strings.ToLower(levelStr) {
	case "panic":
		return zapcore.PanicLevel, nil
	case "fatal":
		return zapcore.FatalLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "debug", "trace":
		return zapcore.DebugLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", levelStr)
	}
}

// UpdateLogLevels applies a level string of the form
// "ocpihub.store:debug;ocpihub.server:warn;.:info".  The "." module sets the
// default for every module without an explicit entry.  Whitespace is ignored.
// Malformed entries are reported after the valid ones have been applied.
func UpdateLogLevels(logstr string) error {
	once.Do(initManager)

	logstr = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, logstr)

	mu.Lock()
	defer mu.Unlock()

	var bad []string
	hasDefault := false
	var defaultLevel zapcore.Level

	for _, entry := range strings.Split(logstr, ";") {
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 2 || parts[0] == "" {
			bad = append(bad, entry)
			continue
		}
		level, err := ParseLevel(parts[1])
		if err != nil {
			bad = append(bad, entry)
			continue
		}

		if parts[0] == "." {
			defaultLevel = level
			hasDefault = true
			continue
		}

		manager.explicit[parts[0]] = true
		l := manager.loggers[parts[0]]
		if l == nil {
			l = newLogger(parts[0])
			manager.loggers[parts[0]] = l
		}
		l.SetLevel(level)
	}

	if hasDefault {
		manager.defLevel = defaultLevel
		for mod, l := range manager.loggers {
			if !manager.explicit[mod] {
				l.SetLevel(defaultLevel)
			}
		}
	}

	if len(bad) > 0 {
		return fmt.Errorf("invalid log level entries: %s", strings.Join(bad, ";"))
	}
	return nil
}
