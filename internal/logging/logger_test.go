//
//  Copyright © Manetu Inc. All rights reserved.
//

package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLogging(t *testing.T) {
	logger := newLogger("testmodule")
	var buffer bytes.Buffer
	logger.SetOut(&buffer)
	logger.SetLevel(zapcore.InfoLevel)

	assert.True(t, logger.IsLevelEnabled(zapcore.InfoLevel))
	assert.False(t, logger.IsLevelEnabled(zapcore.DebugLevel))
	assert.False(t, logger.IsDebugEnabled())

	logger.Debug("DE-ABC_CPO", "put", "debug message")
	logger.Debugf("DE-ABC_CPO", "put", "debug message %s", "hello")
	assert.Empty(t, buffer.Bytes())

	buffer.Reset()
	logger.Info("DE-ABC_CPO", "put", "info message")
	assert.NotEmpty(t, buffer.Bytes())
	buffer.Reset()
	logger.Warnf("DE-ABC_CPO", "put", "warning message %s", "hello")
	assert.NotEmpty(t, buffer.Bytes())
	buffer.Reset()
	logger.Errorf("DE-ABC_CPO", "put", "error message %s", "hello")
	assert.NotEmpty(t, buffer.Bytes())
}

func TestLoggingFields(t *testing.T) {
	t.Setenv("LOG_FORMATTER", "json")
	logger := newLogger("ocpihub.test")
	var buffer bytes.Buffer
	logger.SetOut(&buffer)

	logger.Infof("NL-XYZ_EMSP", "list", "listed %d locations", 3)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &entry))
	assert.Equal(t, "NL-XYZ_EMSP", entry["actor"])
	assert.Equal(t, "list", entry["action"])
	assert.Equal(t, "ocpihub.test", entry["module"])
	assert.Equal(t, "listed 3 locations", entry["msg"])
	assert.Equal(t, "info", entry["level"])
}

func TestSysLogging(t *testing.T) {
	logger := newLogger("testsysmodule")
	var buffer bytes.Buffer
	logger.SetOut(&buffer)

	logger.SetLevel(zapcore.ErrorLevel)
	assert.True(t, logger.IsLevelEnabled(zapcore.ErrorLevel))
	assert.False(t, logger.IsLevelEnabled(zapcore.WarnLevel))

	logger.SysDebugf("debug message %s", "hello")
	logger.SysInfo("info message")
	logger.SysInfof("info message %s", "hello")
	logger.SysWarnf("warning message %s", "hello")
	assert.Empty(t, buffer.Bytes())

	logger.SysError("error message")
	assert.NotEmpty(t, buffer.Bytes())
	buffer.Reset()
	logger.SysErrorf("error message %s", "hello")
	assert.Contains(t, buffer.String(), `"actor":"sys"`)
}
