package config

import (
	"testing"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"

	"go.viam.com/semseg/logging"
)

func TestLoggingLevel(t *testing.T) {
	defer logging.GlobalLogLevel.SetLevel(zapcore.InfoLevel)
	logger := logging.NewTestLogger(t)

	InitLoggingSettings(logger, false)
	test.That(t, logging.GlobalLogLevel.Level(), test.ShouldEqual, zapcore.InfoLevel)
	UpdateParamsDebug(true)
	test.That(t, logging.GlobalLogLevel.Level(), test.ShouldEqual, zapcore.DebugLevel)
	UpdateParamsDebug(false)
	test.That(t, logging.GlobalLogLevel.Level(), test.ShouldEqual, zapcore.InfoLevel)

	InitLoggingSettings(logger, true)
	UpdateParamsDebug(false)
	test.That(t, logging.GlobalLogLevel.Level(), test.ShouldEqual, zapcore.DebugLevel)
}
