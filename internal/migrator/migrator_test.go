package migrator_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/skywatch/skywatch/internal/migrator"
	"github.com/stretchr/testify/assert"
)

func getTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	return logger, &buf
}

func TestNewAnalyticsMigrator_InvalidDSN(t *testing.T) {
	t.Parallel()

	logger, _ := getTestLogger()

	_, err := migrator.NewAnalyticsMigrator("not-a-dsn", logger)
	assert.Error(t, err)
}
