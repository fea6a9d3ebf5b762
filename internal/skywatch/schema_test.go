package skywatch_test

import (
	"testing"

	"github.com/skywatch/skywatch/internal/skywatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateField(t *testing.T) {
	t.Parallel()

	assert.True(t, skywatch.ValidateField("error_fingerprint"))
	assert.True(t, skywatch.ValidateField("dedup_count"))
	assert.True(t, skywatch.ValidateField("lcp"))
	assert.False(t, skywatch.ValidateField("no_such_column"))
	assert.False(t, skywatch.ValidateField(""))
	assert.False(t, skywatch.ValidateField("ERROR_FINGERPRINT"))
}

func TestFieldByName(t *testing.T) {
	t.Parallel()

	cfg, ok := skywatch.FieldByName("error_fingerprint")
	require.True(t, ok)
	assert.Equal(t, skywatch.CategoryError, cfg.Category)
	assert.True(t, cfg.Groupable)
	assert.True(t, cfg.Aggregatable)

	cfg, ok = skywatch.FieldByName("user_agent")
	require.True(t, ok)
	assert.False(t, cfg.Groupable)
	assert.False(t, cfg.Aggregatable)

	// context blobs are stored but never aggregated
	for _, name := range []string{"custom_tags", "breadcrumbs", "extra_data"} {
		cfg, ok = skywatch.FieldByName(name)
		require.True(t, ok, name)
		assert.False(t, cfg.Aggregatable, name)
	}

	_, ok = skywatch.FieldByName("bogus")
	assert.False(t, ok)
}

func TestFieldCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 67, skywatch.FieldCount())
}

func TestWindow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		window   skywatch.Window
		valid    bool
		timeFunc string
	}{
		{window: skywatch.WindowHour, valid: true, timeFunc: "toStartOfHour"},
		{window: skywatch.WindowDay, valid: true, timeFunc: "toStartOfDay"},
		{window: skywatch.WindowWeek, valid: true, timeFunc: "toMonday"},
		{window: skywatch.Window("month"), valid: false, timeFunc: ""},
		{window: skywatch.Window(""), valid: false, timeFunc: ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, tt.window.Valid(), "window %q", tt.window)
		assert.Equal(t, tt.timeFunc, tt.window.TimeFunction(), "window %q", tt.window)
	}
}
