package stdlog_test

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/skywatch/skywatch/internal/stdlog"
)

func TestNewSlogLogger_Text(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := stdlog.NewSlogLogger(&buf, true)

	logger.Info("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("output does not contain expected message: %s", output)
	}
	if !strings.Contains(output, "INFO") {
		t.Errorf("output does not contain INFO level: %s", output)
	}
}

func TestNewSlogLogger_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := stdlog.NewSlogLogger(&buf, false)

	logger.Info("test message")

	output := buf.String()
	if !strings.Contains(output, `"msg":"test message"`) {
		t.Errorf("JSON output does not contain expected message: %s", output)
	}
	if !strings.Contains(output, `"level":"INFO"`) {
		t.Errorf("JSON output does not contain INFO level: %s", output)
	}
}

func TestOutput(t *testing.T) {
	t.Parallel()

	if got := stdlog.Output("stdout"); got != os.Stdout {
		t.Errorf("Output(stdout) = %v, want os.Stdout", got)
	}
	if got := stdlog.Output("stderr"); got != os.Stderr {
		t.Errorf("Output(stderr) = %v, want os.Stderr", got)
	}
	if got := stdlog.Output("bogus"); got != os.Stderr {
		t.Errorf("Output(bogus) = %v, want os.Stderr", got)
	}
}
