package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
)

func TestSanitizePayload_MasksNestedSensitiveKeys(t *testing.T) {
	payload := map[string]any{
		"accountId": "acc-1",
		"auth": map[string]any{
			"channel_key": "secret-value",
			"Password":    "hunter2",
		},
		"items": []any{map[string]any{"pin": "1234"}},
	}

	out, ok := SanitizePayload(payload).(map[string]any)
	if !ok {
		t.Fatalf("expected map output, got %T", SanitizePayload(payload))
	}
	if out["accountId"] != "acc-1" {
		t.Fatalf("expected accountId to be kept, got %v", out["accountId"])
	}

	auth := out["auth"].(map[string]any)
	if auth["channel_key"] != "******" || auth["Password"] != "******" {
		t.Fatalf("expected auth secrets to be masked, got %v", auth)
	}

	item := out["items"].([]any)[0].(map[string]any)
	if item["pin"] != "******" {
		t.Fatalf("expected pin to be masked, got %v", item["pin"])
	}
}

func TestError_WritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, "debug")
	defer Configure(os.Stdout, "info")

	Error("transfer failed", errors.New("boom"), Fields{"transactionId": "tx-1", "password": "x"})

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if line["level"] != "error" {
		t.Fatalf("expected level error, got %v", line["level"])
	}
	if line["message"] != "transfer failed" {
		t.Fatalf("expected message, got %v", line["message"])
	}
	if line["error"] != "boom" {
		t.Fatalf("expected error field, got %v", line["error"])
	}
	if line["password"] != "******" {
		t.Fatalf("expected password to be masked, got %v", line["password"])
	}
}

func TestConfigure_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, "warn")
	defer Configure(os.Stdout, "info")

	Info("quiet", nil)
	Warn("loud", nil)

	if strings.Contains(buf.String(), "quiet") {
		t.Fatalf("expected info line to be filtered, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "loud") {
		t.Fatalf("expected warn line, got %q", buf.String())
	}
}
