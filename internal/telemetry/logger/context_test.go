package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestWithLogger_FromContext(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := WithLogger(context.Background(), l)
	FromContext(ctx).Info("root channel opened", "channel_id", "root-1")

	if buf.Len() == 0 {
		t.Error("Logger from context should produce output")
	}
}

func TestFromContext_Default(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Error("FromContext should return default logger, got nil")
	}
}

func TestOperationID(t *testing.T) {
	ctx := WithOperationID(context.Background(), "01HZX")
	if got := OperationIDFromContext(ctx); got != "01HZX" {
		t.Errorf("OperationIDFromContext() = %q", got)
	}
	if got := OperationIDFromContext(context.Background()); got != "" {
		t.Errorf("OperationIDFromContext(empty) = %q", got)
	}
}

func TestL(t *testing.T) {
	tests := []struct {
		name   string
		opID   string
		wantID bool
	}{
		{"with operation id", "op-1", true},
		{"without operation id", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l, err := New(Config{Level: "info", Format: "json", Output: &buf})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			ctx := WithLogger(context.Background(), l)
			if tt.opID != "" {
				ctx = WithOperationID(ctx, tt.opID)
			}
			L(ctx).Info("daily created")

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("Failed to parse JSON log: %v", err)
			}
			_, has := entry["operation_id"]
			if has != tt.wantID {
				t.Errorf("operation_id present = %v, want %v", has, tt.wantID)
			}
		})
	}
}

func TestContextKeyCollision(t *testing.T) {
	ctx := context.WithValue(context.Background(), "channelctl.operation_id", "plain-string-key")
	if got := OperationIDFromContext(ctx); got != "" {
		t.Errorf("untyped key should not collide, got %q", got)
	}
}
