package logger

import (
	"context"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	logger := Get()
	if logger == nil {
		t.Fatal("logger is nil after initialization")
	}

	// Init is safe to call twice; the second call rebuilds the global.
	if err := Init(); err != nil {
		t.Fatalf("failed to re-initialize logger: %v", err)
	}
	if Get() == nil {
		t.Fatal("logger is nil after re-initialization")
	}
}

func TestLoggerBasic(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	logger := Get()
	if logger == nil {
		t.Fatal("logger is nil")
	}

	ctx := context.Background()
	logger.Info(ctx, "evaluation started", String("k", "v"), Int("items", 3))
}

func TestLoggerNamed(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	namedLogger := Named("worker")
	if namedLogger == nil {
		t.Fatal("named logger is nil")
	}

	ctx := context.Background()
	namedLogger.Info(ctx, "chunk dispatched")
}

func TestEngineFieldHelpers(t *testing.T) {
	cases := []struct {
		name  string
		field Field
		key   string
		value string
	}{
		{"run", RunID("run-42"), "runID", "run-42"},
		{"item", ItemID("item-7"), "itemID", "item-7"},
		{"judge", JudgeID("judge-mini-a"), "judge", "judge-mini-a"},
	}

	for _, tc := range cases {
		if tc.field.Key != tc.key {
			t.Errorf("%s helper key = %q, want %q", tc.name, tc.field.Key, tc.key)
		}
		if got, ok := tc.field.Value.(string); !ok || got != tc.value {
			t.Errorf("%s helper value = %v, want %q", tc.name, tc.field.Value, tc.value)
		}
	}
}

func TestSetLevelString(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		if err := SetLevelString(lvl); err != nil {
			t.Errorf("SetLevelString(%q) failed: %v", lvl, err)
		}
	}

	if err := SetLevelString("loud"); err == nil {
		t.Error("expected an error for an unknown level name")
	}
}
