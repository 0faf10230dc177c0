package logger

import (
	"testing"

	"go.uber.org/zap"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		env, level string
		debug      bool
		wantErr    bool
	}{
		{"local", "", true, false},
		{"prod", "", false, false},
		{"prod", "debug", true, false},
		{"local", "warn", false, false},
		{"prod", "loud", false, true},
	}
	for _, tt := range tests {
		l, err := New("round-service", tt.env, tt.level)
		if (err != nil) != tt.wantErr {
			t.Fatalf("New(%s,%s) err = %v", tt.env, tt.level, err)
		}
		if err != nil {
			continue
		}
		if got := l.Core().Enabled(zap.DebugLevel); got != tt.debug {
			t.Errorf("New(%s,%s) debug enabled = %v, want %v", tt.env, tt.level, got, tt.debug)
		}
	}
}
