package logging

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/safar/go-bookshop/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		cfg       config.LogConfig
		wantLevel logrus.Level
		wantJSON  bool
	}{
		{config.LogConfig{Level: "debug", Format: "json"}, logrus.DebugLevel, true},
		{config.LogConfig{Level: "warn", Format: "text"}, logrus.WarnLevel, false},
		{config.LogConfig{Level: "loud", Format: "JSON"}, logrus.InfoLevel, true},
	}

	for _, tt := range tests {
		logger := New(tt.cfg)
		if logger.GetLevel() != tt.wantLevel {
			t.Errorf("%+v: expected level %s, got %s", tt.cfg, tt.wantLevel, logger.GetLevel())
		}
		_, isJSON := logger.Formatter.(*logrus.JSONFormatter)
		if isJSON != tt.wantJSON {
			t.Errorf("%+v: expected json formatter %v", tt.cfg, tt.wantJSON)
		}
	}
}
