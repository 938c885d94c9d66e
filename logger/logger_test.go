package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLevels(t *testing.T) {
	tests := []struct {
		name  string
		level string
		dev   bool
		want  logrus.Level
	}{
		{"explicit", "warn", false, logrus.WarnLevel},
		{"upper case", "ERROR", false, logrus.ErrorLevel},
		{"development default", "", true, logrus.DebugLevel},
		{"production default", "", false, logrus.InfoLevel},
		{"invalid", "loud", false, logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := initTo(&buf, tt.level, "", tt.dev)
			assert.Equal(t, tt.want, log.GetLevel())
		})
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	initTo(&buf, "info", "json", true)

	WithComponent("engine").WithField("match_id", "m1").Info("Match created")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "engine", line["component"])
	assert.Equal(t, "m1", line["match_id"])
	assert.Equal(t, "Match created", line["msg"])
}

func TestTextFormatInDevelopment(t *testing.T) {
	var buf bytes.Buffer
	log := initTo(&buf, "info", "", true)
	_, ok := log.Formatter.(*logrus.TextFormatter)
	assert.True(t, ok)
}
