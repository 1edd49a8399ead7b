package logger

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/xauti/content_go_server/config"
)

func TestInit(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	t.Run("explicit level", func(t *testing.T) {
		Init(config.LogConfig{Level: "warn"}, "release")
		assert.Equal(t, log.WarnLevel, log.GetLevel())
		_, ok := log.StandardLogger().Formatter.(*log.JSONFormatter)
		assert.True(t, ok)
	})

	t.Run("debug mode falls back to debug level", func(t *testing.T) {
		Init(config.LogConfig{Level: "bogus"}, "debug")
		assert.Equal(t, log.DebugLevel, log.GetLevel())
		_, ok := log.StandardLogger().Formatter.(*log.TextFormatter)
		assert.True(t, ok)
	})
}
