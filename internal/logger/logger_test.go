package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesToRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "bot.log")
	closer, err := Init(Config{Level: "debug", OutputFile: path, MaxSize: 1, MaxBackups: 1, MaxAge: 1})
	require.NoError(t, err)
	t.Cleanup(func() {
		logrus.SetOutput(os.Stderr)
		logrus.SetLevel(logrus.InfoLevel)
	})

	logrus.WithField("component", "test").Debug("hello file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file")
	assert.Contains(t, string(data), "component=test")
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	_, err := Init(Config{Level: "loud"})
	assert.Error(t, err)
}
