package logger_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/plankhq/plank/pkg/logger"
)

func TestLogWritesToBuffer(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	log, err := logger.New().FromBuffer(buff).Make()
	require.NoError(t, err)

	require.Equal(t, 0, buff.Len())
	log.Info().Msg("hello")
	require.Contains(t, buff.String(), "hello")
}

func TestLevelFiltersBelowThreshold(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	log, err := logger.New().FromBuffer(buff).Level(zerolog.WarnLevel).Make()
	require.NoError(t, err)

	log.Info().Msg("quiet")
	require.Equal(t, 0, buff.Len())

	log.Warn().Msg("loud")
	require.Contains(t, buff.String(), "loud")
}

func TestFromPathAppendsToFile(t *testing.T) {
	path := t.TempDir() + "/plank.log"
	log, err := logger.New().FromPath(path).Make()
	require.NoError(t, err)
	log.Info().Msg("persisted")

	log2, err := logger.New().FromPath(path).Make()
	require.NoError(t, err)
	log2.Info().Msg("appended")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "persisted")
	require.Contains(t, string(data), "appended")
}
