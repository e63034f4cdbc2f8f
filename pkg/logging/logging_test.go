package logging_test

import (
	"testing"

	"github.com/peakyragnar/nova/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsUnknownLevelToInfo(t *testing.T) {
	logger := logging.New("bogus", false)
	require.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestNewParsesRecognizedLevel(t *testing.T) {
	logger := logging.New("debug", false)
	require.Equal(t, zerolog.DebugLevel, logger.GetLevel())
}
