package logging

import (
	"bytes"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestSetup_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup("debug", "json", &buf))
	t.Cleanup(func() { _ = Setup("info", "text", nil) })

	log.WithField("contract", "SPY240315C00450000").Debug("hello")
	require.Contains(t, buf.String(), `"msg":"hello"`)
	require.Contains(t, buf.String(), `"contract":"SPY240315C00450000"`)
	require.Equal(t, log.DebugLevel, log.GetLevel())
}

func TestSetup_BadLevel(t *testing.T) {
	require.Error(t, Setup("loud", "text", &bytes.Buffer{}))
}
