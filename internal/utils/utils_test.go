package utils

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "*****", MaskSecret("short"))
	assert.Equal(t, "eyJh*****", MaskSecret("eyJhbGciOiJIUzI1NiJ9"))
	assert.Equal(t, "Bearer eyJh*****", MaskSecret("Bearer eyJhbGciOiJIUzI1NiJ9"))
}

func TestValidateHTTPURL(t *testing.T) {
	assert.NoError(t, ValidateHTTPURL("fabric url", "https://api.fabric.microsoft.com"))
	assert.NoError(t, ValidateHTTPURL("fabric url", "http://127.0.0.1:8080"))

	err := ValidateHTTPURL("fabric url", "ftp://bad.example.com")
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Contains(t, err.Error(), "fabric url")

	assert.Error(t, ValidateHTTPURL("fabric url", "https://"))
	assert.Error(t, ValidateHTTPURL("fabric url", "://bad"))
}

func TestMultiLogHandler(t *testing.T) {
	var debugBuf, infoBuf bytes.Buffer
	h := NewMultiLogHandler(
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
	)
	logger := slog.New(h).With("run", "r1").WithGroup("item")

	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug-4))

	logger.Debug("polling", "id", "a")
	logger.Info("synced", "id", "b")

	assert.Contains(t, debugBuf.String(), "msg=polling")
	assert.Contains(t, debugBuf.String(), "run=r1")
	assert.Contains(t, debugBuf.String(), "item.id=a")
	assert.NotContains(t, infoBuf.String(), "polling")
	assert.Contains(t, infoBuf.String(), "item.id=b")
}
