package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("export-secret", time.Hour)
	token, expiresAt, err := signer.Generate("export-42", "run-ab12cd34-coverage.csv")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	jobID, path, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "export-42", jobID)
	require.Equal(t, "run-ab12cd34-coverage.csv", path)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLSignerExpiredToken(t *testing.T) {
	signer := NewSignedURLSigner("export-secret", time.Millisecond*10)
	token, _, err := signer.Generate("export-42", "run-ab12cd34-staff.pdf")
	require.NoError(t, err)
	time.Sleep(time.Millisecond * 20)

	_, _, _, err = signer.Parse(token, false)
	require.ErrorContains(t, err, "expired")

	// Cleanup resolves expired tokens so stale artifacts can still be removed.
	jobID, path, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, "export-42", jobID)
	require.Equal(t, "run-ab12cd34-staff.pdf", path)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("export-secret", time.Hour)
	token, _, err := signer.Generate("export-42", "run-ab12cd34-coverage.csv")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 4)
	parts[0] = "export-99"
	_, _, _, err = signer.Parse(strings.Join(parts, "."), false)
	require.ErrorContains(t, err, "signature")

	_, _, _, err = signer.Parse("not-a-token", false)
	require.Error(t, err)

	other := NewSignedURLSigner("different-secret", time.Hour)
	_, _, _, err = other.Parse(token, false)
	require.ErrorContains(t, err, "signature")
}
