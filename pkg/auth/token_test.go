package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plankhq/plank/pkg/models"
)

func TestIssueAndVerify(t *testing.T) {
	tokens := NewHMACTokens([]byte("test-secret"), time.Hour)
	user := models.User{ID: models.NewUserID(), Email: "ada@example.com", Name: "Ada"}

	signed, err := tokens.Issue(user)
	require.NoError(t, err)

	got, err := tokens.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, user, got)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	tokens := NewHMACTokens([]byte("test-secret"), time.Hour)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"wrong secret", mustIssue(t, NewHMACTokens([]byte("other"), time.Hour))},
		{"expired", mustIssue(t, NewHMACTokens([]byte("test-secret"), -time.Hour))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tokens.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func mustIssue(t *testing.T, tokens *HMACTokens) string {
	t.Helper()
	signed, err := tokens.Issue(models.User{ID: models.NewUserID(), Email: "x@example.com", Name: "X"})
	require.NoError(t, err)
	return signed
}
