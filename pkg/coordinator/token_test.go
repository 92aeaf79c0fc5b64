package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_GenerateAndValidate(t *testing.T) {
	tm := NewTokenManager()
	jt, err := tm.GenerateToken("worker", time.Hour)
	require.NoError(t, err)

	role, err := tm.ValidateToken(jt.Token)
	require.NoError(t, err)
	assert.Equal(t, "worker", role)
}

func TestTokenManager_ExpiredTokenRejected(t *testing.T) {
	tm := NewTokenManager()
	jt, err := tm.GenerateToken("worker", -time.Second)
	require.NoError(t, err)

	_, err = tm.ValidateToken(jt.Token)
	assert.Error(t, err)
}

func TestTokenManager_RevokeToken(t *testing.T) {
	tm := NewTokenManager()
	jt, err := tm.GenerateToken("coordinator", time.Hour)
	require.NoError(t, err)

	tm.RevokeToken(jt.Token)
	_, err = tm.ValidateToken(jt.Token)
	assert.Error(t, err)
}
