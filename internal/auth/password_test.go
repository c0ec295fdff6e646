package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"norelock.dev/waveroom/backend/internal/utils"
)

func TestPasswordHashAndVerify(t *testing.T) {
	provider := NewPasswordProvider(utils.GetLogger())

	hash, err := provider.HashPassword("Sup3rSecret")
	require.NoError(t, err)
	assert.NotEqual(t, "Sup3rSecret", hash)

	assert.True(t, provider.VerifyPassword("Sup3rSecret", hash))
	assert.False(t, provider.VerifyPassword("wrong", hash))
	assert.False(t, provider.VerifyPassword("Sup3rSecret", "not-a-hash"))
}

func TestPasswordHashesAreSalted(t *testing.T) {
	provider := NewPasswordProvider(utils.GetLogger())

	first, err := provider.HashPassword("Sup3rSecret")
	require.NoError(t, err)
	second, err := provider.HashPassword("Sup3rSecret")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}
