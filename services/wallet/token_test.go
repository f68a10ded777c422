package wallet

import (
	// Go Internal Packages
	"strconv"
	"testing"

	// External Packages
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	for i := 0; i < 500; i++ {
		token, err := GenerateToken()
		require.NoError(t, err)
		require.Len(t, token, 6)

		n, err := strconv.Atoi(token)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}
