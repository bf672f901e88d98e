package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_ValidateJSON(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		schema    string
		body      string
		valid     bool
		wantField string
	}{
		{"holder ok", HolderCheck, `{"walletAddress":"9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"}`, true, ""},
		{"holder accepts non-base58 shape", HolderCheck, `{"walletAddress":"not-a-wallet"}`, true, ""},
		{"holder missing wallet", HolderCheck, `{}`, false, "walletAddress"},
		{"holder empty wallet", HolderCheck, `{"walletAddress":""}`, false, "walletAddress"},
		{"holder wrong type", HolderCheck, `{"walletAddress":42}`, false, "walletAddress"},
		{"claim ok", ClaimTicket, `{"walletAddress":"w","resourceId":"exhibit-a","tier":"gold"}`, true, ""},
		{"claim without tier", ClaimTicket, `{"walletAddress":"w","resourceId":"exhibit-a"}`, true, ""},
		{"claim missing resource", ClaimTicket, `{"walletAddress":"w"}`, false, "resourceId"},
		{"pass ok", GeneratePass, `{"walletAddress":"w","tier":"silver"}`, true, ""},
		{"malformed json", GeneratePass, `{"walletAddress":`, false, "(root)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := v.ValidateJSON(tt.schema, []byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid)
			if !tt.valid {
				require.NotEmpty(t, res.Errors)
				assert.Equal(t, tt.wantField, res.Errors[0].Field)
				assert.NotEmpty(t, res.Summary())
			}
		})
	}
}

func TestValidator_ValidateInput(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	res, err := v.ValidateInput(ClaimTicket, map[string]interface{}{
		"walletAddress": "w",
		"resourceId":    "exhibit-a",
	})
	require.NoError(t, err)
	assert.True(t, res.Valid)

	_, err = v.ValidateInput("nope", map[string]interface{}{})
	assert.Error(t, err)
}
