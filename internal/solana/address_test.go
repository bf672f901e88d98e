package solana

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWallet = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	testMint   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

func TestParsePublicKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid wallet", input: testWallet},
		{name: "surrounding whitespace", input: "  " + testWallet + "\n"},
		{name: "system program", input: "11111111111111111111111111111111"},
		{name: "empty", input: "", wantErr: true},
		{name: "not base58", input: "not-a-wallet", wantErr: true},
		{name: "contains zero", input: "0WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM", wantErr: true},
		{name: "too short", input: "9WzDXwBbmkg8ZTbNMqUx", wantErr: true},
		{name: "too long", input: testWallet + "9WzDX", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePublicKey(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidAddress))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPublicKey_StringRoundTrip(t *testing.T) {
	pk := MustParsePublicKey(testWallet)
	assert.Equal(t, testWallet, pk.String())

	text, err := pk.MarshalText()
	require.NoError(t, err)

	var back PublicKey
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, pk, back)
}

func TestProgramIDs(t *testing.T) {
	assert.Equal(t, "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA", TokenProgramID.String())
	assert.Equal(t, "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL", AssociatedTokenAccountProgramID.String())
	assert.Equal(t, byte(140), AssociatedTokenAccountProgramID[0])
	assert.Equal(t, byte(89), AssociatedTokenAccountProgramID[31])
}

func TestFindAssociatedTokenAddress(t *testing.T) {
	wallet := MustParsePublicKey(testWallet)
	mint := MustParsePublicKey(testMint)

	t.Run("token program", func(t *testing.T) {
		ata, err := FindAssociatedTokenAddress(wallet, mint, TokenProgramID)
		require.NoError(t, err)
		assert.Equal(t, "FGETo8T8wMcN2wCjav8VK6eh3dLk63evNDPxzLSJra8B", ata.String())
		assert.False(t, ata.IsOnCurve())
	})

	t.Run("zero program defaults to token program", func(t *testing.T) {
		ata, err := FindAssociatedTokenAddress(wallet, mint, PublicKey{})
		require.NoError(t, err)
		assert.Equal(t, "FGETo8T8wMcN2wCjav8VK6eh3dLk63evNDPxzLSJra8B", ata.String())
	})

	t.Run("token-2022 program", func(t *testing.T) {
		ata, err := FindAssociatedTokenAddress(wallet, mint, Token2022ProgramID)
		require.NoError(t, err)
		assert.Equal(t, "GdjpegrtGwU3pgtzPivYVViSA8rmGL248qBVKzsrU3DD", ata.String())
	})

	t.Run("off-curve owner rejected", func(t *testing.T) {
		pda := MustParsePublicKey("FGETo8T8wMcN2wCjav8VK6eh3dLk63evNDPxzLSJra8B")
		_, err := FindAssociatedTokenAddress(pda, mint, TokenProgramID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrOwnerOffCurve))
	})
}

func TestFindProgramAddress(t *testing.T) {
	pk, bump, err := FindProgramAddress([][]byte{[]byte("ticket-vault")}, TokenProgramID)
	require.NoError(t, err)
	assert.Equal(t, "GdLRJrZEJGuVNR3YiG3yKP3hErHaszWxysPPecekujEa", pk.String())
	assert.Equal(t, uint8(254), bump)

	_, err = CreateProgramAddress([][]byte{make([]byte, 33)}, TokenProgramID)
	assert.Error(t, err)
}
