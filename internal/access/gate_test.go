package access

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pgt-ticketing/internal/common/logger"
	"pgt-ticketing/internal/oracle"
	"pgt-ticketing/internal/solana"
	"pgt-ticketing/internal/tier"
)

const (
	testWallet = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	testMint   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

type mockOracle struct {
	mock.Mock
}

func (m *mockOracle) GetBalance(ctx context.Context, wallet, mint solana.PublicKey) (oracle.Result, error) {
	args := m.Called(ctx, wallet, mint)
	return args.Get(0).(oracle.Result), args.Error(1)
}

type staticTiers map[string]tier.Tier

func (s staticTiers) RequiredTier(id string) (tier.Tier, bool) {
	t, ok := s[id]
	return t, ok
}

func createTestGate(t *testing.T, o oracle.BalanceOracle) *Gate {
	g, err := NewGate(o, Options{
		Mint:           solana.MustParsePublicKey(testMint),
		MinimumBalance: decimal.NewFromInt(1),
		Thresholds:     tier.DefaultThresholds(),
		Resources: staticTiers{
			"museumX": tier.Silver,
			"vault":   tier.Gold,
			"summit":  tier.Platinum,
		},
	}, logger.NewTestLogger(t), nil)
	require.NoError(t, err)
	return g
}

func balance(amount string) oracle.Result {
	return oracle.Result{Amount: decimal.RequireFromString(amount), Status: oracle.StatusConfirmed}
}

func TestAuthorize_Decisions(t *testing.T) {
	tests := []struct {
		name       string
		balance    oracle.Result
		resourceID string
		wantAuth   bool
		wantReason Reason
		wantTier   tier.Tier
	}{
		{
			name:       "gold holder enters silver resource",
			balance:    balance("2000000"),
			resourceID: "museumX",
			wantAuth:   true,
			wantReason: ReasonAuthorized,
			wantTier:   tier.Gold,
		},
		{
			name:       "silver holder blocked from gold resource",
			balance:    balance("400000"),
			resourceID: "vault",
			wantReason: ReasonTierTooLow,
			wantTier:   tier.Silver,
		},
		{
			name:       "gold holder blocked from platinum resource",
			balance:    balance("1666667"),
			resourceID: "summit",
			wantReason: ReasonTierTooLow,
			wantTier:   tier.Gold,
		},
		{
			name:       "platinum holder enters gold resource",
			balance:    balance("3333334"),
			resourceID: "vault",
			wantAuth:   true,
			wantReason: ReasonAuthorized,
			wantTier:   tier.Platinum,
		},
		{
			name:       "base holder enters ungated resource",
			balance:    balance("5"),
			resourceID: "unlisted",
			wantAuth:   true,
			wantReason: ReasonAuthorized,
			wantTier:   tier.Base,
		},
		{
			name:       "holder check without resource",
			balance:    balance("1"),
			wantAuth:   true,
			wantReason: ReasonAuthorized,
			wantTier:   tier.Base,
		},
		{
			name:       "below minimum",
			balance:    balance("0.99"),
			resourceID: "museumX",
			wantReason: ReasonInsufficientBalance,
		},
		{
			name:       "no token account",
			balance:    oracle.Result{Amount: decimal.Zero, Status: oracle.StatusNoAccount},
			resourceID: "museumX",
			wantReason: ReasonInsufficientBalance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &mockOracle{}
			o.On("GetBalance", mock.Anything, solana.MustParsePublicKey(testWallet), solana.MustParsePublicKey(testMint)).
				Return(tt.balance, nil).Once()

			d, err := createTestGate(t, o).Authorize(context.Background(), testWallet, tt.resourceID)
			require.NoError(t, err)

			assert.Equal(t, tt.wantAuth, d.Authorized)
			assert.Equal(t, tt.wantReason, d.Reason)
			assert.Equal(t, tt.wantTier, d.Tier)
			assert.True(t, d.Balance.Equal(tt.balance.Amount))
			assert.Equal(t, "1", d.Minimum.String())
			o.AssertExpectations(t)
		})
	}
}

func TestAuthorize_Messages(t *testing.T) {
	o := &mockOracle{}
	o.On("GetBalance", mock.Anything, mock.Anything, mock.Anything).Return(balance("0"), nil).Once()
	o.On("GetBalance", mock.Anything, mock.Anything, mock.Anything).Return(balance("400000"), nil).Once()
	g := createTestGate(t, o)

	d, err := g.Authorize(context.Background(), testWallet, "")
	require.NoError(t, err)
	assert.Contains(t, d.Message, "holding 0")
	assert.Contains(t, d.Message, "minimum required 1")

	d, err = g.Authorize(context.Background(), testWallet, "vault")
	require.NoError(t, err)
	assert.Contains(t, d.Message, "gold")
	assert.Equal(t, tier.Gold, d.RequiredTier)
	assert.True(t, d.HasRequirement)
}

func TestAuthorize_InvalidAddressSkipsOracle(t *testing.T) {
	for _, addr := range []string{"not-a-wallet", "", "   ", "0OIl"} {
		t.Run(fmt.Sprintf("%q", addr), func(t *testing.T) {
			o := &mockOracle{}
			d, err := createTestGate(t, o).Authorize(context.Background(), addr, "museumX")
			require.NoError(t, err)
			assert.False(t, d.Authorized)
			assert.Equal(t, ReasonInvalidAddress, d.Reason)
			o.AssertNotCalled(t, "GetBalance", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestAuthorize_OffCurveOwner(t *testing.T) {
	o := &mockOracle{}
	o.On("GetBalance", mock.Anything, mock.Anything, mock.Anything).
		Return(oracle.Result{}, fmt.Errorf("%w: pda", solana.ErrOwnerOffCurve))

	d, err := createTestGate(t, o).Authorize(context.Background(), testWallet, "")
	require.NoError(t, err)
	assert.Equal(t, ReasonInvalidAddress, d.Reason)
}

func TestAuthorize_UpstreamFailureIsError(t *testing.T) {
	for _, cause := range []error{oracle.ErrUnavailable, oracle.ErrTimeout} {
		o := &mockOracle{}
		o.On("GetBalance", mock.Anything, mock.Anything, mock.Anything).
			Return(oracle.Result{}, fmt.Errorf("%w: boom", cause))

		d, err := createTestGate(t, o).Authorize(context.Background(), testWallet, "museumX")
		require.Error(t, err)
		assert.ErrorIs(t, err, cause)
		assert.Nil(t, d)
	}
}

func TestNewGate_Validation(t *testing.T) {
	_, err := NewGate(&mockOracle{}, Options{Thresholds: tier.DefaultThresholds()}, logger.NewNoOpLogger(), nil)
	assert.Error(t, err, "mint required")

	_, err = NewGate(&mockOracle{}, Options{
		Mint:           solana.MustParsePublicKey(testMint),
		MinimumBalance: decimal.NewFromInt(-1),
		Thresholds:     tier.DefaultThresholds(),
	}, logger.NewNoOpLogger(), nil)
	assert.Error(t, err)

	_, err = NewGate(&mockOracle{}, Options{
		Mint:       solana.MustParsePublicKey(testMint),
		Thresholds: tier.Thresholds{},
	}, logger.NewNoOpLogger(), nil)
	assert.Error(t, err)
}
