package claimticket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pgt-ticketing/internal/common/config"
	apperrors "pgt-ticketing/internal/common/errors"
	"pgt-ticketing/internal/common/logger"
	"pgt-ticketing/internal/common/validation"
	"pgt-ticketing/internal/issuance"
)

type mockClaimer struct {
	mock.Mock
}

func (m *mockClaimer) Claim(ctx context.Context, req issuance.ClaimRequest) (*issuance.ClaimResponse, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*issuance.ClaimResponse)
	return res, args.Error(1)
}

func createTestHandler(t *testing.T, claimer TicketClaimer) *Handler {
	v, err := validation.NewValidator()
	require.NoError(t, err)
	return NewHandler(LoadConfig(config.WorkerConfig{}), claimer, v, nil, logger.NewTestLogger(t))
}

func TestHandler_Execute_Success(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	claimer := &mockClaimer{}
	claimer.On("Claim", mock.Anything, issuance.ClaimRequest{
		WalletAddress: "wallet-1",
		ResourceID:    "museumx",
		Tier:          "gold",
	}).Return(&issuance.ClaimResponse{
		TicketCode:   "MX-001",
		TicketID:     "t-1",
		ResourceID:   "museumx",
		ResourceName: "Museum X",
		Tier:         "gold",
		AssignedAt:   at,
	}, nil)

	h := createTestHandler(t, claimer)
	out, err := h.Execute(context.Background(), &Input{WalletAddress: "wallet-1", ResourceID: "museumx", Tier: "gold"})
	require.NoError(t, err)
	assert.Equal(t, "MX-001", out.TicketCode)
	assert.Equal(t, "Museum X", out.ResourceName)
	assert.Equal(t, at, out.AssignedAt)
	claimer.AssertExpectations(t)
}

func TestHandler_Execute_ErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantBPMN    string
		wantRetries int
	}{
		{"sold out", apperrors.NewSoldOutError("museumx"), "SOLD_OUT", 0},
		{"tier too low", apperrors.NewTierTooLowError("gold", "silver"), "TIER_TOO_LOW", 0},
		{"conflict", apperrors.NewClaimConflictError(""), "CLAIM_CONFLICT", 0},
		{"store down", apperrors.NewStoreUnavailableError(errors.New("dial tcp")), "STORE_UNAVAILABLE", 3},
		{"oracle timeout", apperrors.NewOracleTimeoutError(errors.New("deadline")), "ORACLE_TIMEOUT", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claimer := &mockClaimer{}
			claimer.On("Claim", mock.Anything, mock.Anything).Return(nil, tt.err)

			h := createTestHandler(t, claimer)
			_, err := h.Execute(context.Background(), &Input{WalletAddress: "w", ResourceID: "museumx"})
			require.Error(t, err)

			bpmn := apperrors.ConvertToBPMNError(apperrors.AsStandardError(err))
			assert.Equal(t, tt.wantBPMN, bpmn.Code)
			assert.Equal(t, tt.wantRetries, bpmn.Retries)
		})
	}
}

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, &mockClaimer{})

	in, err := h.parseInput(entities.Job{ActivatedJob: &pb.ActivatedJob{
		Variables: `{"walletAddress":"w","resourceId":"museumx","tier":"silver"}`,
	}})
	require.NoError(t, err)
	assert.Equal(t, &Input{WalletAddress: "w", ResourceID: "museumx", Tier: "silver"}, in)

	_, err = h.parseInput(entities.Job{ActivatedJob: &pb.ActivatedJob{Variables: `{"walletAddress":"w"}`}})
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.AsStandardError(err).Code)
}
