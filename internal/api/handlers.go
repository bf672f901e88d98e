package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	apperrors "pgt-ticketing/internal/common/errors"
	"pgt-ticketing/internal/common/validation"
	"pgt-ticketing/internal/issuance"
)

type holderResponse struct {
	envelope
	Authorized bool   `json:"authorized"`
	Balance    string `json:"balance"`
	Tier       string `json:"tier"`
}

type claimResponse struct {
	envelope
	TicketCode   string    `json:"ticketCode"`
	ResourceID   string    `json:"resourceId"`
	ResourceName string    `json:"resourceName"`
	Tier         string    `json:"tier"`
	AssignedAt   time.Time `json:"assignedAt"`
}

type passResponse struct {
	envelope
	PassID        string    `json:"passId"`
	TicketPayload string    `json:"ticketPayload"`
	ExpiresAt     time.Time `json:"expiresAt"`
	Tier          string    `json:"tier"`
}

// decode validates the body against schema before unmarshalling into dst.
func (s *Server) decode(r *http.Request, schema string, dst interface{}) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return apperrors.NewInvalidInputError("request body could not be read")
	}
	if len(raw) > maxBodyBytes {
		return apperrors.NewInvalidInputError("request body too large")
	}

	res, err := s.validator.ValidateJSON(schema, raw)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if !res.Valid {
		return apperrors.NewInvalidInputError(res.Summary()).WithMetadata("errors", res.Errors)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}
	return nil
}

func (s *Server) handleCheckHolder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WalletAddress string `json:"walletAddress"`
	}
	if err := s.decode(r, validation.HolderCheck, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	res, err := s.service.CheckHolder(r.Context(), req.WalletAddress)
	if err != nil {
		var extra map[string]interface{}
		if res != nil {
			extra = map[string]interface{}{
				"authorized": false,
				"balance":    res.Balance.String(),
				"minimum":    res.Minimum.String(),
			}
		}
		s.writeError(w, r, err, extra)
		return
	}

	writeJSON(w, http.StatusOK, holderResponse{
		envelope:   envelope{Success: true, Message: "Wallet holds enough PGT"},
		Authorized: true,
		Balance:    res.Balance.String(),
		Tier:       res.Tier,
	})
}

func (s *Server) handleClaimTicket(w http.ResponseWriter, r *http.Request) {
	var req issuance.ClaimRequest
	if err := s.decode(r, validation.ClaimTicket, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	res, err := s.service.Claim(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	writeJSON(w, http.StatusOK, claimResponse{
		envelope:     envelope{Success: true, Message: "Ticket assigned"},
		TicketCode:   res.TicketCode,
		ResourceID:   res.ResourceID,
		ResourceName: res.ResourceName,
		Tier:         res.Tier,
		AssignedAt:   res.AssignedAt,
	})
}

func (s *Server) handleGeneratePass(w http.ResponseWriter, r *http.Request) {
	var req issuance.PassRequest
	if err := s.decode(r, validation.GeneratePass, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	res, err := s.service.GeneratePass(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	writeJSON(w, http.StatusOK, passResponse{
		envelope:      envelope{Success: true, Message: "Access pass issued"},
		PassID:        res.PassID,
		TicketPayload: res.TicketPayload,
		ExpiresAt:     res.ExpiresAt,
		Tier:          res.Tier,
	})
}
