// internal/workers/tickets/claim-ticket/handler.go
package claimticket

import (
	"context"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "pgt-ticketing/internal/common/errors"
	"pgt-ticketing/internal/common/logger"
	"pgt-ticketing/internal/common/metrics"
	"pgt-ticketing/internal/common/observability"
	"pgt-ticketing/internal/common/validation"
	"pgt-ticketing/internal/issuance"
)

const (
	TaskType = "claim-ticket"
)

// TicketClaimer is satisfied by *issuance.Service.
type TicketClaimer interface {
	Claim(ctx context.Context, req issuance.ClaimRequest) (*issuance.ClaimResponse, error)
}

type Handler struct {
	config     *Config
	service    TicketClaimer
	validator  *validation.Validator
	errHandler *apperrors.ErrorHandler
	obs        *observability.Observability
	logger     logger.Logger
}

func NewHandler(config *Config, service TicketClaimer, validator *validation.Validator, obs *observability.Observability, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		service:    service,
		validator:  validator,
		errHandler: apperrors.NewErrorHandler(l),
		obs:        obs,
		logger:     l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	ctx, span := h.obs.StartSpan(ctx, "job."+TaskType)
	defer span.End()

	input, err := h.parseInput(job)
	if err != nil {
		h.fail(ctx, client, job, err, start)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err, start)
		return
	}

	h.completeJob(ctx, client, job, output, start)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	vars, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse variables: %v", err))
	}
	res, err := h.validator.ValidateInput(validation.ClaimTicket, vars)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if !res.Valid {
		return nil, apperrors.NewInvalidInputError(res.Summary())
	}

	var input Input
	if err := job.GetVariablesAs(&input); err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse variables: %v", err))
	}
	return &input, nil
}

// Execute gates and claims one ticket. SOLD_OUT, TIER_TOO_LOW and the
// other business outcomes come back as StandardErrors for BPMN mapping.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	res, err := h.service.Claim(ctx, issuance.ClaimRequest{
		WalletAddress: input.WalletAddress,
		ResourceID:    input.ResourceID,
		Tier:          input.Tier,
	})
	if err != nil {
		return nil, err
	}

	return &Output{
		TicketCode:   res.TicketCode,
		TicketID:     res.TicketID,
		ResourceID:   res.ResourceID,
		ResourceName: res.ResourceName,
		Tier:         res.Tier,
		AssignedAt:   res.AssignedAt,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output, start time.Time) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error":    err.Error(),
			"ticketId": output.TicketID,
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.obs.RecordJobProcessed(ctx, "completed")
	h.obs.RecordJobDuration(ctx, time.Since(start), "completed")
	h.logger.Info("ticket claimed for process", map[string]interface{}{
		"jobKey":   job.Key,
		"ticketId": output.TicketID,
	})
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error, start time.Time) {
	std := apperrors.AsStandardError(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(std.Code)).Inc()
	h.obs.RecordJobProcessed(ctx, "failed")
	h.obs.RecordJobDuration(ctx, time.Since(start), "failed")
	h.errHandler.HandleJobError(ctx, client, job, std)
}
