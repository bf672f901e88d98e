// internal/workers/tickets/claim-ticket/models.go
package claimticket

import "time"

type Input struct {
	WalletAddress string `json:"walletAddress"`
	ResourceID    string `json:"resourceId"`
	Tier          string `json:"tier,omitempty"`
}

type Output struct {
	TicketCode   string    `json:"ticketCode"`
	TicketID     string    `json:"ticketId"`
	ResourceID   string    `json:"resourceId"`
	ResourceName string    `json:"resourceName"`
	Tier         string    `json:"tier"`
	AssignedAt   time.Time `json:"assignedAt"`
}
