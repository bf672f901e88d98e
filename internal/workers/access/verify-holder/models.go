// internal/workers/access/verify-holder/models.go
package verifyholder

type Input struct {
	WalletAddress string `json:"walletAddress"`
}

// Output is merged into the process variables.
type Output struct {
	Authorized bool   `json:"authorized"`
	Balance    string `json:"balance"`
	Minimum    string `json:"minimum"`
	Tier       string `json:"tier"`
}
