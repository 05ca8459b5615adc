package domain

// AccountRole selects one of the two custodial accounts.
type AccountRole string

const (
	AccountRolePayer AccountRole = "PAYER"
	AccountRolePayee AccountRole = "PAYEE"
)

// WalletAccount is a provider-held account. Balance is advisory: it is checked
// before settling, but only the provider's transfer response is authoritative.
type WalletAccount struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Balance int64       `json:"balance"` // In satoshis
	Role    AccountRole `json:"role"`
}

// Receivable is an invoice created on the payee side.
type Receivable struct {
	InvoiceID  string `json:"invoice_id"`  // Provider payment hash
	PayRequest string `json:"pay_request"` // BOLT11 string
}

// Payment is the provider's acknowledgement of a pay request.
type Payment struct {
	ReferenceID string `json:"reference_id"`
}

// TransferStatus reports whether a payment settled.
type TransferStatus struct {
	ReferenceID string `json:"reference_id"`
	Settled     bool   `json:"settled"`
}
