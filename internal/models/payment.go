package models

// CryptoType is a supported checkout currency.
type CryptoType string

const (
	CryptoBitcoin  CryptoType = "bitcoin"
	CryptoEthereum CryptoType = "ethereum"
)

// PaymentStatus is the client-side lifecycle of a payment. Settlement is
// never observed, so pending is terminal.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
)

// PaymentRequest is sent to the remote checkout endpoint.
type PaymentRequest struct {
	Tier       Tier       `json:"tier"`
	CryptoType CryptoType `json:"crypto_type"`
	Amount     float64    `json:"amount"`
	Token      string     `json:"-"`
}

// PaymentHandle is returned for display only.
type PaymentHandle struct {
	TransactionID string        `json:"transaction_id"`
	WalletAddress string        `json:"wallet_address"`
	Tier          Tier          `json:"tier"`
	CryptoType    CryptoType    `json:"crypto_type"`
	Amount        float64       `json:"amount"`
	Status        PaymentStatus `json:"status"`
}
