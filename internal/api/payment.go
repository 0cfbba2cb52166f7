package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"divtrack/internal/models"
)

// CryptoPayment starts a crypto checkout. The backend only acknowledges the
// request; settlement is not reported.
func (c *Client) CryptoPayment(ctx context.Context, req models.PaymentRequest) (models.PaymentHandle, error) {
	var out paymentResponse
	err := c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: "payment/crypto",
		path:     "payment/crypto",
		query: url.Values{
			"crypto_type": {string(req.CryptoType)},
			"amount":      {strconv.FormatFloat(req.Amount, 'f', 2, 64)},
			"token":       {req.Token},
		},
	}, &out)
	if err != nil {
		return models.PaymentHandle{}, err
	}

	return models.PaymentHandle{
		TransactionID: out.TransactionID,
		WalletAddress: out.WalletAddress,
		Tier:          req.Tier,
		CryptoType:    req.CryptoType,
		Amount:        req.Amount,
		Status:        models.PaymentPending,
	}, nil
}
