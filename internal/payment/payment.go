// Package payment starts crypto checkouts for subscription plans.
package payment

import (
	"context"

	"github.com/rs/zerolog"

	"divtrack/internal/entitlement"
	"divtrack/internal/errors"
	"divtrack/internal/logging"
	"divtrack/internal/models"
)

// Remote is the checkout endpoint. Implemented by api.Client.
type Remote interface {
	CryptoPayment(ctx context.Context, req models.PaymentRequest) (models.PaymentHandle, error)
}

// SessionView exposes the current session. Implemented by session.Manager.
type SessionView interface {
	Current() models.Session
}

// Auditor records checkout attempts. Implemented by security.AuditLogger.
type Auditor interface {
	LogPaymentInitiated(ctx context.Context, req models.PaymentRequest, handle models.PaymentHandle, err error) error
}

// Initiator issues one-shot checkout requests. There is no retry and no
// settlement tracking; the handle is for display.
type Initiator struct {
	remote  Remote
	session SessionView
	auditor Auditor
	logger  zerolog.Logger
}

// NewInitiator creates an Initiator. auditor may be nil.
func NewInitiator(remote Remote, session SessionView, auditor Auditor, logger zerolog.Logger) *Initiator {
	return &Initiator{
		remote:  remote,
		session: session,
		auditor: auditor,
		logger:  logging.WithComponent(logger, "payment"),
	}
}

// Initiate requests a checkout for tier paid in cryptoType. An empty
// cryptoType means ethereum. Without a session token it fails with
// ErrUnauthenticated before any remote call.
func (i *Initiator) Initiate(ctx context.Context, tier models.Tier, cryptoType models.CryptoType) (models.PaymentHandle, error) {
	if cryptoType == "" {
		cryptoType = models.CryptoEthereum
	}
	fail := func(msg string, err error) (models.PaymentHandle, error) {
		return models.PaymentHandle{}, errors.NewPaymentError(string(tier), string(cryptoType), msg, err)
	}

	sess := i.session.Current()
	if sess.Token == "" {
		return fail("please login first", errors.ErrUnauthenticated)
	}

	switch cryptoType {
	case models.CryptoBitcoin, models.CryptoEthereum:
	default:
		return fail("unsupported currency",
			errors.NewValidationError("crypto_type", string(cryptoType), "must be bitcoin or ethereum"))
	}

	amount, ok := entitlement.PriceOf(tier)
	if !ok {
		return fail("unknown tier",
			errors.NewValidationError("tier", string(tier), "must be one of free, premium, elite"))
	}
	if amount <= 0 {
		return fail("plan is free", errors.ErrNothingToPay)
	}

	req := models.PaymentRequest{Tier: tier, CryptoType: cryptoType, Amount: amount, Token: sess.Token}
	handle, err := i.remote.CryptoPayment(ctx, req)
	if err != nil {
		err = errors.NewPaymentError(string(tier), string(cryptoType), errors.UserMessage(err), err)
		i.logger.Warn().Err(err).Msg("payment request failed")
	} else {
		i.logger.Info().
			Str("transaction_id", handle.TransactionID).
			Str("tier", string(tier)).
			Float64("amount", amount).
			Msg("payment initiated")
	}

	if i.auditor != nil {
		if aerr := i.auditor.LogPaymentInitiated(ctx, req, handle, err); aerr != nil {
			i.logger.Warn().Err(aerr).Msg("audit write failed")
		}
	}
	if err != nil {
		return models.PaymentHandle{}, err
	}
	return handle, nil
}
