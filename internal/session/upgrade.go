package session

import (
	"context"

	"divtrack/internal/errors"
	"divtrack/internal/logging"
	"divtrack/internal/models"
)

// UpgradeSubscription moves the account to tier. On success the local tier
// changes immediately; with ReconcileAfterUpgrade set, the server's view is
// read back and wins.
func (m *Manager) UpgradeSubscription(ctx context.Context, tier models.Tier) (models.Session, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	logger := logging.WithOperation(m.logger, "upgrade")
	epoch := m.currentEpoch()
	cur := m.Current()

	if !cur.IsAuthenticated() {
		return cur, errors.NewSubscriptionError(string(tier), "please login first", errors.ErrUnauthenticated)
	}
	parsed, ok := models.ParseTier(string(tier))
	if !ok {
		return cur, errors.NewSubscriptionError(string(tier), "unknown tier",
			errors.NewValidationError("tier", string(tier), "must be one of free, premium, elite"))
	}
	tier = parsed
	if cur.Tier == tier {
		return cur, nil
	}

	if err := m.remote.UpgradeTier(ctx, cur.Token, string(tier)); err != nil {
		serr := errors.NewSubscriptionError(string(tier), errors.UserMessage(err), err)
		logger.Warn().Err(err).Str("tier", string(tier)).Msg("upgrade rejected")
		m.audit(func(a Auditor) error { return a.LogTierUpgraded(ctx, cur.Email(), cur.Tier, tier, serr) })
		return cur, serr
	}

	next := cur
	next.Tier = tier
	prev, err := m.commit(ctx, epoch, next, false)
	if err != nil {
		return m.Current(), errors.NewSubscriptionError(string(tier), "session ended during upgrade", err)
	}
	m.audit(func(a Auditor) error { return a.LogTierUpgraded(ctx, cur.Email(), cur.Tier, tier, nil) })
	logging.LogSessionEvent(logger, "upgrade", cur.Email(), string(tier))
	m.publish(prev, next)

	if m.reconcile {
		m.reconcileTier(ctx, epoch, next)
	}
	return m.Current(), nil
}

// reconcileTier replaces the optimistic tier with the server's. Failures keep
// the optimistic value.
func (m *Manager) reconcileTier(ctx context.Context, epoch uint64, optimistic models.Session) {
	logger := logging.WithOperation(m.logger, "reconcile")

	me, err := m.remote.Me(ctx, optimistic.Token)
	if err != nil {
		logger.Warn().Err(err).Msg("could not confirm tier, keeping optimistic value")
		return
	}
	tier, _ := models.ParseTier(me.Subscription)
	if tier == optimistic.Tier {
		return
	}

	logger.Warn().
		Str("optimistic", string(optimistic.Tier)).
		Str("server", string(tier)).
		Msg("server tier differs after upgrade")

	next := optimistic
	next.Tier = tier
	if prev, err := m.commit(ctx, epoch, next, false); err == nil {
		m.publish(prev, next)
	}
}
