package security

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"divtrack/internal/errors"
	"divtrack/internal/models"
)

func TestRedactSecrets(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{`Get "http://h/api/auth/me?token=abcdefghijkl": dial tcp`, `Get "http://h/api/auth/me?token=abcd****ijkl": dial tcp`},
		{`tier=premium&token=xy`, `tier=premium&token=**`},
		{`{"access_token":"secret-value-1234"}`, `{"access_token":"secr*********1234"}`},
		{`{"password":"hunter2"}`, `{"password":"hu*****"}`},
		{"no secrets here", "no secrets here"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RedactSecrets(tt.in), "input %q", tt.in)
	}
}

func TestValidateCredentials(t *testing.T) {
	c, err := ValidateCredentials("  demo@example.com ", "password123")
	require.NoError(t, err)
	assert.Equal(t, "demo@example.com", c.Email)

	_, err = ValidateCredentials("not-an-email", "x")
	var valErr *errors.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "email", valErr.Field)

	_, err = ValidateCredentials("demo@example.com", "")
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "password", valErr.Field)
	assert.Equal(t, "password is required", valErr.Message)
}

func readAudit(t *testing.T, path string) []AuditEvent {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []AuditEvent
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev AuditEvent
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		out = append(out, ev)
	}
	return out
}

func TestAuditLoggerWritesJSONLines(t *testing.T) {
	al, err := NewAuditLogger(DefaultAuditConfig(t.TempDir()))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, al.LogLogin(ctx, "demo@example.com", false, models.TierFree, nil))
	require.NoError(t, al.LogLogin(ctx, "demo@example.com", false, "", errors.New("GET auth/me?token=abcdefghijkl failed")))
	require.NoError(t, al.LogTierUpgraded(ctx, "demo@example.com", models.TierFree, models.TierPremium, nil))
	require.NoError(t, al.LogPaymentInitiated(ctx,
		models.PaymentRequest{Tier: models.TierPremium, CryptoType: models.CryptoEthereum, Amount: 9.99},
		models.PaymentHandle{TransactionID: "tx-1", Status: models.PaymentPending}, nil))
	require.NoError(t, al.LogLogout(ctx, "demo@example.com"))
	require.NoError(t, al.Close())

	events := readAudit(t, al.Path())
	require.Len(t, events, 5)

	assert.Equal(t, AuditLogin, events[0].EventType)
	assert.True(t, events[0].Success)

	assert.Equal(t, AuditAuthFailed, events[1].EventType)
	assert.NotContains(t, events[1].ErrorMsg, "abcdefghijkl")

	assert.Equal(t, AuditTierUpgraded, events[2].EventType)
	assert.Equal(t, "free", events[2].Details["from"])

	assert.Equal(t, "tx-1", events[3].Details["transaction_id"])
	assert.Equal(t, AuditLogout, events[4].EventType)

	for _, ev := range events {
		assert.Equal(t, events[0].RunID, ev.RunID)
	}
}
