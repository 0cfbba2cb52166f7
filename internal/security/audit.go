// Package security provides the audit trail and secret redaction.
package security

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"divtrack/internal/models"
)

// AuditEventType represents the type of audit event.
type AuditEventType string

const (
	// Session events
	AuditLogin          AuditEventType = "LOGIN"
	AuditRegister       AuditEventType = "REGISTER"
	AuditLogout         AuditEventType = "LOGOUT"
	AuditSessionExpired AuditEventType = "SESSION_EXPIRED"
	AuditAuthFailed     AuditEventType = "AUTH_FAILED"

	// Subscription events
	AuditTierUpgraded     AuditEventType = "TIER_UPGRADED"
	AuditPaymentInitiated AuditEventType = "PAYMENT_INITIATED"
)

// AuditEvent represents a single audit log entry.
type AuditEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	EventType AuditEventType         `json:"event_type"`
	Email     string                 `json:"email,omitempty"`
	Tier      string                 `json:"tier,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Success   bool                   `json:"success"`
	ErrorMsg  string                 `json:"error,omitempty"`
	RunID     string                 `json:"run_id"`
}

// AuditLogger appends audit events as JSON lines to a rotated file.
type AuditLogger struct {
	writer *lumberjack.Logger
	mu     sync.Mutex
	runID  string
	now    func() time.Time
}

// AuditConfig holds audit logger configuration.
type AuditConfig struct {
	LogDir     string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// DefaultAuditConfig returns the default audit configuration rooted at dir.
func DefaultAuditConfig(dir string) AuditConfig {
	return AuditConfig{
		LogDir:     filepath.Join(dir, "audit"),
		MaxSize:    10,
		MaxBackups: 10,
		MaxAge:     180,
		Compress:   true,
	}
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(cfg AuditConfig) (*AuditLogger, error) {
	if err := os.MkdirAll(cfg.LogDir, 0700); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}

	return &AuditLogger{
		writer: &lumberjack.Logger{
			Filename:   filepath.Join(cfg.LogDir, "audit.log"),
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		},
		runID: uuid.NewString(),
		now:   time.Now,
	}, nil
}

// Path returns the active audit file.
func (al *AuditLogger) Path() string {
	return al.writer.Filename
}

// Log writes an audit event.
func (al *AuditLogger) Log(ctx context.Context, event AuditEvent) error {
	al.mu.Lock()
	defer al.mu.Unlock()

	event.Timestamp = al.now().UTC()
	event.RunID = al.runID
	event.ErrorMsg = RedactSecrets(event.ErrorMsg)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("serializing audit event: %w", err)
	}
	if _, err := al.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit event: %w", err)
	}
	return nil
}

// LogLogin records a login or register attempt.
func (al *AuditLogger) LogLogin(ctx context.Context, email string, register bool, tier models.Tier, err error) error {
	ev := AuditEvent{EventType: AuditLogin, Email: email, Tier: string(tier), Success: err == nil}
	if register {
		ev.EventType = AuditRegister
	}
	if err != nil {
		ev.EventType = AuditAuthFailed
		ev.ErrorMsg = err.Error()
		ev.Details = map[string]interface{}{"register": register}
	}
	return al.Log(ctx, ev)
}

// LogLogout records an explicit logout.
func (al *AuditLogger) LogLogout(ctx context.Context, email string) error {
	return al.Log(ctx, AuditEvent{EventType: AuditLogout, Email: email, Success: true})
}

// LogSessionExpired records a stored token the server no longer accepts.
func (al *AuditLogger) LogSessionExpired(ctx context.Context, reason error) error {
	ev := AuditEvent{EventType: AuditSessionExpired, Success: true}
	if reason != nil {
		ev.ErrorMsg = reason.Error()
	}
	return al.Log(ctx, ev)
}

// LogTierUpgraded records an upgrade attempt.
func (al *AuditLogger) LogTierUpgraded(ctx context.Context, email string, from, to models.Tier, err error) error {
	ev := AuditEvent{
		EventType: AuditTierUpgraded,
		Email:     email,
		Tier:      string(to),
		Success:   err == nil,
		Details:   map[string]interface{}{"from": string(from)},
	}
	if err != nil {
		ev.ErrorMsg = err.Error()
	}
	return al.Log(ctx, ev)
}

// LogPaymentInitiated records a checkout request and, on success, its handle.
func (al *AuditLogger) LogPaymentInitiated(ctx context.Context, req models.PaymentRequest, handle models.PaymentHandle, err error) error {
	ev := AuditEvent{
		EventType: AuditPaymentInitiated,
		Tier:      string(req.Tier),
		Success:   err == nil,
		Details: map[string]interface{}{
			"crypto_type": string(req.CryptoType),
			"amount":      req.Amount,
		},
	}
	if err != nil {
		ev.ErrorMsg = err.Error()
	} else {
		ev.Details["transaction_id"] = handle.TransactionID
		ev.Details["status"] = string(handle.Status)
	}
	return al.Log(ctx, ev)
}

// Close closes the audit logger.
func (al *AuditLogger) Close() error {
	return al.writer.Close()
}
