// Package audit provides security audit logging for SIEM consumption.
// Events are logged as structured JSON under the "security_audit" logger.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/auth"
	"github.com/ekaya-inc/t2sql-engine/pkg/logging"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection fingerprints user text as SQL injection.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
)

// SecurityEvent is one auditable event.
type SecurityEvent struct {
	Timestamp    time.Time         `json:"timestamp"`
	EventType    SecurityEventType `json:"event_type"`
	OwnerID      uuid.UUID         `json:"owner_id"`
	ConnectionID uuid.UUID         `json:"connection_id,omitempty"`
	UserID       string            `json:"user_id,omitempty"`
	Details      any               `json:"details"`
	Severity     string            `json:"severity"` // info, warning, critical
}

// InjectionDetails describes a rejected input. Excerpt is sanitized and truncated.
type InjectionDetails struct {
	Field       string `json:"field"`
	Fingerprint string `json:"fingerprint"`
	Excerpt     string `json:"excerpt"`
}

// SecurityAuditor logs security events.
type SecurityAuditor struct {
	logger *zap.Logger
}

func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogInjectionAttempt records a rejected question at ERROR level with
// critical severity. The user id comes from token claims when present.
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, ownerID, connectionID uuid.UUID, field, fingerprint, text string) {
	details := InjectionDetails{
		Field:       field,
		Fingerprint: fingerprint,
		Excerpt:     logging.TruncateString(logging.Sanitize(text), logging.MaxQuestionLogLength),
	}
	event := SecurityEvent{
		Timestamp:    time.Now().UTC(),
		EventType:    EventSQLInjectionAttempt,
		OwnerID:      ownerID,
		ConnectionID: connectionID,
		UserID:       userIDFrom(ctx),
		Details:      details,
		Severity:     "critical",
	}

	// Marshaling these types cannot fail.
	eventJSON, _ := json.Marshal(event)

	a.logger.Error("SQL injection attempt detected",
		zap.String("event_json", string(eventJSON)),
		zap.String("owner_id", ownerID.String()),
		zap.String("connection_id", connectionID.String()),
		zap.String("field", field),
		zap.String("fingerprint", fingerprint),
		zap.String("user_id", event.UserID),
		zap.String("severity", event.Severity),
	)
}

func userIDFrom(ctx context.Context) string {
	id, err := auth.UserIDFromContext(ctx)
	if err != nil {
		return ""
	}
	return id.String()
}
