// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"strconv"

	"github.com/dalemusser/divehub/internal/app/store/audit"
	"go.uber.org/zap"
)

// Destinations for a category.
const (
	All = "all" // store + zap
	DB  = "db"  // store only
	Log = "log" // zap only
	Off = "off"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth covers access requests, PIN logins and logouts.
	Auth string
	// Admin covers approve, reject, revoke, reopen and PIN regeneration.
	Admin string
}

// Sink persists events. Both the MongoDB and PostgreSQL audit stores
// satisfy it.
type Sink interface {
	Log(ctx context.Context, e audit.Event) error
}

// Logger routes audit events to the store and to zap according to Config.
// Events never carry a PIN, a PIN hash or a PIN index.
type Logger struct {
	sink   Sink
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger. sink may be nil when no category writes
// to the database.
func New(sink Sink, zapLog *zap.Logger, config Config) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Logger{sink: sink, zapLog: zapLog, config: config}
}

type clientKey struct{}

type client struct {
	ip, userAgent string
}

// WithClient stores the caller's address and user agent on ctx so events
// logged deeper in the call chain can carry them.
func WithClient(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, clientKey{}, client{ip: ip, userAgent: userAgent})
}

// ClientFrom returns what WithClient stored.
func ClientFrom(ctx context.Context) (ip, userAgent string) {
	c, _ := ctx.Value(clientKey{}).(client)
	return c.ip, c.userAgent
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.AccountID != "" {
		fields = append(fields, zap.String("account_id", event.AccountID))
	}
	if event.ActorID != "" {
		fields = append(fields, zap.String("actor_id", event.ActorID))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// A nil Logger is a no-op.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	}
	if setting == "" {
		setting = All
	}
	if setting == Off {
		return
	}

	if event.IP == "" && event.UserAgent == "" {
		event.IP, event.UserAgent = ClientFrom(ctx)
	}

	if setting == All || setting == Log {
		l.logToZap(event)
	}
	if (setting == All || setting == DB) && l.sink != nil {
		if err := l.sink.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Authentication Events ---

func (l *Logger) AccessRequested(ctx context.Context, accountID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventAccessRequested,
		AccountID: accountID,
		Success:   true,
		Details:   map[string]string{"email": email},
	})
}

func (l *Logger) AccessRequestDenied(ctx context.Context, email, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventAccessRequestDenied,
		FailureReason: reason,
		Details:       map[string]string{"email": email},
	})
}

// LoginSuccess logs a successful PIN login. migrated is set when the
// login upgraded a legacy credential.
func (l *Logger) LoginSuccess(ctx context.Context, accountID string, migrated bool) {
	e := audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		AccountID: accountID,
		Success:   true,
	}
	if migrated {
		e.Details = map[string]string{"credential": "migrated"}
	}
	l.Log(ctx, e)
}

// LoginFailed logs a PIN that matched nothing. There is no account to
// attribute it to.
func (l *Logger) LoginFailed(ctx context.Context, attemptsRemaining int) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedPin,
		FailureReason: "no matching approved account",
		Details:       map[string]string{"attempts_remaining": strconv.Itoa(max(attemptsRemaining, 0))},
	})
}

// PinMigrated logs a legacy credential replaced by an indexed hash.
func (l *Logger) PinMigrated(ctx context.Context, accountID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventPinMigrated,
		AccountID: accountID,
		Success:   true,
	})
}

func (l *Logger) LoginLocked(ctx context.Context) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedLocked,
		FailureReason: "client locked out",
	})
}

func (l *Logger) Logout(ctx context.Context, accountID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		AccountID: accountID,
		Success:   true,
	})
}

// --- Admin Events ---

// AdminAction logs a lifecycle change made by actorID on accountID.
func (l *Logger) AdminAction(ctx context.Context, eventType, accountID, actorID string, details map[string]string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: eventType,
		AccountID: accountID,
		ActorID:   actorID,
		Success:   true,
		Details:   details,
	})
}
