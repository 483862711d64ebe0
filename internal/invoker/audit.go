package invoker

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/notifyhub/dispatcher/internal/dispatch"
)

// AuditInvoker wraps another Invoker and records one row per delivery
// attempt to the delivery_audit table: listener identity, dispatcher name,
// outcome, and error text if any. This is an audit trail for operators,
// not a durability mechanism for the dispatcher itself — if the audit
// write fails, delivery is not retried or rolled back; the failure is
// only logged. A dispatcher's own in-memory state is never reconstructed
// from this table.
type AuditInvoker struct {
	next           dispatch.Invoker
	pool           *pgxpool.Pool
	dispatcherName string
	logger         *zap.Logger
}

// NewAuditInvoker wraps next so every Invoke call is additionally recorded
// in pool's delivery_audit table, tagged with dispatcherName.
func NewAuditInvoker(next dispatch.Invoker, pool *pgxpool.Pool, dispatcherName string, logger *zap.Logger) *AuditInvoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditInvoker{next: next, pool: pool, dispatcherName: dispatcherName, logger: logger}
}

func (a *AuditInvoker) Invoke(ctx context.Context, listener dispatch.Listener, n dispatch.Notification) error {
	err := a.next.Invoke(ctx, listener, n)

	outcome := "delivered"
	var errMsg *string
	if err != nil {
		outcome = "recoverable_error"
		var fatal *dispatch.FatalInvokerError
		if errors.As(err, &fatal) {
			outcome = "fatal_error"
		}
		msg := err.Error()
		errMsg = &msg
	}

	a.record(ctx, listener, outcome, errMsg)
	return err
}

func (a *AuditInvoker) record(ctx context.Context, listener dispatch.Listener, outcome string, errMsg *string) {
	_, execErr := a.pool.Exec(ctx, `
		INSERT INTO delivery_audit (listener_key, dispatcher_name, outcome, error_message)
		VALUES ($1, $2, $3, $4)`,
		listenerLabel(listener), a.dispatcherName, outcome, errMsg,
	)
	if execErr != nil {
		a.logger.Error("failed to write delivery audit record",
			zap.String("dispatcher", a.dispatcherName), zap.String("outcome", outcome), zap.Error(execErr))
	}
}

var _ dispatch.Invoker = (*AuditInvoker)(nil)
