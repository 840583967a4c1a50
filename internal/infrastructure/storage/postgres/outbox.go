package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"setflow/internal/core/id"
	"setflow/internal/domain/events"
)

const (
	outboxPending   = "pending"
	outboxPublished = "published"
	outboxFailed    = "failed"

	outboxMaxRetries = 5
)

// OutboxMessage is one row of sys_outbox.
type OutboxMessage struct {
	ID            id.ID           `db:"id"`
	AggregateType string          `db:"aggregate_type"`
	AggregateID   id.ID           `db:"aggregate_id"`
	EventType     string          `db:"event_type"`
	Payload       json.RawMessage `db:"payload"`
	Status        string          `db:"status"`
	RetryCount    int             `db:"retry_count"`
	LastError     *string         `db:"last_error"`
	CreatedAt     time.Time       `db:"created_at"`
}

// Outbox appends events to sys_outbox inside the caller's transaction.
type Outbox struct{}

func NewOutbox() *Outbox { return &Outbox{} }

func (o *Outbox) Publish(ctx context.Context, evs ...events.Event) error {
	if len(evs) == 0 {
		return nil
	}
	txm := MustGetTxManager(ctx)
	if !txm.InTransaction(ctx) {
		return fmt.Errorf("outbox publish outside a transaction")
	}

	ins := psql.Insert("sys_outbox").
		Columns("id", "aggregate_type", "aggregate_id", "event_type", "payload", "status", "created_at")
	now := time.Now().UTC()
	for _, ev := range evs {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", ev.Type, err)
		}
		ins = ins.Values(id.New(), ev.AggregateType, ev.AggregateID, ev.Type, payload, outboxPending, now)
	}
	query, args, err := ins.ToSql()
	if err != nil {
		return fmt.Errorf("build outbox insert: %w", err)
	}
	if _, err := txm.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}

var _ events.Publisher = (*Outbox)(nil)

// OutboxHandler delivers one message. A returned error schedules a retry.
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage) error
}

type OutboxHandlerFunc func(ctx context.Context, msg *OutboxMessage) error

func (f OutboxHandlerFunc) Handle(ctx context.Context, msg *OutboxMessage) error { return f(ctx, msg) }

// OutboxRelay drains pending messages of one tenant database.
type OutboxRelay struct {
	txm       *TxManager
	batchSize int
	handler   OutboxHandler
}

func NewOutboxRelay(txm *TxManager, batchSize int, h OutboxHandler) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{txm: txm, batchSize: batchSize, handler: h}
}

// ProcessBatch locks up to batchSize due messages, hands each to the
// handler and records the outcome. It returns how many were delivered.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	delivered := 0
	err := r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.txm.GetQuerier(ctx)

		var msgs []*OutboxMessage
		err := pgxscan.Select(ctx, q, &msgs, `
			SELECT id, aggregate_type, aggregate_id, event_type, payload, status,
			       retry_count, last_error, created_at
			FROM sys_outbox
			WHERE status = $1 AND (next_retry_at IS NULL OR next_retry_at <= NOW())
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED`, outboxPending, r.batchSize)
		if err != nil {
			return fmt.Errorf("fetch outbox: %w", err)
		}

		for _, m := range msgs {
			if herr := r.handler.Handle(ctx, m); herr != nil {
				if err := r.markRetry(ctx, q, m, herr); err != nil {
					return err
				}
				continue
			}
			if _, err := q.Exec(ctx,
				`UPDATE sys_outbox SET status = $2, published_at = NOW() WHERE id = $1`,
				m.ID, outboxPublished); err != nil {
				return fmt.Errorf("mark published: %w", err)
			}
			delivered++
		}
		return nil
	})
	return delivered, err
}

func (r *OutboxRelay) markRetry(ctx context.Context, q Querier, m *OutboxMessage, cause error) error {
	status := outboxPending
	if m.RetryCount+1 >= outboxMaxRetries {
		status = outboxFailed
	}
	backoff := time.Duration(1<<m.RetryCount) * time.Minute
	_, err := q.Exec(ctx, `
		UPDATE sys_outbox
		SET retry_count = retry_count + 1, last_error = $2, next_retry_at = $3, status = $4
		WHERE id = $1`, m.ID, cause.Error(), time.Now().Add(backoff), status)
	if err != nil {
		return fmt.Errorf("mark retry: %w", err)
	}
	return nil
}

// PurgePublished deletes delivered messages older than keep.
func (r *OutboxRelay) PurgePublished(ctx context.Context, keep time.Duration) (int64, error) {
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM sys_outbox WHERE status = $1 AND published_at < $2`,
		outboxPublished, time.Now().Add(-keep))
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Pending counts undelivered messages.
func (r *OutboxRelay) Pending(ctx context.Context) (int64, error) {
	var n int64
	err := r.txm.GetQuerier(ctx).QueryRow(ctx,
		`SELECT count(*) FROM sys_outbox WHERE status = $1`, outboxPending).Scan(&n)
	if err != nil && err != pgx.ErrNoRows {
		return 0, fmt.Errorf("count outbox: %w", err)
	}
	return n, nil
}
