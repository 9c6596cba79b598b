package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

const (
	TypeQuizSubmitted  = "QuizSubmitted"
	TypeOrderCreated   = "OrderCreated"
	TypePaymentSettled = "PaymentSettled"
	TypeSessionCleared = "SessionCleared"
)

type Event struct {
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	CreatedAt int64           `json:"created_at"`
}

// Recorder is what services need to leave a trace in the journal.
type Recorder interface {
	Append(ctx context.Context, typ, key string, data any) error
}

// EventRepo is the local append-only activity log.
type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, typ, key string, data any) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s payload", typ)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4)`,
		typ, key, string(buf), time.Now().Unix())
	return errors.Wrapf(err, "failed to append %s", typ)
}

// List returns the newest events first. An empty typ matches every type.
func (r *EventRepo) List(ctx context.Context, typ string, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, typ, key, data, created_at FROM event_log
		 WHERE ($1 = '' OR typ = $1)
		 ORDER BY seq DESC LIMIT $2`, typ, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query event_log")
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var data string
		if err := rows.Scan(&e.Seq, &e.Type, &e.Key, &data, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan event")
		}
		e.Data = json.RawMessage(data)
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate event_log")
}
