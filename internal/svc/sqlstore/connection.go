package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"msgqueue/internal/kernel"
	"msgqueue/internal/msgq"
	"msgqueue/internal/svc"
)

// connState is the service's open transaction, kept in its registry state.
type connState struct {
	Tx *sql.Tx
}

// Stats counts what the store has served. Kept in registry state next to
// connState.
type Stats struct {
	Queries uint64
	Execs   uint64
	Errors  uint64
}

// StatsOf reads the counters of a running store service.
func StatsOf(h msgq.Handle) (Stats, bool) {
	return msgq.Clone[Stats](h)
}

var errTxInProgress = errors.New("transaction already in progress")
var errNoTx = errors.New("no transaction in progress")

func (s *Service) Handler(ctx *kernel.ActCtx, msg msgq.Inbound) kernel.HandlerSignal {
	self := ctx.Self
	seed[connState](self)
	seed[Stats](self)
	tx, _ := msgq.Peek(self, func(c connState) *sql.Tx { return c.Tx })

	var reply any
	switch p := msg.Payload.(type) {
	case svc.SqlQuery:
		count(self, func(st *Stats) { st.Queries++ })
		reply = s.query(ctx.Context, tx, p)
	case svc.SqlExec:
		count(self, func(st *Stats) { st.Execs++ })
		reply = s.exec(ctx.Context, tx, p)
	case svc.SqlBegin:
		reply = s.begin(self, tx)
	case svc.SqlCommit:
		reply = finish(self, tx, "commit", func(tx *sql.Tx) error { return tx.Commit() })
	case svc.SqlRollback:
		reply = finish(self, tx, "rollback", func(tx *sql.Tx) error { return tx.Rollback() })
	default:
		ctx.Reject(msg)
		return kernel.Continue{}
	}

	if e, failed := reply.(svc.ErrorResult); failed {
		count(self, func(st *Stats) { st.Errors++ })
		log.Warnf("%T from %v failed: %s", msg.Payload, msg.From, e.Msg)
	}
	ctx.Reply(msg, reply)
	return kernel.Continue{}
}

// Release rolls back a transaction left open by the service behind h.
func Release(h msgq.Handle) {
	if c, ok := msgq.Remove[connState](h); ok && c.Tx != nil {
		_ = c.Tx.Rollback()
	}
}

func seed[T any](h msgq.Handle) {
	if _, ok := msgq.Peek(h, func(T) struct{} { return struct{}{} }); !ok {
		var zero T
		msgq.Put(h, zero)
	}
}

func count(h msgq.Handle, fn func(*Stats)) {
	msgq.Poke(h, func(st *Stats) struct{} {
		fn(st)
		return struct{}{}
	})
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Service) target(tx *sql.Tx) queryer {
	if tx != nil {
		return tx
	}
	return s.db
}

func (s *Service) query(ctx context.Context, tx *sql.Tx, p svc.SqlQuery) any {
	rows, err := s.target(tx).QueryContext(ctx, p.Sql, p.Params...)
	if err != nil {
		return svc.ErrorResult{Msg: err.Error()}
	}
	defer rows.Close()
	return queryResult(rows)
}

func (s *Service) exec(ctx context.Context, tx *sql.Tx, p svc.SqlExec) any {
	result, err := s.target(tx).ExecContext(ctx, p.Sql, p.Params...)
	if err != nil {
		return svc.ErrorResult{Msg: err.Error()}
	}
	affected, _ := result.RowsAffected()
	// postgres has no LastInsertId
	lastInsertId, _ := result.LastInsertId()
	return svc.ExecResult{RowsAffected: affected, LastInsertId: lastInsertId}
}

// begin opens a transaction that outlives the request, so it is not bound to
// the request context.
func (s *Service) begin(self msgq.Handle, tx *sql.Tx) any {
	if tx != nil {
		return svc.ErrorResult{Msg: errTxInProgress.Error()}
	}
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return svc.ErrorResult{Msg: err.Error()}
	}
	msgq.Put(self, connState{Tx: tx})
	return svc.Ack{Op: "begin"}
}

func finish(self msgq.Handle, tx *sql.Tx, op string, end func(*sql.Tx) error) any {
	if tx == nil {
		return svc.ErrorResult{Msg: errNoTx.Error()}
	}
	msgq.Put(self, connState{})
	if err := end(tx); err != nil {
		return svc.ErrorResult{Msg: err.Error()}
	}
	return svc.Ack{Op: op}
}

func queryResult(rows *sql.Rows) any {
	columns, err := rows.Columns()
	if err != nil {
		return svc.ErrorResult{Msg: err.Error()}
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return svc.ErrorResult{Msg: err.Error()}
	}

	result := svc.QueryResult{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return svc.ErrorResult{Msg: err.Error()}
		}
		row := make(svc.Row, len(columns))
		for i, col := range columns {
			var ct *sql.ColumnType
			if i < len(colTypes) {
				ct = colTypes[i]
			}
			row[col] = normalize(values[i], ct)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return svc.ErrorResult{Msg: err.Error()}
	}
	return result
}
