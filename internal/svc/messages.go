package svc

import (
	"msgqueue/internal/logger"
	"msgqueue/internal/msgq"
)

const SOutService = "sout"
const LogService = "log"
const SqlService = "sql"
const PongService = "pong"

// Log service messages
// ====================

type LogfMessage struct {
	Source  msgq.ServiceID
	Level   logger.Level
	Message string
	Args    []any
}

type LogMessage struct {
	Source  msgq.ServiceID
	Level   logger.Level
	Message string
}

type LogConfigure struct {
	Level logger.Level
}

// SOut service messages
// ====================

type SOutPrintln struct {
	Str  string
	Args []any
}

type SOutResp struct {
	BytesWritten int
	Err          error
}

// Pong service messages
// =====================

type Ping struct {
	Seq int
}

type Pong struct {
	Seq  int
	From msgq.ServiceID
}

// SQL store messages
// ==================

type SqlQuery struct {
	Sql    string
	Params []any
}

type SqlExec struct {
	Sql    string
	Params []any
}

type SqlBegin struct{}

type SqlCommit struct{}

type SqlRollback struct{}

// Row maps column names to scanned values.
type Row map[string]any

type QueryResult struct {
	Columns []string
	Rows    []Row
}

type ExecResult struct {
	RowsAffected int64
	LastInsertId int64
}

// Ack confirms a transaction step; Op names it ("begin", "commit", "rollback").
type Ack struct {
	Op string
}

type ErrorResult struct {
	Msg string
}

func (e ErrorResult) Error() string { return e.Msg }
