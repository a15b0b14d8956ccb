// Package handler dispatches parsed RESP commands to per-verb handlers
// that read and mutate the keyspace, coordinate blocking waits, and drive
// replication. Each verb is its own small handler type implementing
// CommandHandler, following the command pattern rather than one large
// switch statement.
package handler

import (
	"net"
	"strings"

	"github.com/arbourd/redis-core/protocol"
	"github.com/arbourd/redis-core/replication"
	"github.com/arbourd/redis-core/store"
	"github.com/arbourd/redis-core/txn"
	"github.com/arbourd/redis-core/waiter"
)

// ExecContext bundles everything a handler might need: the keyspace, the
// blocking-wait registry, this connection's transaction buffer, the
// replication manager, and a raw writer/conn pair for handlers (PSYNC)
// that must bypass normal response encoding.
type ExecContext struct {
	Store   *store.Store
	Waiters *waiter.Registry
	Txn     *txn.Transaction
	Repl    *replication.Manager
	Writer  *protocol.Writer
	Conn    net.Conn

	// Replica is set by the connection loop once this connection has been
	// promoted via PSYNC, so REPLCONF ACK frames arriving afterward can
	// be attributed to the right Replica record.
	Replica *replication.Replica
}

// CommandHandler is implemented by every supported verb.
type CommandHandler interface {
	// Execute runs the command and returns a result value for the
	// response encoder (see response.go), or an error.
	Execute(ctx *ExecContext, args []string) (interface{}, error)
}

type registration struct {
	handler CommandHandler
	write   bool // whether a successful call should propagate to replicas
}

// CommandRegistry maps verb names to handlers and centralizes
// propagation: any handler registered with write=true has its full
// command array propagated to connected replicas after it succeeds.
type CommandRegistry struct {
	handlers map[string]registration
}

// NewCommandRegistry returns a registry with every supported verb wired
// up.
func NewCommandRegistry() *CommandRegistry {
	r := &CommandRegistry{handlers: make(map[string]registration)}

	r.Register("PING", &PingHandler{}, false)
	r.Register("ECHO", &EchoHandler{}, false)

	r.Register("SET", &SetHandler{}, true)
	r.Register("GET", &GetHandler{}, false)
	r.Register("INCR", &IncrHandler{}, true)
	r.Register("DEL", &DelHandler{}, true)
	r.Register("EXISTS", &ExistsHandler{}, false)
	r.Register("TYPE", &TypeHandler{}, false)

	r.Register("RPUSH", &PushHandler{Left: false}, true)
	r.Register("LPUSH", &PushHandler{Left: true}, true)
	r.Register("LPOP", &PopHandler{Left: true}, true)
	r.Register("RPOP", &PopHandler{Left: false}, true)
	r.Register("LLEN", &LLenHandler{}, false)
	r.Register("LRANGE", &LRangeHandler{}, false)
	// BLPOP propagates its own equivalent LPOP directly (see
	// BLPopHandler.Execute) rather than through the generic write-flag
	// path below: replaying a literal BLPOP on a replica would block it,
	// and only a successful pop should ever propagate.
	r.Register("BLPOP", &BLPopHandler{}, false)

	r.Register("XADD", &XAddHandler{}, true)
	r.Register("XRANGE", &XRangeHandler{}, false)
	r.Register("XREAD", &XReadHandler{}, false)

	r.Register("MULTI", &MultiHandler{}, false)
	r.Register("EXEC", &ExecHandler{Registry: r}, false)
	r.Register("DISCARD", &DiscardHandler{}, false)

	r.Register("INFO", &InfoHandler{}, false)
	r.Register("REPLCONF", &ReplConfHandler{}, false)
	r.Register("PSYNC", &PSyncHandler{}, false)
	r.Register("WAIT", &WaitHandler{}, false)

	return r
}

// Register adds or replaces the handler for cmd (case-insensitive).
func (r *CommandRegistry) Register(cmd string, h CommandHandler, write bool) {
	r.handlers[strings.ToUpper(cmd)] = registration{handler: h, write: write}
}

// HasCommand reports whether cmd is registered.
func (r *CommandRegistry) HasCommand(cmd string) bool {
	_, ok := r.handlers[strings.ToUpper(cmd)]
	return ok
}

// Execute looks up cmd and runs its handler. On success, if the verb is
// marked as a write, it propagates the full command array (verb
// uppercased, followed by args) to replicas via ctx.Repl.
func (r *CommandRegistry) Execute(ctx *ExecContext, cmd string, args []string) (interface{}, error) {
	cmdUpper := strings.ToUpper(cmd)

	reg, ok := r.handlers[cmdUpper]
	if !ok {
		return nil, &UnknownCommandError{Command: cmd, Args: args}
	}

	result, err := reg.handler.Execute(ctx, args)
	if err == nil && reg.write && ctx.Repl != nil {
		full := append([]string{cmdUpper}, args...)
		ctx.Repl.Propagate(full)
	}
	return result, err
}
