package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/arbourd/redis-core/replication"
)

// InfoHandler implements INFO: a bulk reply encoding role, replication ID
// and offset, one "key:value" pair per line.
type InfoHandler struct{}

func (h *InfoHandler) Execute(ctx *ExecContext, args []string) (interface{}, error) {
	role := "master"
	if ctx.Repl.Role() == replication.RoleReplica {
		role = "slave"
	}

	lines := []string{
		"role:" + role,
		"master_replid:" + ctx.Repl.ReplID(),
		"master_repl_offset:" + strconv.FormatInt(ctx.Repl.Offset(), 10),
	}
	return strings.Join(lines, "\r\n"), nil
}

// ReplConfHandler implements REPLCONF listening-port|capa|getack|ack.
type ReplConfHandler struct{}

func (h *ReplConfHandler) Execute(ctx *ExecContext, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, &WrongNumberOfArgumentsError{Command: "replconf"}
	}

	switch strings.ToLower(args[0]) {
	case "listening-port", "capa":
		return SimpleString("OK"), nil
	case "getack":
		// Only ever directed at a replica, which intercepts it in its
		// inbound apply loop (replication.RunApplyLoop) rather than
		// routing it through the normal command registry; reaching here
		// means it was sent to a master or plain client by mistake.
		return []string{"REPLCONF", "ACK", strconv.FormatInt(ctx.Repl.Offset(), 10)}, nil
	case "ack":
		if len(args) < 2 {
			return nil, &WrongNumberOfArgumentsError{Command: "replconf"}
		}
		offset, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return nil, &InvalidArgumentError{Message: "invalid offset"}
		}
		if r, ok := replicaForConn(ctx); ok {
			r.SetOffset(offset)
		}
		return noReply{}, nil
	default:
		return nil, &InvalidArgumentError{Message: fmt.Sprintf("unknown REPLCONF option '%s'", args[0])}
	}
}

// noReply marks a result that must not produce any bytes on the wire —
// REPLCONF ACK is one-way, the replica never gets a response to it.
type noReply struct{}

// replicaForConn looks up which Replica record, if any, corresponds to
// this connection. The connection handler is expected to stash it on the
// ExecContext once a connection is promoted via PSYNC; until then this
// always reports not-found.
func replicaForConn(ctx *ExecContext) (*replication.Replica, bool) {
	if ctx.Replica == nil {
		return nil, false
	}
	return ctx.Replica, true
}

// PSyncHandler implements PSYNC ? -1: the full-resync path this server
// always takes (partial resync and on-disk persistence are out of
// scope). It writes the FULLRESYNC preamble and RDB payload directly on
// ctx.Writer, registers the connection as a replica, and returns a
// PromoteToReplica sentinel telling the connection loop to stop framing
// this connection's input as ordinary commands.
type PSyncHandler struct{}

func (h *PSyncHandler) Execute(ctx *ExecContext, args []string) (interface{}, error) {
	if err := ctx.Writer.WriteSimpleString(
		fmt.Sprintf("FULLRESYNC %s %d", ctx.Repl.ReplID(), ctx.Repl.Offset()),
	); err != nil {
		return nil, err
	}

	rdb := replication.EmptyRDB()
	if err := ctx.Writer.WriteRaw([]byte(fmt.Sprintf("$%d\r\n", len(rdb)))); err != nil {
		return nil, err
	}
	if err := ctx.Writer.WriteRaw(rdb); err != nil {
		return nil, err
	}

	replica := ctx.Repl.AddReplica(ctx.Conn)
	return PromoteToReplica{Replica: replica}, nil
}

// PromoteToReplica signals that ctx.Conn has just been handed its
// FULLRESYNC preamble and must be taken over by the server's replica
// read/write loop instead of continuing through the normal per-command
// dispatch.
type PromoteToReplica struct {
	Replica *replication.Replica
}

// WaitHandler implements WAIT numreplicas timeout_ms.
type WaitHandler struct{}

func (h *WaitHandler) Execute(ctx *ExecContext, args []string) (interface{}, error) {
	if len(args) != 2 {
		return nil, &WrongNumberOfArgumentsError{Command: "wait"}
	}
	numReplicas, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, &InvalidArgumentError{Message: "value is not an integer or out of range"}
	}
	timeoutMs, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, &InvalidArgumentError{Message: "value is not an integer or out of range"}
	}

	count := ctx.Repl.Wait(context.Background(), numReplicas, time.Duration(timeoutMs)*time.Millisecond)
	return int64(count), nil
}
