// Package server owns the per-connection network loop: parsing RESP
// frames, running MULTI/EXEC/DISCARD interception, dispatching everything
// else through the handler registry, and handing a connection off to
// replica-serving mode once PSYNC promotes it.
package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/arbourd/redis-core/handler"
	"github.com/arbourd/redis-core/protocol"
	"github.com/arbourd/redis-core/replication"
	"github.com/arbourd/redis-core/store"
	"github.com/arbourd/redis-core/txn"
	"github.com/arbourd/redis-core/waiter"
)

// Deps bundles the process-wide collaborators every connection shares.
// Only Txn is per-connection and is constructed fresh in HandleConnection.
type Deps struct {
	Store    *store.Store
	Waiters  *waiter.Registry
	Repl     *replication.Manager
	Registry *handler.CommandRegistry
	Log      *logrus.Logger
}

// HandleConnection runs the read-parse-dispatch-write loop for a single
// client connection until it errors, closes, or is promoted to a replica
// link by PSYNC.
func HandleConnection(conn net.Conn, deps Deps) {
	defer conn.Close()

	log := deps.Log.WithField("remote_addr", conn.RemoteAddr().String())
	log.Debug("connection accepted")

	parser := protocol.NewParser(bufio.NewReader(conn))
	writer := protocol.NewWriter(conn)

	ctx := &handler.ExecContext{
		Store:   deps.Store,
		Waiters: deps.Waiters,
		Txn:     txn.New(),
		Repl:    deps.Repl,
		Writer:  writer,
		Conn:    conn,
	}

	for {
		args, err := parser.ReadCommand()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.WithError(err).Debug("connection closed reading command")
			}
			return
		}
		if len(args) == 0 {
			continue
		}

		result, err := dispatch(ctx, deps.Registry, args)
		if err != nil {
			if writeErr := writer.WriteError(err.Error()); writeErr != nil {
				log.WithError(writeErr).Debug("connection closed writing error reply")
				return
			}
			continue
		}

		if err := handler.WriteResult(writer, result); err != nil {
			log.WithError(err).Debug("connection closed writing reply")
			return
		}

		if promote, ok := result.(handler.PromoteToReplica); ok {
			log.WithField("replica_id", promote.Replica.ID).Info("connection promoted to replica link")
			serveReplicaLink(conn, promote.Replica, deps, log)
			return
		}
	}
}

// dispatch applies MULTI/EXEC/DISCARD queueing before handing a command to
// the registry: while a transaction is queueing, every verb except those
// three is buffered rather than executed (spec's "Queueing" transaction
// state).
func dispatch(ctx *handler.ExecContext, registry *handler.CommandRegistry, args []string) (interface{}, error) {
	cmd := strings.ToUpper(args[0])

	if ctx.Txn.State == txn.Queueing && cmd != "MULTI" && cmd != "EXEC" && cmd != "DISCARD" {
		if !registry.HasCommand(cmd) {
			return nil, &handler.UnknownCommandError{Command: args[0], Args: args[1:]}
		}
		ctx.Txn.Enqueue(cmd, args[1:])
		return handler.SimpleString("QUEUED"), nil
	}

	return registry.Execute(ctx, cmd, args[1:])
}

// serveReplicaLink takes over a connection after PSYNC: the master never
// expects further client commands on it, only REPLCONF ACK frames sent in
// response to GETACK probes.
func serveReplicaLink(conn net.Conn, replica *replication.Replica, deps Deps, log *logrus.Entry) {
	parser := protocol.NewParser(bufio.NewReader(conn))
	ctx := &handler.ExecContext{
		Store:   deps.Store,
		Waiters: deps.Waiters,
		Txn:     txn.New(),
		Repl:    deps.Repl,
		Writer:  protocol.NewWriter(conn),
		Conn:    conn,
		Replica: replica,
	}

	for {
		args, err := parser.ReadCommand()
		if err != nil {
			log.WithError(err).Debug("replica link closed")
			deps.Repl.RemoveReplica(replica.ID)
			return
		}
		if len(args) == 0 {
			continue
		}

		if _, err := deps.Registry.Execute(ctx, strings.ToUpper(args[0]), args[1:]); err != nil {
			log.WithError(err).Debug("error handling replica frame")
		}
	}
}
