package main

import (
	"fmt"
	"net"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/arbourd/redis-core/handler"
	"github.com/arbourd/redis-core/replication"
	"github.com/arbourd/redis-core/server"
	"github.com/arbourd/redis-core/store"
	"github.com/arbourd/redis-core/waiter"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var port int
	var replicaOf string

	cmd := &cobra.Command{
		Use:   "redis-core",
		Short: "An in-memory Redis-compatible server with master/replica replication",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(port, replicaOf)
		},
	}

	cmd.Flags().IntVar(&port, "port", 6379, "TCP port to listen on")
	cmd.Flags().StringVar(&replicaOf, "replicaof", "", `master "host port" to replicate from`)

	return cmd
}

func run(port int, replicaOf string) error {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	repl := replication.NewManager()
	kv := store.NewStore()
	waiters := waiter.NewRegistry()
	registry := handler.NewCommandRegistry()

	deps := server.Deps{
		Store:    kv,
		Waiters:  waiters,
		Repl:     repl,
		Registry: registry,
		Log:      log,
	}

	if replicaOf != "" {
		host, masterPort, err := parseReplicaOf(replicaOf)
		if err != nil {
			return err
		}
		repl.SetReplicaOf(host, masterPort)
		go runReplicaLink(host, masterPort, port, repl, kv, waiters, log)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", port, err)
	}
	defer ln.Close()

	log.WithField("port", port).Info("listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.WithError(err).Error("error accepting connection")
			continue
		}
		go server.HandleConnection(conn, deps)
	}
}

// runReplicaLink dials the configured master, completes the PSYNC
// handshake, and applies every propagated command against the local
// keyspace until the connection drops. It never returns on success; a
// dropped master link is logged and the goroutine exits rather than
// retrying, since reconnection policy is outside scope.
func runReplicaLink(host string, masterPort, ownPort int, repl *replication.Manager, kv *store.Store, waiters *waiter.Registry, log *logrus.Logger) {
	conn, parser, err := replication.Dial(host, masterPort, ownPort)
	if err != nil {
		log.WithError(err).Error("replica handshake with master failed")
		return
	}
	defer conn.Close()

	log.WithFields(logrus.Fields{"master_host": host, "master_port": masterPort}).Info("replica handshake complete")

	registry := handler.NewCommandRegistry()
	applyCtx := &handler.ExecContext{Store: kv, Waiters: waiters, Repl: repl}

	apply := func(args []string) error {
		if len(args) == 0 {
			return nil
		}
		_, err := registry.Execute(applyCtx, args[0], args[1:])
		return err
	}

	if err := replication.RunApplyLoop(conn, parser, repl, apply); err != nil {
		log.WithError(err).Error("replica link to master closed")
	}
}
