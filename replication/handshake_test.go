package replication_test

import (
	"bufio"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/arbourd/redis-core/handler"
	"github.com/arbourd/redis-core/protocol"
	"github.com/arbourd/redis-core/replication"
	"github.com/arbourd/redis-core/store"
)

// fakeMaster accepts one connection, replies to the standard handshake
// steps, sends a FULLRESYNC plus an empty RDB, and returns the connection
// for the test to drive further (e.g. writing propagated commands).
func fakeMaster(t *testing.T, ln net.Listener) net.Conn {
	t.Helper()
	conn, err := ln.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	reader := bufio.NewReader(conn)
	parser := protocol.NewParser(reader)
	writer := protocol.NewWriter(conn)

	// PING, REPLCONF listening-port, REPLCONF capa psync2
	for i := 0; i < 3; i++ {
		if _, err := parser.ReadCommand(); err != nil {
			t.Fatalf("reading handshake step %d: %v", i, err)
		}
		if err := writer.WriteSimpleString("OK"); err != nil {
			t.Fatalf("writing handshake reply %d: %v", i, err)
		}
	}

	// PSYNC ? -1
	if _, err := parser.ReadCommand(); err != nil {
		t.Fatalf("reading PSYNC: %v", err)
	}
	if err := writer.WriteSimpleString("FULLRESYNC " + "0000000000000000000000000000000000000000" + " 0"); err != nil {
		t.Fatalf("writing FULLRESYNC: %v", err)
	}

	rdb := replication.EmptyRDB()
	if _, err := conn.Write([]byte("$" + strconv.Itoa(len(rdb)) + "\r\n")); err != nil {
		t.Fatalf("writing RDB header: %v", err)
	}
	if _, err := conn.Write(rdb); err != nil {
		t.Fatalf("writing RDB payload: %v", err)
	}

	return conn
}

func TestDialPerformsHandshakeAndConsumesRDB(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	addr := ln.Addr().(*net.TCPAddr)
	done := make(chan net.Conn, 1)
	go func() { done <- fakeMaster(t, ln) }()

	conn, parser, err := replication.Dial("127.0.0.1", addr.Port, 7000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer conn.Close()

	masterConn := <-done
	defer masterConn.Close()

	// Now the master propagates a command; the replica side should read
	// it cleanly off the parser positioned right after the RDB.
	masterWriter := protocol.NewWriter(masterConn)
	if err := masterWriter.WriteArray([]string{"SET", "a", "1"}); err != nil {
		t.Fatalf("writing propagated command: %v", err)
	}

	args, err := parser.ReadCommand()
	if err != nil {
		t.Fatalf("reading propagated command: %v", err)
	}
	if len(args) != 3 || args[0] != "SET" {
		t.Errorf("expected [SET a 1], got %v", args)
	}
}

func TestRunApplyLoopAppliesCommandsAndAdvancesOffset(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	mgr := replication.NewManager()
	applied := make(chan []string, 2)
	apply := func(args []string) error {
		applied <- args
		return nil
	}

	done := make(chan error, 1)
	go func() {
		parser := protocol.NewParser(bufio.NewReader(client))
		done <- replication.RunApplyLoop(client, parser, mgr, apply)
	}()

	writer := protocol.NewWriter(server)
	if err := writer.WriteArray([]string{"SET", "a", "1"}); err != nil {
		t.Fatalf("writing command: %v", err)
	}

	select {
	case args := <-applied:
		if len(args) != 3 || args[0] != "SET" {
			t.Errorf("expected [SET a 1], got %v", args)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for apply")
	}

	if mgr.Offset() == 0 {
		t.Error("expected offset to advance after applying a command")
	}

	server.Close()
	client.Close()
	<-done
}

// TestRunApplyLoopDoesNotDoubleCountOffsetForWrites guards against
// applying a propagated write through the real CommandRegistry (which
// calls Manager.Propagate for every write verb) advancing the follower's
// self-offset twice: once from CommandRegistry.Execute's own propagation
// hook and once from RunApplyLoop's per-frame accounting.
func TestRunApplyLoopDoesNotDoubleCountOffsetForWrites(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	mgr := replication.NewManager()
	mgr.SetReplicaOf("master-host", 6379)

	kv := store.NewStore()
	registry := handler.NewCommandRegistry()
	applyCtx := &handler.ExecContext{Store: kv, Repl: mgr}
	apply := func(args []string) error {
		_, err := registry.Execute(applyCtx, args[0], args[1:])
		return err
	}

	done := make(chan error, 1)
	go func() {
		parser := protocol.NewParser(bufio.NewReader(client))
		done <- replication.RunApplyLoop(client, parser, mgr, apply)
	}()

	cmd := []string{"SET", "a", "b"}
	payload := protocol.EncodeCommandArray(cmd)
	if _, err := server.Write(payload); err != nil {
		t.Fatalf("writing command: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for mgr.Offset() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if got, want := mgr.Offset(), int64(len(payload)); got != want {
		t.Errorf("expected self-offset to advance by exactly one frame (%d), got %d", want, got)
	}
	if got := kv.Get("a"); got == nil || *got != "b" {
		t.Errorf("expected the write to have actually applied, got %v", got)
	}

	server.Close()
	client.Close()
	<-done
}

func TestRunApplyLoopRespondsToGetAck(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	mgr := replication.NewManager()
	apply := func(args []string) error { return nil }

	go func() {
		parser := protocol.NewParser(bufio.NewReader(client))
		_ = replication.RunApplyLoop(client, parser, mgr, apply)
	}()

	writer := protocol.NewWriter(server)
	if err := writer.WriteArray([]string{"REPLCONF", "GETACK", "*"}); err != nil {
		t.Fatalf("writing GETACK: %v", err)
	}

	serverParser := protocol.NewParser(bufio.NewReader(server))
	reply, err := serverParser.ReadCommand()
	if err != nil {
		t.Fatalf("reading ACK reply: %v", err)
	}
	if len(reply) != 3 || reply[0] != "REPLCONF" || reply[1] != "ACK" {
		t.Errorf("expected [REPLCONF ACK n], got %v", reply)
	}
}
