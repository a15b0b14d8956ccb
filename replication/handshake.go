package replication

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/arbourd/redis-core/protocol"
)

// Dial performs the replica-side outbound handshake against a master:
// PING, REPLCONF listening-port, REPLCONF capa psync2, PSYNC ? -1, then
// consumes the +FULLRESYNC line and the RDB payload that follows it.
// Returns the connection and a Parser already positioned at the first
// byte after the RDB — any bytes already buffered there are the first
// propagated commands, per the handshake's own framing.
func Dial(host string, port int, ownPort int) (net.Conn, *protocol.Parser, error) {
	conn, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, nil, fmt.Errorf("replication: dial master: %w", err)
	}

	reader := bufio.NewReader(conn)
	parser := protocol.NewParser(reader)
	writer := protocol.NewWriter(conn)

	steps := [][]string{
		{"PING"},
		{"REPLCONF", "listening-port", strconv.Itoa(ownPort)},
		{"REPLCONF", "capa", "psync2"},
	}
	for _, args := range steps {
		if err := writer.WriteArray(args); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("replication: handshake write: %w", err)
		}
		if _, err := parser.Parse(); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("replication: handshake reply: %w", err)
		}
	}

	if err := writer.WriteArray([]string{"PSYNC", "?", "-1"}); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("replication: PSYNC write: %w", err)
	}

	// +FULLRESYNC <replid> <offset>, delivered as a simple-string line.
	if _, err := parser.Parse(); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("replication: FULLRESYNC reply: %w", err)
	}

	rdbLen, err := readRDBHeader(reader)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	if _, err := parser.ReadRDBPayload(rdbLen); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("replication: reading RDB payload: %w", err)
	}

	return conn, parser, nil
}

// readRDBHeader reads the "$<len>\r\n" line preceding the RDB payload.
// It is not a normal bulk string (no trailing CRLF after the payload), so
// it is read directly off the buffered reader rather than through Parse.
func readRDBHeader(reader *bufio.Reader) (int, error) {
	typeByte, err := reader.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("replication: reading RDB header: %w", err)
	}
	if typeByte != '$' {
		return 0, fmt.Errorf("replication: expected RDB bulk header, got %q", typeByte)
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		return 0, fmt.Errorf("replication: reading RDB length: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	n, err := strconv.Atoi(line)
	if err != nil {
		return 0, fmt.Errorf("replication: malformed RDB length %q: %w", line, err)
	}
	return n, nil
}

// Apply is called once per command frame received from the master. It
// must execute the command against the local Store and never write a
// response back (the master never reads one).
type Apply func(args []string) error

// RunApplyLoop continually parses RESP frames from conn/parser and hands
// each to apply, advancing mgr's self-offset by the re-serialized byte
// length of the frame after each one. REPLCONF GETACK * is special-cased:
// it is not passed to apply; instead the ACK reply is written back on the
// same connection, reporting the offset as of just before this frame, and
// only then is the GETACK frame's own length added to the offset.
func RunApplyLoop(conn net.Conn, parser *protocol.Parser, mgr *Manager, apply Apply) error {
	writer := protocol.NewWriter(conn)

	for {
		args, err := parser.ReadCommand()
		if err != nil {
			return fmt.Errorf("replication: reading propagated frame: %w", err)
		}

		frameLen := int64(len(protocol.EncodeCommandArray(args)))

		isGetAck := len(args) == 3 &&
			strings.EqualFold(args[0], "REPLCONF") &&
			strings.EqualFold(args[1], "GETACK") &&
			args[2] == "*"

		if isGetAck {
			offset := mgr.Offset()
			if err := writer.WriteArray([]string{"REPLCONF", "ACK", strconv.FormatInt(offset, 10)}); err != nil {
				return fmt.Errorf("replication: writing GETACK reply: %w", err)
			}
			mgr.AddOffset(frameLen)
			continue
		}

		if err := apply(args); err != nil {
			return fmt.Errorf("replication: applying propagated command %v: %w", args, err)
		}
		mgr.AddOffset(frameLen)
	}
}
