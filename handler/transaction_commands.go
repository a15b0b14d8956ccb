package handler

import (
	"bytes"

	"github.com/arbourd/redis-core/protocol"
	"github.com/arbourd/redis-core/txn"
)

// MultiHandler implements MULTI: enters QUEUEING state.
type MultiHandler struct{}

func (h *MultiHandler) Execute(ctx *ExecContext, args []string) (interface{}, error) {
	if !ctx.Txn.Begin() {
		return nil, &InvalidArgumentError{Message: "MULTI calls can not be nested"}
	}
	return SimpleString("OK"), nil
}

// DiscardHandler implements DISCARD: clears the queue, back to NORMAL.
type DiscardHandler struct{}

func (h *DiscardHandler) Execute(ctx *ExecContext, args []string) (interface{}, error) {
	if ctx.Txn.State == txn.Normal {
		return nil, &InvalidArgumentError{Message: "DISCARD without MULTI"}
	}
	ctx.Txn.Discard()
	return SimpleString("OK"), nil
}

// ExecHandler implements EXEC: replays the queued commands against the
// live registry and Store, capturing each response via an in-memory sink,
// and concatenates them into one array reply.
type ExecHandler struct {
	Registry *CommandRegistry
}

func (h *ExecHandler) Execute(ctx *ExecContext, args []string) (interface{}, error) {
	if ctx.Txn.State == txn.Normal {
		return nil, &InvalidArgumentError{Message: "EXEC without MULTI"}
	}

	queued := ctx.Txn.Drain()

	responses := make([][]byte, len(queued))
	for i, cmd := range queued {
		var buf bytes.Buffer
		sink := protocol.NewWriter(&buf)

		replayCtx := &ExecContext{
			Store:   ctx.Store,
			Waiters: ctx.Waiters,
			Txn:     ctx.Txn,
			Repl:    ctx.Repl,
			Writer:  sink,
			Conn:    ctx.Conn,
		}

		result, err := h.Registry.Execute(replayCtx, cmd.Name, cmd.Args)
		if err != nil {
			_ = sink.WriteError(err.Error())
		} else {
			_ = WriteResult(sink, result)
		}
		responses[i] = buf.Bytes()
	}

	return rawConcatenatedArray{count: len(responses), payloads: responses}, nil
}

// rawConcatenatedArray is EXEC's response: a RESP array header around
// already-serialized replies, which the normal encoder cannot produce
// since its elements are pre-encoded bytes rather than Go values.
type rawConcatenatedArray struct {
	count    int
	payloads [][]byte
}

// WriteTo writes the array header followed by the pre-encoded replies
// verbatim; WriteResult delegates to it for this result type.
func (r rawConcatenatedArray) WriteTo(w *protocol.Writer) error {
	if err := w.WriteArrayHeader(r.count); err != nil {
		return err
	}
	for _, p := range r.payloads {
		if err := w.WriteRaw(p); err != nil {
			return err
		}
	}
	return nil
}
