package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/arbourd/redis-core/store"
)

// XAddHandler implements XADD key id field value [field value ...].
type XAddHandler struct{}

func (h *XAddHandler) Execute(ctx *ExecContext, args []string) (interface{}, error) {
	if len(args) < 4 || len(args)%2 != 0 {
		return nil, &WrongNumberOfArgumentsError{Command: "xadd"}
	}

	key, idArg := args[0], args[1]
	fields := args[2:]

	id, err := ctx.Store.XAdd(key, idArg, fields, time.Now())
	if err != nil {
		return nil, err
	}

	if ctx.Waiters != nil {
		ctx.Waiters.BroadcastStreamArrival()
	}

	return id, nil
}

// streamEntriesToResult converts stream entries into the nested-array
// shape XRANGE and XREAD both use: each entry is [id, [field, value, ...]].
func streamEntriesToResult(entries []store.StreamEntry) []interface{} {
	out := make([]interface{}, len(entries))
	for i, e := range entries {
		out[i] = []interface{}{e.ID.String(), e.Fields}
	}
	return out
}

// XRangeHandler implements XRANGE key start end.
type XRangeHandler struct{}

func (h *XRangeHandler) Execute(ctx *ExecContext, args []string) (interface{}, error) {
	if len(args) != 3 {
		return nil, &WrongNumberOfArgumentsError{Command: "xrange"}
	}

	entries, err := ctx.Store.XRange(args[0], args[1], args[2])
	if err != nil {
		return nil, err
	}
	return streamEntriesToResult(entries), nil
}

// XReadHandler implements XREAD [BLOCK ms] STREAMS key [key ...] id [id ...].
type XReadHandler struct{}

func (h *XReadHandler) Execute(ctx *ExecContext, args []string) (interface{}, error) {
	i := 0
	var blockMs *int64
	if i < len(args) && strings.EqualFold(args[i], "BLOCK") {
		if i+1 >= len(args) {
			return nil, &WrongNumberOfArgumentsError{Command: "xread"}
		}
		ms, err := strconv.ParseInt(args[i+1], 10, 64)
		if err != nil {
			return nil, &InvalidArgumentError{Message: "timeout is not an integer or out of range"}
		}
		blockMs = &ms
		i += 2
	}

	if i >= len(args) || !strings.EqualFold(args[i], "STREAMS") {
		return nil, &InvalidArgumentError{Message: "syntax error"}
	}
	i++

	rest := args[i:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return nil, &WrongNumberOfArgumentsError{Command: "xread"}
	}
	n := len(rest) / 2
	keys := rest[:n]
	idArgs := rest[n:]

	starts := make([]store.ID, n)
	for j, raw := range idArgs {
		if raw == "$" {
			last, err := ctx.Store.LastID(keys[j])
			if err != nil {
				return nil, err
			}
			starts[j] = last
			continue
		}
		id, err := store.ParseID(raw)
		if err != nil {
			return nil, err
		}
		starts[j] = id
	}

	collect := func() ([]interface{}, error) {
		var out []interface{}
		for j, key := range keys {
			entries, err := ctx.Store.XReadAfter(key, starts[j])
			if err != nil {
				return nil, err
			}
			if len(entries) == 0 {
				continue
			}
			out = append(out, []interface{}{key, streamEntriesToResult(entries)})
		}
		return out, nil
	}

	result, err := collect()
	if err != nil {
		return nil, err
	}
	if len(result) > 0 || blockMs == nil {
		if len(result) == 0 {
			return NilArray{}, nil
		}
		return result, nil
	}

	if ctx.Waiters == nil {
		return NilArray{}, nil
	}

	indefinite := *blockMs == 0
	deadline := time.Now().Add(time.Duration(*blockMs) * time.Millisecond)

	for {
		arrivalCh := ctx.Waiters.StreamArrivalChan()

		var timeoutCh <-chan time.Time
		if !indefinite {
			timeoutCh = time.After(time.Until(deadline))
		}

		select {
		case <-arrivalCh:
			result, err := collect()
			if err != nil {
				return nil, err
			}
			if len(result) > 0 {
				return result, nil
			}
			// Spurious wake (a different key's stream fired); loop back
			// and wait again against the same original deadline.
		case <-timeoutCh:
			return NilArray{}, nil
		}
	}
}
