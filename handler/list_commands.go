package handler

import (
	"reflect"
	"strconv"
	"time"

	"github.com/arbourd/redis-core/store"
	"github.com/arbourd/redis-core/waiter"
)

// PushHandler implements both LPUSH (Left: true) and RPUSH (Left: false).
// A successful push hands the Waiter Registry's DeliverOne to Store.Push
// so any blocked BLPOP on this key is woken only after the Store lock is
// released.
type PushHandler struct {
	Left bool
}

func (h *PushHandler) Execute(ctx *ExecContext, args []string) (interface{}, error) {
	name := "rpush"
	if h.Left {
		name = "lpush"
	}
	if len(args) < 2 {
		return nil, &WrongNumberOfArgumentsError{Command: name}
	}

	var notify store.NotifyFunc
	if ctx.Waiters != nil {
		notify = ctx.Waiters.DeliverOne
	}

	n, err := ctx.Store.Push(args[0], h.Left, args[1:], notify)
	if err != nil {
		return nil, err
	}
	return int64(n), nil
}

// PopHandler implements both LPOP (Left: true) and RPOP (Left: false),
// with or without an explicit count.
type PopHandler struct {
	Left bool
}

func (h *PopHandler) Execute(ctx *ExecContext, args []string) (interface{}, error) {
	name := "rpop"
	if h.Left {
		name = "lpop"
	}
	if len(args) < 1 || len(args) > 2 {
		return nil, &WrongNumberOfArgumentsError{Command: name}
	}

	var count *int
	if len(args) == 2 {
		n, err := store.ParseCount(args[1])
		if err != nil {
			return nil, err
		}
		count = &n
	}

	result, err := ctx.Store.Pop(args[0], h.Left, count)
	if err != nil {
		return nil, err
	}

	switch v := result.(type) {
	case nil:
		if count == nil {
			return nil, nil
		}
		return []string{}, nil
	case *string:
		if v == nil {
			return nil, nil
		}
		return *v, nil
	case []string:
		return v, nil
	default:
		return nil, nil
	}
}

// LLenHandler implements LLEN key.
type LLenHandler struct{}

func (h *LLenHandler) Execute(ctx *ExecContext, args []string) (interface{}, error) {
	if len(args) != 1 {
		return nil, &WrongNumberOfArgumentsError{Command: "llen"}
	}
	return int64(ctx.Store.LLen(args[0])), nil
}

// LRangeHandler implements LRANGE key start stop.
type LRangeHandler struct{}

func (h *LRangeHandler) Execute(ctx *ExecContext, args []string) (interface{}, error) {
	if len(args) != 3 {
		return nil, &WrongNumberOfArgumentsError{Command: "lrange"}
	}
	start, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, &InvalidArgumentError{Message: "value is not an integer or out of range"}
	}
	end, err := strconv.Atoi(args[2])
	if err != nil {
		return nil, &InvalidArgumentError{Message: "value is not an integer or out of range"}
	}

	out, err := ctx.Store.LRange(args[0], start, end)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BLPopHandler implements BLPOP key [key ...] timeout. It tries an
// immediate pop across all keys in order first; if none have data, it
// registers a waiter on every key and blocks until the first delivery or
// the timeout, canceling the rest of its registrations either way.
type BLPopHandler struct{}

func (h *BLPopHandler) Execute(ctx *ExecContext, args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, &WrongNumberOfArgumentsError{Command: "blpop"}
	}

	keys := args[:len(args)-1]
	timeoutSec, err := strconv.ParseFloat(args[len(args)-1], 64)
	if err != nil || timeoutSec < 0 {
		return nil, &InvalidArgumentError{Message: "timeout is not a float or out of range"}
	}

	for _, key := range keys {
		v, err := ctx.Store.Pop(key, true, nil)
		if err != nil {
			return nil, err
		}
		if s, ok := v.(*string); ok && s != nil {
			propagatePop(ctx, key)
			return []string{key, *s}, nil
		}
	}

	if ctx.Waiters == nil {
		return NilArray{}, nil
	}

	waiters := make([]*waiter.ListWaiter, len(keys))
	for i, key := range keys {
		waiters[i] = ctx.Waiters.RegisterList(key)
	}

	cases := make([]reflect.SelectCase, 0, len(waiters)+1)
	for _, w := range waiters {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(w.Ready())})
	}

	hasTimeout := timeoutSec > 0
	if hasTimeout {
		timeoutCh := time.After(time.Duration(timeoutSec * float64(time.Second)))
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(timeoutCh)})
	}

	chosen, _, _ := reflect.Select(cases)

	if hasTimeout && chosen == len(waiters) {
		for _, w := range waiters {
			ctx.Waiters.Cancel(w)
		}
		return NilArray{}, nil
	}

	for i, w := range waiters {
		if i != chosen {
			ctx.Waiters.Cancel(w)
		}
	}

	winner := waiters[chosen]
	v, err := ctx.Store.Pop(winner.Key(), true, nil)
	if err != nil {
		return nil, err
	}
	s, ok := v.(*string)
	if !ok || s == nil {
		return NilArray{}, nil
	}
	propagatePop(ctx, winner.Key())
	return []string{winner.Key(), *s}, nil
}

// propagatePop relays a successful BLPOP's effect to replicas as a plain
// LPOP: the command table marks BLPOP's own propagation "conditional on
// actually popping", and replaying a literal BLPOP on a replica would
// block it on a wait it can never satisfy on its own.
func propagatePop(ctx *ExecContext, key string) {
	if ctx.Repl != nil {
		ctx.Repl.Propagate([]string{"LPOP", key})
	}
}
