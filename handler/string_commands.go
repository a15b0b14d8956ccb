package handler

import (
	"strconv"
	"strings"
)

// SetHandler implements SET key value [PX milliseconds].
type SetHandler struct{}

func (h *SetHandler) Execute(ctx *ExecContext, args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, &WrongNumberOfArgumentsError{Command: "set"}
	}

	key, value := args[0], args[1]

	var pxMs *int64
	switch len(args) {
	case 2:
	case 4:
		if !strings.EqualFold(args[2], "PX") {
			return nil, &InvalidArgumentError{Message: "syntax error"}
		}
		ms, err := strconv.ParseInt(args[3], 10, 64)
		if err != nil {
			return nil, &InvalidArgumentError{Message: "value is not an integer or out of range"}
		}
		pxMs = &ms
	default:
		return nil, &InvalidArgumentError{Message: "syntax error"}
	}

	ctx.Store.Set(key, value, pxMs)
	return SimpleString("OK"), nil
}

// GetHandler implements GET key.
type GetHandler struct{}

func (h *GetHandler) Execute(ctx *ExecContext, args []string) (interface{}, error) {
	if len(args) != 1 {
		return nil, &WrongNumberOfArgumentsError{Command: "get"}
	}
	v := ctx.Store.Get(args[0])
	if v == nil {
		return nil, nil
	}
	return *v, nil
}

// IncrHandler implements INCR key.
type IncrHandler struct{}

func (h *IncrHandler) Execute(ctx *ExecContext, args []string) (interface{}, error) {
	if len(args) != 1 {
		return nil, &WrongNumberOfArgumentsError{Command: "incr"}
	}
	n, err := ctx.Store.Incr(args[0])
	if err != nil {
		return nil, err
	}
	return n, nil
}

// DelHandler implements DEL key [key ...].
type DelHandler struct{}

func (h *DelHandler) Execute(ctx *ExecContext, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, &WrongNumberOfArgumentsError{Command: "del"}
	}
	return int64(ctx.Store.Del(args)), nil
}

// ExistsHandler implements EXISTS key [key ...].
type ExistsHandler struct{}

func (h *ExistsHandler) Execute(ctx *ExecContext, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, &WrongNumberOfArgumentsError{Command: "exists"}
	}
	return int64(ctx.Store.Exists(args)), nil
}

// TypeHandler implements TYPE key.
type TypeHandler struct{}

func (h *TypeHandler) Execute(ctx *ExecContext, args []string) (interface{}, error) {
	if len(args) != 1 {
		return nil, &WrongNumberOfArgumentsError{Command: "type"}
	}
	return SimpleString(ctx.Store.Type(args[0])), nil
}
