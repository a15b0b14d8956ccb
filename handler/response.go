package handler

import (
	"fmt"

	"github.com/arbourd/redis-core/protocol"
)

// SimpleString marks a result that must be written as a RESP simple
// string (e.g. "+OK") rather than a bulk string.
type SimpleString string

// NilArray marks a result that must be written as a null array
// ("*-1\r\n"), e.g. BLPOP's timeout response.
type NilArray struct{}

// WriteResult encodes a handler's result value onto w. Handlers return
// plain Go values (string, int64, []string, nil, ...); this is the one
// place that maps them onto RESP wire types, including the nested-array
// shape XRANGE/XREAD entries need ([]interface{} recurses).
func WriteResult(w *protocol.Writer, result interface{}) error {
	switch v := result.(type) {
	case nil:
		return w.WriteNilBulk()
	case rawConcatenatedArray:
		return v.WriteTo(w)
	case noReply:
		return nil
	case PromoteToReplica:
		return nil
	case SimpleString:
		return w.WriteSimpleString(string(v))
	case NilArray:
		return w.WriteNilArray()
	case string:
		return w.WriteBulk(v)
	case *string:
		return w.WriteBulkString(v)
	case int:
		return w.WriteInteger(int64(v))
	case int64:
		return w.WriteInteger(v)
	case []string:
		return w.WriteArray(v)
	case []interface{}:
		if err := w.WriteArrayHeader(len(v)); err != nil {
			return err
		}
		for _, item := range v {
			if err := WriteResult(w, item); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("handler: unencodable result type %T", result)
	}
}
