package runtime

import (
	"context"
	"sync"

	"github.com/risor-io/risor/object"
)

// RowCollector gathers the rows a report script passes to emit. Exported so
// the engine can install it as an extra global without importing object.
type RowCollector struct {
	mu   sync.Mutex
	rows []map[string]any
}

// NewRowCollector returns an empty collector.
func NewRowCollector() *RowCollector {
	return &RowCollector{}
}

// Builtin returns the "emit" host function bound to c.
//
// emit(map)
func (c *RowCollector) Builtin() any {
	return object.NewBuiltin("emit", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("emit", 1, len(args))
		}
		m, ok := args[0].(*object.Map)
		if !ok {
			return object.Errorf("emit: expected map, got %s", args[0].Type())
		}
		row := make(map[string]any, len(m.Value()))
		for k, v := range m.Value() {
			row[k] = v.Interface()
		}
		c.mu.Lock()
		c.rows = append(c.rows, row)
		c.mu.Unlock()
		return object.Nil
	})
}

// Rows returns the emitted rows in emit order.
func (c *RowCollector) Rows() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, len(c.rows))
	copy(out, c.rows)
	return out
}
