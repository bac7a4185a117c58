//go:build sqlite_vtable

package vtable

import (
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/leapstack-labs/tablebridge/pkg/core"
)

// fromEngine normalizes a value the engine handed us (a bound
// constraint parameter or a mutation column) into the adapter-facing
// representation for the field. The engine surfaces text as raw bytes;
// everything else maps directly.
func fromEngine(v any, f core.Field) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		if f.Type == core.TypeBlob {
			return val
		}
		return string(val)
	case int64:
		if f.Type == core.TypeBool {
			return val != 0
		}
		return val
	default:
		return v
	}
}

// resultColumn writes a row value into the engine's result context.
func resultColumn(c *sqlite3.SQLiteContext, v any) error {
	switch val := v.(type) {
	case nil:
		c.ResultNull()
	case bool:
		c.ResultBool(val)
	case int:
		c.ResultInt(val)
	case int64:
		c.ResultInt64(val)
	case float64:
		c.ResultDouble(val)
	case string:
		c.ResultText(val)
	case []byte:
		c.ResultBlob(val)
	case time.Time:
		c.ResultText(val.Format(time.RFC3339))
	default:
		// Unknown adapter types degrade to their string form rather
		// than failing the scan.
		c.ResultText(stringify(val))
	}
	return nil
}

func stringify(v any) string {
	return fmt.Sprintf("%v", v)
}
