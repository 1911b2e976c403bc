package clickstream

import (
	"fmt"
	"time"
)

// NormalizeCustomData restricts free-form tracking data to a closed set of
// scalar kinds: string, number, boolean, timestamp. Anything else is
// stringified so arbitrary structure cannot leak into analytics queries.
func NormalizeCustomData(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}

	out := make(map[string]any, len(in))

	for key, value := range in {
		switch v := value.(type) {
		case string:
			out[key] = v
		case bool:
			out[key] = v
		case float64:
			out[key] = v
		case float32:
			out[key] = float64(v)
		case int:
			out[key] = float64(v)
		case int32:
			out[key] = float64(v)
		case int64:
			out[key] = float64(v)
		case time.Time:
			out[key] = v
		case nil:
			// dropped: absent and null are the same thing here
		default:
			out[key] = fmt.Sprint(v)
		}
	}

	if len(out) == 0 {
		return nil
	}

	return out
}
