// Package adapters binds the provider clients to research passes,
// converting between input/output key maps and client request types.
package adapters

// Input values cross the ledger as JSON, so numbers may arrive as
// float64 even when a pass produced them as int.

func stringInput(inputs map[string]any, key string) string {
	s, _ := inputs[key].(string)
	return s
}

func boolInput(inputs map[string]any, key string) bool {
	b, _ := inputs[key].(bool)
	return b
}

func intInput(inputs map[string]any, key string) int {
	switch v := inputs[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func floatInput(inputs map[string]any, key string) float64 {
	switch v := inputs[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}
