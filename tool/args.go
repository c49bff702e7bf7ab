package tool

import "encoding/json"

// StringArg reads a string argument, "" when absent or mistyped.
func StringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// StringArgDefault reads a string argument with a fallback.
func StringArgDefault(args map[string]any, key, fallback string) string {
	if s, ok := args[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

// NumberArg reads a numeric argument. Decoded JSON numbers arrive as
// float64; json.Number and Go ints are accepted too.
func NumberArg(args map[string]any, key string) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}

// IntArg reads an integer argument with a fallback for absent or
// non-positive values.
func IntArg(args map[string]any, key string, fallback int) int {
	n := int(NumberArg(args, key))
	if n <= 0 {
		return fallback
	}
	return n
}
