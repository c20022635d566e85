package server

import "fmt"

// Parameter extraction helpers for tool arguments

func stringParam(params map[string]interface{}, key, defaultVal string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		// Handle numeric values that JSON may decode as float64
		return fmt.Sprintf("%v", v)
	}
	return defaultVal
}
