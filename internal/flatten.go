package internal

import "strconv"

// Flatten turns a nested JSON object into a single-level map whose keys are
// dotted paths. Array elements get indexed keys, so
// `{"pull_request": {"labels": [{"name": "bug"}]}}` yields
// `pull_request.labels[0].name`. The array itself stays reachable under its
// own path for length checks.
func Flatten(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for key, value := range data {
		walk(out, key, value)
	}
	return out
}

func walk(out map[string]interface{}, path string, value interface{}) {
	switch typed := value.(type) {
	case map[string]interface{}:
		for key, child := range typed {
			walk(out, path+"."+key, child)
		}
	case []interface{}:
		out[path] = typed
		for i, child := range typed {
			walk(out, path+"["+strconv.Itoa(i)+"]", child)
		}
	default:
		out[path] = value
	}
}
