package util

import (
	"encoding/json"
)

// JsonString compact json rendering of v, used when run args appear in log
// lines. A nil value renders empty rather than the json null literal.
func JsonString(v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
