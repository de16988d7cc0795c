package util

import (
	"testing"

	"github.com/bmizerany/assert"
)

func TestJsonString(t *testing.T) {
	s, err := JsonString(map[string]interface{}{"trigger": "manual"})
	assert.Equal(t, nil, err)
	assert.Equal(t, `{"trigger":"manual"}`, s)

	s, err = JsonString(nil)
	assert.Equal(t, nil, err)
	assert.Equal(t, "", s)

	_, err = JsonString(func() {})
	assert.NotEqual(t, nil, err)
}
