package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttribute_SameValue(t *testing.T) {
	assert.True(t, NewStringAttribute("n", "a").SameValue(NewStringAttribute("n", "a")))
	assert.False(t, NewStringAttribute("n", "a").SameValue(NewStringAttribute("n", "b")))
	assert.False(t, NewStringAttribute("n", "1").SameValue(NewIntAttribute("n", 1)))
	assert.True(t, NewIntAttribute("n", 1).SameValue(NewIntAttribute("n", 1)))
	assert.True(t, NewBoolAttribute("n", true).SameValue(NewBoolAttribute("n", true)))
	assert.True(t, NewJSONAttribute("n", json.RawMessage(`{"a":1}`)).SameValue(NewJSONAttribute("n", json.RawMessage(`{"a":1}`))))
	assert.False(t, NewJSONAttribute("n", json.RawMessage(`{"a":1}`)).SameValue(NewJSONAttribute("n", json.RawMessage(`{"a":2}`))))
}

func TestAttribute_String(t *testing.T) {
	assert.Equal(t, "a", NewStringAttribute("n", "a").String())
	assert.Equal(t, "1", NewIntAttribute("n", 1).String())
	assert.Equal(t, "true", NewBoolAttribute("n", true).String())
}
