package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseImageKeyMessage(t *testing.T) {
	msg, err := ParseImageKeyMessage(map[string]interface{}{
		"key":      "GOL_2000_ts",
		"group_id": ImageGroupID,
	})
	require.NoError(t, err)
	assert.Equal(t, "GOL_2000_ts", msg.Key)
	assert.Equal(t, ImageGroupID, msg.GroupID)
}

func TestParseImageKeyMessage_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]interface{}
	}{
		{"missing key", map[string]interface{}{"group_id": ImageGroupID}},
		{"empty key", map[string]interface{}{"key": "", "group_id": ImageGroupID}},
		{"missing group", map[string]interface{}{"key": "GOL_2000_ts"}},
		{"non-string key", map[string]interface{}{"key": 5, "group_id": ImageGroupID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseImageKeyMessage(tt.values)
			assert.Error(t, err)
		})
	}
}

func TestParseCountedImageMessage(t *testing.T) {
	msg, err := ParseCountedImageMessage(map[string]interface{}{
		"key":      "GOL_2000_ts",
		"count":    "3",
		"group_id": CountGroupID,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, msg.Count)
	assert.Equal(t, CountGroupID, msg.GroupID)
}

func TestParseCountedImageMessage_RoundTrip(t *testing.T) {
	original := CountedImageMessage{Key: "GOL_2000_ts", Count: 0, GroupID: CountGroupID}

	parsed, err := ParseCountedImageMessage(original.Fields())

	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}

func TestParseCountedImageMessage_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]interface{}
	}{
		{"missing count", map[string]interface{}{"key": "k", "group_id": CountGroupID}},
		{"non-numeric count", map[string]interface{}{"key": "k", "count": "many", "group_id": CountGroupID}},
		{"negative count", map[string]interface{}{"key": "k", "count": "-1", "group_id": CountGroupID}},
		{"missing key", map[string]interface{}{"count": "3", "group_id": CountGroupID}},
		{"missing group", map[string]interface{}{"key": "k", "count": "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCountedImageMessage(tt.values)
			assert.Error(t, err)
		})
	}
}
