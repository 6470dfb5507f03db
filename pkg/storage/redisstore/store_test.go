package redisstore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adfharrison1/go-securedocs/pkg/domain"
)

func TestEncodeFields(t *testing.T) {
	args, err := encodeFields(domain.Document{"_id": "a1", "score": 720.0, "tags": []interface{}{"x"}})
	require.NoError(t, err)
	require.Len(t, args, 6)

	got := make(map[string]interface{})
	for i := 0; i < len(args); i += 2 {
		var value interface{}
		require.NoError(t, json.Unmarshal([]byte(args[i+1].(string)), &value))
		got[args[i].(string)] = value
	}
	assert.Equal(t, map[string]interface{}{"_id": "a1", "score": 720.0, "tags": []interface{}{"x"}}, got)
}

func TestDecodeField_KeepsNumbersExact(t *testing.T) {
	args, err := encodeFields(domain.Document{"account_number": json.Number("9007199254740993")})
	require.NoError(t, err)

	got, err := decodeField(args[1].(string))
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), got)

	_, err = decodeField("{not json")
	assert.Error(t, err)
}

func TestEncodeFields_Unencodable(t *testing.T) {
	_, err := encodeFields(domain.Document{"ch": make(chan int)})
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "securedocs:contact:c1", New(nil).key("contact", "c1"))
	assert.Equal(t, "t:contact:c1", New(nil, WithPrefix("t:")).key("contact", "c1"))
}
