package redis

import (
	"encoding/json"
	"testing"

	"github.com/jwalitptl/booking-api/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePassesRawPayloadThrough(t *testing.T) {
	raw := json.RawMessage(`{"type":"booking.created"}`)

	out, err := encode(raw)
	require.NoError(t, err)
	assert.Equal(t, []byte(raw), out)

	out, err = encode("plain")
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), out)
}

func TestEncodeMarshalsStructs(t *testing.T) {
	out, err := encode(messaging.Message{Type: "booking.completed", Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"type":"booking.completed"`)
}

func TestEncodeRejectsUnmarshalableValues(t *testing.T) {
	_, err := encode(make(chan int))
	assert.Error(t, err)
}
