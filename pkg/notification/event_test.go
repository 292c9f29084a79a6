package notification

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_MarshalWireFormat(t *testing.T) {
	e := Event{To: "a@x.com", Subject: "Verify", HTML: "<p>link</p>"}

	payload, err := e.Marshal()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(payload, &raw))
	assert.Equal(t, map[string]any{
		"to":      "a@x.com",
		"subject": "Verify",
		"html":    "<p>link</p>",
	}, raw)
}

func TestEvent_Validate(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		ok    bool
	}{
		{"valid", Event{To: "a@x.com", Subject: "s", HTML: "<p/>"}, true},
		{"display name", Event{To: "Ann <a@x.com>", Subject: "s", HTML: "<p/>"}, true},
		{"empty recipient", Event{Subject: "s", HTML: "<p/>"}, false},
		{"no at sign", Event{To: "ax.com", Subject: "s", HTML: "<p/>"}, false},
		{"bad address", Event{To: "a@@", Subject: "s", HTML: "<p/>"}, false},
		{"empty subject", Event{To: "a@x.com", Subject: "  ", HTML: "<p/>"}, false},
		{"empty html", Event{To: "a@x.com", Subject: "s"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidEvent)
		})
	}
}

func TestDecode(t *testing.T) {
	e, err := Decode([]byte(`{"to":"a@x.com","subject":"Verify","html":"<p>link</p>"}`))
	require.NoError(t, err)
	assert.Equal(t, Event{To: "a@x.com", Subject: "Verify", HTML: "<p>link</p>"}, e)

	_, err = Decode([]byte(`{"to":`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode([]byte(`{"subject":"x","html":"y"}`))
	assert.ErrorIs(t, err, ErrMalformed)
	assert.ErrorIs(t, err, ErrInvalidEvent)
}
