package collab

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_Envelope(t *testing.T) {
	raw, err := Encode(Announce{Name: "Alice", Color: "#ff0000"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"announce","data":{"name":"Alice","color":"#ff0000"}}`, string(raw))

	raw, err = Encode(EditRelay{SenderID: "c1", Payload: json.RawMessage(`{"line":3}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"edit-relay","data":{"sender_id":"c1","payload":{"line":3}}}`, string(raw))
}

func TestDecode(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"roster","data":{"participants":[{"id":"1","name":"Bob","color":"#00ff00"}]}}`))
	require.NoError(t, err)
	roster, ok := msg.(Roster)
	require.True(t, ok)
	assert.Equal(t, []Participant{{ID: "1", Name: "Bob", Color: "#00ff00"}}, roster.Participants)

	msg, err = Decode([]byte(`{"type":"roster","data":{}}`))
	require.NoError(t, err)
	assert.NotNil(t, msg.(Roster).Participants)

	msg, err = Decode([]byte(`{"type":"edit-change","data":{"payload":[1,2]}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2]`, string(msg.(EditChange).Payload))
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `hello`, ErrMalformed},
		{"missing type", `{"data":{}}`, ErrMalformed},
		{"unknown type", `{"type":"cursor","data":{}}`, ErrUnknownType},
		{"missing data", `{"type":"announce"}`, ErrMalformed},
		{"null data", `{"type":"welcome","data":null}`, ErrMalformed},
		{"wrong payload shape", `{"type":"announce","data":{"name":7}}`, ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAnnounceNormalize(t *testing.T) {
	a, err := Announce{Name: "  Alice ", Color: "#AABBCC"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, Announce{Name: "Alice", Color: "#aabbcc"}, a)

	long := strings.Repeat("ä", MaxNameLength+10)
	a, err = Announce{Name: long, Color: "#000000"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, MaxNameLength, len([]rune(a.Name)))

	_, err = Announce{Name: "   ", Color: "#000000"}.Normalize()
	assert.ErrorIs(t, err, ErrInvalidAnnounce)
}

func TestAnnounceNormalize_Color(t *testing.T) {
	tests := []struct {
		color string
		want  string
	}{
		{"#AbCdEf", "#abcdef"},
		{"#abcde", "#0abcde"},
		{"#f", "#00000f"},
		{"", NameColor("Bob")},
		{"red", NameColor("Bob")},
		{"#1234567", NameColor("Bob")},
		{"#", NameColor("Bob")},
	}
	for _, tt := range tests {
		t.Run(tt.color, func(t *testing.T) {
			a, err := Announce{Name: "Bob", Color: tt.color}.Normalize()
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Color)
			assert.True(t, ValidColor(a.Color))
		})
	}
	assert.Equal(t, NameColor("Bob"), NameColor("Bob"))
}
