// Package collab defines the presence protocol spoken between the session
// server and its clients: a JSON envelope {"type", "data"} carrying one of a
// closed set of message kinds.
package collab

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

// Type is the discriminator of a wire message.
type Type string

const (
	TypeWelcome    Type = "welcome"
	TypeAnnounce   Type = "announce"
	TypeRoster     Type = "roster"
	TypeEditChange Type = "edit-change"
	TypeEditRelay  Type = "edit-relay"
	TypeError      Type = "error"
)

// MaxNameLength caps participant names, counted in runes.
const MaxNameLength = 64

var (
	// ErrUnknownType is returned by Decode for unrecognized message types.
	ErrUnknownType = errors.New("unknown message type")
	// ErrMalformed is returned by Decode for envelopes or payloads that do
	// not parse.
	ErrMalformed = errors.New("malformed message")
	// ErrInvalidAnnounce is returned by Announce.Normalize.
	ErrInvalidAnnounce = errors.New("invalid announce")
)

// Error codes sent in Error messages.
const (
	CodeMalformed       = "malformed"
	CodeUnknownType     = "unknown_type"
	CodeInvalidAnnounce = "invalid_announce"
	CodeUnexpected      = "unexpected"
)

// Participant is one announced collaborator. ID is assigned by the server per
// connection and is not stable across reconnects.
type Participant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Message is implemented by every payload type.
type Message interface {
	Type() Type
}

// Welcome tells a client the id of its own connection.
type Welcome struct {
	ID string `json:"id"`
}

// Announce joins the roster or updates the sender's name and color.
type Announce struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Roster is the complete participant list in join order.
type Roster struct {
	Participants []Participant `json:"participants"`
}

// EditChange carries an opaque edit payload to be relayed to others.
type EditChange struct {
	Payload json.RawMessage `json:"payload"`
}

// EditRelay is an EditChange as received by the other connections.
type EditRelay struct {
	SenderID string          `json:"sender_id"`
	Payload  json.RawMessage `json:"payload"`
}

// Error reports a rejected client message.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (Welcome) Type() Type    { return TypeWelcome }
func (Announce) Type() Type   { return TypeAnnounce }
func (Roster) Type() Type     { return TypeRoster }
func (EditChange) Type() Type { return TypeEditChange }
func (EditRelay) Type() Type  { return TypeEditRelay }
func (Error) Type() Type      { return TypeError }

type envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Encode wraps msg in an envelope.
func Encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type(), err)
	}
	return json.Marshal(envelope{Type: msg.Type(), Data: data})
}

// Decode parses an envelope into its typed message.
func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var msg Message
	switch env.Type {
	case TypeWelcome:
		msg = &Welcome{}
	case TypeAnnounce:
		msg = &Announce{}
	case TypeRoster:
		msg = &Roster{}
	case TypeEditChange:
		msg = &EditChange{}
	case TypeEditRelay:
		msg = &EditRelay{}
	case TypeError:
		msg = &Error{}
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("%w: %s without data", ErrMalformed, env.Type)
	}
	if err := json.Unmarshal(env.Data, msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
	}
	return deref(msg), nil
}

// deref returns payloads by value so consumers can switch on value types.
func deref(msg Message) Message {
	switch m := msg.(type) {
	case *Welcome:
		return *m
	case *Announce:
		return *m
	case *Roster:
		if m.Participants == nil {
			m.Participants = []Participant{}
		}
		return *m
	case *EditChange:
		return *m
	case *EditRelay:
		return *m
	case *Error:
		return *m
	}
	return msg
}

var (
	colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	// clients may format random colors without zero padding
	shortColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{1,6}$`)
)

// ValidColor reports whether c has the form #rrggbb.
func ValidColor(c string) bool {
	return colorPattern.MatchString(c)
}

// Normalize trims the name, caps it at MaxNameLength runes and brings the
// color into #rrggbb form. Only an empty name is rejected: colors with fewer
// than six digits are zero padded, and a missing or unparsable color is
// replaced by one derived from the name.
func (a Announce) Normalize() (Announce, error) {
	name := strings.TrimSpace(a.Name)
	if name == "" {
		return a, fmt.Errorf("%w: empty name", ErrInvalidAnnounce)
	}
	if !utf8.ValidString(name) {
		return a, fmt.Errorf("%w: name is not valid UTF-8", ErrInvalidAnnounce)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = string([]rune(name)[:MaxNameLength])
	}
	return Announce{Name: name, Color: normalizeColor(a.Color, name)}, nil
}

func normalizeColor(c, name string) string {
	if !shortColorPattern.MatchString(c) {
		return NameColor(name)
	}
	digits := strings.ToLower(c[1:])
	return "#" + strings.Repeat("0", 6-len(digits)) + digits
}

// NameColor derives a stable #rrggbb color from a participant name.
func NameColor(name string) string {
	return fmt.Sprintf("#%06x", xxhash.Sum64String(name)&0xffffff)
}
