package wire

import (
	"errors"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	ErrEmptyPayload = errors.New("empty payload")
	ErrMissingType  = errors.New("message type missing")
)

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2) so the same
// logical message always produces identical bytes.
var encMode cbor.EncMode

// decMode ignores unknown fields so newer clients can add message
// fields without breaking older room servers.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("wire: encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("wire: decoder initialization failed: " + err.Error())
	}
}

// Encode serializes a message to its binary wire form.
func Encode(message Message) ([]byte, error) {
	if message.Type == "" {
		return nil, ErrMissingType
	}
	return encMode.Marshal(message)
}

// Decode parses a binary frame into a message. Frames received as
// WebSocket text are decoded from their raw bytes exactly like binary
// frames. A frame whose envelope carries an unrecognized type still
// decodes successfully; classification is the caller's concern.
func Decode(payload []byte) (Message, error) {
	if len(payload) == 0 {
		return Message{}, ErrEmptyPayload
	}
	var message Message
	if err := decMode.Unmarshal(payload, &message); err != nil {
		return Message{}, err
	}
	if message.Type == "" {
		return Message{}, ErrMissingType
	}
	return message, nil
}

// Marshal encodes an arbitrary value with the deterministic encoder.
// Persisted room snapshots use the same encoding as wire frames.
func Marshal(value any) ([]byte, error) {
	return encMode.Marshal(value)
}

// Unmarshal decodes CBOR data into value.
func Unmarshal(payload []byte, value any) error {
	return decMode.Unmarshal(payload, value)
}
