// codec.go implements serialization and deserialization of protocol messages.
//
// Wire Format:
//
// A message is one JSON object whose "type" field names its shape. On a
// stream, messages are separated by a single newline:
//
//	{"type":"fetch_inbox","inbox_id":"..."}\n
//	{"type":"quantum_inbox_messages","messages":[...]}\n
//
// No encoded message may exceed MaxMessageSize bytes.
package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
)

// Codec provides message serialization and deserialization.
type Codec struct {
	buffers sync.Pool
}

// NewCodec creates a new protocol codec.
func NewCodec() *Codec {
	return &Codec{
		buffers: sync.Pool{
			New: func() any { return new(bytes.Buffer) },
		},
	}
}

// Encode serializes m with its type tag.
func (c *Codec) Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, qerrors.ErrInvalidMessage
	}
	if v, ok := m.(validator); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", qerrors.ErrInvalidMessage, err)
	}
	tag, err := json.Marshal(m.Type())
	if err != nil {
		return nil, err
	}

	buf := c.buffers.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		c.buffers.Put(buf)
	}()

	// body is always a JSON object; splice the tag in as its first field.
	buf.WriteString(`{"type":`)
	buf.Write(tag)
	if len(body) > 2 {
		buf.WriteByte(',')
		buf.Write(body[1:])
	} else {
		buf.WriteByte('}')
	}

	if buf.Len() > MaxMessageSize {
		return nil, qerrors.ErrMessageTooLarge
	}
	return bytes.Clone(buf.Bytes()), nil
}

// Decode deserializes one message and validates it.
func (c *Codec) Decode(data []byte) (Message, error) {
	if len(data) > MaxMessageSize {
		return nil, qerrors.ErrMessageTooLarge
	}

	t, err := c.GetMessageType(data)
	if err != nil {
		return nil, err
	}
	m, err := newMessage(t)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", qerrors.ErrInvalidMessage, t, err)
	}
	if v, ok := m.(validator); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// GetMessageType returns the type of a serialized message.
func (c *Codec) GetMessageType(data []byte) (MessageType, error) {
	var head struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return "", fmt.Errorf("%w: %v", qerrors.ErrInvalidMessage, err)
	}
	if head.Type == "" {
		return "", fmt.Errorf("%w: missing message type", qerrors.ErrInvalidMessage)
	}
	return head.Type, nil
}

// WriteMessage encodes m and writes it to w followed by a newline.
func (c *Codec) WriteMessage(w io.Writer, m Message) error {
	data, err := c.Encode(m)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// ReadMessage reads and decodes one newline-terminated message from r.
// A final message without a newline is accepted at EOF.
func (c *Codec) ReadMessage(r *bufio.Reader) (Message, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > MaxMessageSize+1 {
			return nil, qerrors.ErrMessageTooLarge
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) && len(bytes.TrimSpace(line)) > 0 {
			break
		}
		return nil, err
	}
	return c.Decode(bytes.TrimSpace(line))
}
