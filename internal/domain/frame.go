package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PriorityKey totally orders frames: class ascending, then sequence ascending.
type PriorityKey struct {
	Class PriorityClass
	Seq   int64
}

// Less reports whether k sorts strictly before other.
func (k PriorityKey) Less(other PriorityKey) bool {
	if k.Class != other.Class {
		return k.Class < other.Class
	}
	return k.Seq < other.Seq
}

// RawFrame is one decoded datagram waiting for classification. Its key is
// fixed at construction.
type RawFrame struct {
	ID         uuid.UUID
	Topic      Topic
	Payload    []byte
	Fields     map[string]json.RawMessage
	From       string
	ReceivedAt time.Time

	key PriorityKey
}

// NewRawFrame builds a frame with an immutable priority key.
func NewRawFrame(topic Topic, key PriorityKey, payload []byte, fields map[string]json.RawMessage, from string, receivedAt time.Time) *RawFrame {
	return &RawFrame{
		ID:         uuid.New(),
		Topic:      topic,
		Payload:    payload,
		Fields:     fields,
		From:       from,
		ReceivedAt: receivedAt,
		key:        key,
	}
}

func (f *RawFrame) Key() PriorityKey        { return f.key }
func (f *RawFrame) Priority() PriorityClass { return f.key.Class }
func (f *RawFrame) Seq() int64              { return f.key.Seq }
