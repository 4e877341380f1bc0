// Package chat defines the wire types exchanged between agents: the message
// envelope, its content parts, and delivery acknowledgements.
package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ContentType tags a content part inside a message envelope.
type ContentType string

const (
	ContentTypeText         ContentType = "text"
	ContentTypeStartSession ContentType = "start-session"
	ContentTypeEndSession   ContentType = "end-session"
)

// Valid reports whether t is a known content type.
func (t ContentType) Valid() bool {
	switch t {
	case ContentTypeText, ContentTypeStartSession, ContentTypeEndSession:
		return true
	}
	return false
}

// Content is one part of a message. Text is set only for text parts; the
// session markers carry no payload.
type Content struct {
	Type ContentType `json:"type"`
	Text string      `json:"text,omitempty"`
}

// Message is the chat envelope. A message carries one or more content parts;
// a typical reply is a single text part, optionally followed by an
// end-session marker.
type Message struct {
	MsgID     uuid.UUID `json:"msg_id"`
	Timestamp time.Time `json:"timestamp"`
	Content   []Content `json:"content"`
}

// Acknowledgement confirms receipt of a message envelope. It is sent before
// any processing so the peer never waits on planning latency.
type Acknowledgement struct {
	AcknowledgedMsgID uuid.UUID `json:"acknowledged_msg_id"`
	Timestamp         time.Time `json:"timestamp"`
}

// NewText builds a text reply envelope with a fresh message ID. When
// endSession is set, an end-session marker follows the text part.
func NewText(text string, endSession bool) Message {
	content := []Content{{Type: ContentTypeText, Text: text}}
	if endSession {
		content = append(content, Content{Type: ContentTypeEndSession})
	}
	return Message{
		MsgID:     uuid.New(),
		Timestamp: time.Now().UTC(),
		Content:   content,
	}
}

// NewStartSession builds a session-open envelope.
func NewStartSession() Message {
	return Message{
		MsgID:     uuid.New(),
		Timestamp: time.Now().UTC(),
		Content:   []Content{{Type: ContentTypeStartSession}},
	}
}

// NewAcknowledgement builds an ack for the given message.
func NewAcknowledgement(msgID uuid.UUID) Acknowledgement {
	return Acknowledgement{
		AcknowledgedMsgID: msgID,
		Timestamp:         time.Now().UTC(),
	}
}

// Text returns the text of the first text part, or "" when the message
// carries no text.
func (m Message) Text() string {
	for _, c := range m.Content {
		if c.Type == ContentTypeText {
			return c.Text
		}
	}
	return ""
}

// HasStartSession reports whether the message carries a start-session marker.
func (m Message) HasStartSession() bool { return m.hasMarker(ContentTypeStartSession) }

// HasEndSession reports whether the message carries an end-session marker.
func (m Message) HasEndSession() bool { return m.hasMarker(ContentTypeEndSession) }

func (m Message) hasMarker(t ContentType) bool {
	for _, c := range m.Content {
		if c.Type == t {
			return true
		}
	}
	return false
}

// Validate rejects envelopes that cannot be processed: a missing message ID,
// no content parts, or an unknown content type.
func (m Message) Validate() error {
	if m.MsgID == uuid.Nil {
		return fmt.Errorf("message has no msg_id")
	}
	if len(m.Content) == 0 {
		return fmt.Errorf("message has no content")
	}
	for i, c := range m.Content {
		if !c.Type.Valid() {
			return fmt.Errorf("content[%d]: unknown type %q", i, c.Type)
		}
	}
	return nil
}
