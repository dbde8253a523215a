// Package messenger holds the Messenger Platform wire types and a Graph API
// client for sending replies, sender actions and profile lookups.
package messenger

import (
	"fmt"

	apperrors "github.com/pagebot/pagebot-go/internal/errors"
)

// ObjectPage is the webhook object type for page subscriptions.
const ObjectPage = "page"

// MessagingTypeResponse tags a reply sent within the 24h standard messaging window.
const MessagingTypeResponse = "RESPONSE"

// SenderActionMarkSeen marks the last message as read.
const SenderActionMarkSeen = "mark_seen"

// Payload is the body of a webhook POST.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the events of a single page.
type Entry struct {
	ID        string  `json:"id"`
	Time      int64   `json:"time"`
	Messaging []Event `json:"messaging"`
}

// Event is one user interaction. Postback and Message may both be nil.
type Event struct {
	Sender    Participant `json:"sender"`
	Recipient Participant `json:"recipient"`
	Timestamp int64       `json:"timestamp"`
	Postback  *Postback   `json:"postback,omitempty"`
	Message   *Message    `json:"message,omitempty"`
}

// Participant identifies a user (PSID) or a page.
type Participant struct {
	ID string `json:"id"`
}

// Postback is a button press. Payload is nil when the button carried none.
type Postback struct {
	Title   string  `json:"title,omitempty"`
	Payload *string `json:"payload,omitempty"`
	MID     string  `json:"mid,omitempty"`
}

// Message is an inbound user message. Text is nil for attachment-only messages.
type Message struct {
	MID        string      `json:"mid,omitempty"`
	Text       *string     `json:"text,omitempty"`
	QuickReply *QuickReply `json:"quick_reply,omitempty"`
	IsEcho     bool        `json:"is_echo,omitempty"`
}

// QuickReply carries the payload of a tapped quick reply.
type QuickReply struct {
	Payload string `json:"payload"`
}

// Validate checks the object discriminator.
func (p *Payload) Validate() error {
	if p.Object != ObjectPage {
		return fmt.Errorf("%w: object=%q", apperrors.ErrInvalidPayloadSource, p.Object)
	}
	return nil
}

// EventCount returns the number of events across all entries.
func (p *Payload) EventCount() int {
	n := 0
	for _, e := range p.Entry {
		n += len(e.Messaging)
	}
	return n
}

// Truncate drops events beyond limit, keeping input order. It returns the number dropped.
func (p *Payload) Truncate(limit int) int {
	total := p.EventCount()
	if limit < 0 || total <= limit {
		return 0
	}

	remaining := limit
	kept := p.Entry[:0]
	for _, e := range p.Entry {
		if remaining == 0 {
			break
		}
		if len(e.Messaging) > remaining {
			e.Messaging = e.Messaging[:remaining]
		}
		remaining -= len(e.Messaging)
		kept = append(kept, e)
	}
	p.Entry = kept
	return total - limit
}

// EventType classifies an event for logs and metrics.
func (e *Event) EventType() string {
	switch {
	case e.Postback != nil:
		return "postback"
	case e.Message != nil:
		return "message"
	default:
		return "unknown"
	}
}

// OutboundMessage is either a text or an attachment message.
// Build it with TextMessage or StructuredMessage.
type OutboundMessage struct {
	Text       string      `json:"text,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// TextMessage builds a plain text message.
func TextMessage(text string) OutboundMessage {
	return OutboundMessage{Text: text}
}

// StructuredMessage wraps an attachment.
func StructuredMessage(a Attachment) OutboundMessage {
	return OutboundMessage{Attachment: &a}
}

// IsStructured reports whether the message carries an attachment.
func (m OutboundMessage) IsStructured() bool {
	return m.Attachment != nil
}

// Attachment is a templated attachment.
type Attachment struct {
	Type    string          `json:"type"`
	Payload TemplatePayload `json:"payload"`
}

// TemplatePayload describes a message template.
type TemplatePayload struct {
	TemplateType string    `json:"template_type"`
	Elements     []Element `json:"elements"`
}

// Element is one card of a generic template.
type Element struct {
	Title         string         `json:"title"`
	Subtitle      string         `json:"subtitle,omitempty"`
	ImageURL      string         `json:"image_url,omitempty"`
	DefaultAction *DefaultAction `json:"default_action,omitempty"`
	Buttons       []Button       `json:"buttons,omitempty"`
}

// DefaultAction opens a URL when the card itself is tapped.
type DefaultAction struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Button is a template button. URL is used by web_url buttons, Payload by postback buttons.
type Button struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// GenericTemplate wraps elements into a generic template attachment.
func GenericTemplate(elements []Element) Attachment {
	return Attachment{
		Type: "template",
		Payload: TemplatePayload{
			TemplateType: "generic",
			Elements:     elements,
		},
	}
}

// Response is the Send API request body.
type Response struct {
	MessagingType string          `json:"messaging_type"`
	Recipient     *Participant    `json:"recipient,omitempty"`
	Message       OutboundMessage `json:"message"`
}

// NewResponse builds a reply envelope with no recipient yet.
func NewResponse(msg OutboundMessage) Response {
	return Response{MessagingType: MessagingTypeResponse, Message: msg}
}

// WithRecipient returns a copy addressed to id.
func (r Response) WithRecipient(id string) Response {
	r.Recipient = &Participant{ID: id}
	return r
}

// SenderActionRequest is the Send API body for sender actions.
type SenderActionRequest struct {
	Recipient    Participant `json:"recipient"`
	SenderAction string      `json:"sender_action"`
}

// UserProfile is the subset of the User Profile API the bot reads.
type UserProfile struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// graphErrorBody is the error object of a failed Graph call.
type graphErrorBody struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}
