package messenger

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pagebot/pagebot-go/internal/errors"
)

func TestPayload_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, (&Payload{Object: "page"}).Validate())

	for _, object := range []string{"", "user", "instagram", "Page"} {
		err := (&Payload{Object: object}).Validate()
		require.Error(t, err, object)
		assert.ErrorIs(t, err, apperrors.ErrInvalidPayloadSource)
	}
}

func TestPayload_Decode(t *testing.T) {
	t.Parallel()
	raw := `{
		"object": "page",
		"entry": [{
			"id": "PAGE_ID",
			"time": 1458692752478,
			"messaging": [
				{"sender": {"id": "USER_1"}, "recipient": {"id": "PAGE_ID"}, "timestamp": 1, "message": {"mid": "m1", "text": ""}},
				{"sender": {"id": "USER_2"}, "recipient": {"id": "PAGE_ID"}, "timestamp": 2, "postback": {"title": "Get Started"}},
				{"sender": {"id": "USER_3"}, "recipient": {"id": "PAGE_ID"}, "timestamp": 3}
			]
		}]
	}`

	var p Payload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	require.Len(t, p.Entry, 1)
	events := p.Entry[0].Messaging
	require.Len(t, events, 3)

	require.NotNil(t, events[0].Message)
	require.NotNil(t, events[0].Message.Text, "empty text is present, not absent")
	assert.Empty(t, *events[0].Message.Text)
	assert.Equal(t, "message", events[0].EventType())

	require.NotNil(t, events[1].Postback)
	assert.Nil(t, events[1].Postback.Payload)
	assert.Equal(t, "postback", events[1].EventType())

	assert.Nil(t, events[2].Postback)
	assert.Nil(t, events[2].Message)
	assert.Equal(t, "unknown", events[2].EventType())
}

func TestPayload_Truncate(t *testing.T) {
	t.Parallel()

	build := func(sizes ...int) *Payload {
		p := &Payload{Object: ObjectPage}
		n := 0
		for _, size := range sizes {
			var e Entry
			for range size {
				n++
				e.Messaging = append(e.Messaging, Event{Timestamp: int64(n)})
			}
			p.Entry = append(p.Entry, e)
		}
		return p
	}

	tests := []struct {
		name        string
		sizes       []int
		limit       int
		wantDropped int
		wantSizes   []int
	}{
		{name: "under limit", sizes: []int{2, 3}, limit: 10, wantDropped: 0, wantSizes: []int{2, 3}},
		{name: "exact limit", sizes: []int{2, 3}, limit: 5, wantDropped: 0, wantSizes: []int{2, 3}},
		{name: "cut inside second entry", sizes: []int{2, 3}, limit: 4, wantDropped: 1, wantSizes: []int{2, 2}},
		{name: "drop whole entries", sizes: []int{2, 3, 4}, limit: 2, wantDropped: 7, wantSizes: []int{2}},
		{name: "zero limit", sizes: []int{1}, limit: 0, wantDropped: 1, wantSizes: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := build(tt.sizes...)
			assert.Equal(t, tt.wantDropped, p.Truncate(tt.limit))

			var got []int
			for _, e := range p.Entry {
				got = append(got, len(e.Messaging))
			}
			assert.Equal(t, tt.wantSizes, got)

			// Input order is preserved
			var last int64
			for _, e := range p.Entry {
				for _, ev := range e.Messaging {
					assert.Greater(t, ev.Timestamp, last)
					last = ev.Timestamp
				}
			}
		})
	}
}

func TestResponse_JSON(t *testing.T) {
	t.Parallel()

	resp := NewResponse(TextMessage("hello"))
	assert.Nil(t, resp.Recipient)

	addressed := resp.WithRecipient("USER_1")
	assert.Nil(t, resp.Recipient, "WithRecipient returns a copy")

	data, err := json.Marshal(addressed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"messaging_type":"RESPONSE","recipient":{"id":"USER_1"},"message":{"text":"hello"}}`, string(data))
}

func TestStructuredMessage_JSON(t *testing.T) {
	t.Parallel()

	msg := StructuredMessage(GenericTemplate([]Element{{
		Title:    "Bike",
		Subtitle: "Two wheels",
		Buttons:  []Button{{Type: "postback", Title: "Buy", Payload: "BUY_BIKE"}},
	}}))
	assert.True(t, msg.IsStructured())
	assert.False(t, TextMessage("x").IsStructured())

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"attachment": {
			"type": "template",
			"payload": {
				"template_type": "generic",
				"elements": [{
					"title": "Bike",
					"subtitle": "Two wheels",
					"buttons": [{"type": "postback", "title": "Buy", "payload": "BUY_BIKE"}]
				}]
			}
		}
	}`, string(data))
}

func TestSenderActionRequest_JSON(t *testing.T) {
	t.Parallel()
	data, err := json.Marshal(SenderActionRequest{Recipient: Participant{ID: "U"}, SenderAction: SenderActionMarkSeen})
	require.NoError(t, err)
	assert.JSONEq(t, `{"recipient":{"id":"U"},"sender_action":"mark_seen"}`, string(data))
}
