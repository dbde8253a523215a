package bot

import (
	"github.com/pagebot/pagebot-go/internal/messenger"
)

// Fixed notices sent for events that carry nothing to answer.
const (
	NoticeEmptyMessage   = "I'm sorry but your message is empty 😢"
	NoticeMissingPayload = "No payload was provided with this postback."
	NoticeUnknownEvent   = "Webhook received unknown event."
)

// greetingWords trigger the greeting reply when they appear as a whole word.
var greetingWords = []string{
	"hi", "hello", "hey", "hiya", "howdy", "greetings", "yo",
	"good morning", "good afternoon", "good evening",
}

// shopKeywords trigger the catalog reply when they appear as a substring.
var shopKeywords = []string{"sell", "buy", "shop"}

var greetingRegex = BuildWordRegex(greetingWords)

// Kind is the reply category chosen for an event.
type Kind int

const (
	KindUnknown        Kind = iota // neither postback nor message text
	KindMissingPayload             // postback without payload
	KindPostbackEcho               // postback payload echoed back
	KindGreeting                   // get-started postback or greeting text
	KindEmptyMessage               // message text present but empty
	KindCatalog                    // shopping keyword
	KindReverse                    // any other text
)

var kindNames = [...]string{
	KindUnknown:        "unknown",
	KindMissingPayload: "missing_payload",
	KindPostbackEcho:   "postback_echo",
	KindGreeting:       "greeting",
	KindEmptyMessage:   "empty_message",
	KindCatalog:        "catalog",
	KindReverse:        "reverse",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "invalid"
	}
	return kindNames[k]
}

// Classification is the outcome of Classify. Text holds the postback payload
// for KindPostbackEcho and the message text for KindReverse.
type Classification struct {
	Kind Kind
	Text string
}

// Classify picks the reply category for ev. A postback takes precedence over
// any message fields on the same event.
func Classify(ev *messenger.Event, getStartedPayload string) Classification {
	if pb := ev.Postback; pb != nil {
		switch {
		case pb.Payload == nil || *pb.Payload == "":
			// The Send API rejects empty text, so an empty payload counts as missing
			return Classification{Kind: KindMissingPayload}
		case *pb.Payload == getStartedPayload:
			return Classification{Kind: KindGreeting}
		default:
			return Classification{Kind: KindPostbackEcho, Text: *pb.Payload}
		}
	}

	if ev.Message == nil || ev.Message.Text == nil {
		return Classification{Kind: KindUnknown}
	}

	text := *ev.Message.Text
	switch {
	case text == "":
		return Classification{Kind: KindEmptyMessage}
	case IsGreeting(text):
		return Classification{Kind: KindGreeting}
	case ContainsAnyFold(text, shopKeywords):
		return Classification{Kind: KindCatalog}
	default:
		return Classification{Kind: KindReverse, Text: text}
	}
}

// IsGreeting reports whether text contains a greeting word.
func IsGreeting(text string) bool {
	return greetingRegex.MatchString(text)
}
