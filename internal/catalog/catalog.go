// Package catalog provides the static example items shown when a user asks to buy, sell or shop.
package catalog

import "github.com/pagebot/pagebot-go/internal/messenger"

// Postback payloads of the catalog buttons.
const (
	PayloadBikeDetails   = "CATALOG_BIKE_DETAILS"
	PayloadKayakDetails  = "CATALOG_KAYAK_DETAILS"
	PayloadTicketDetails = "CATALOG_TICKET_DETAILS"
)

var elements = []messenger.Element{
	{
		Title:    "City Bike",
		Subtitle: "Lightweight aluminium frame, 7 gears",
		ImageURL: "https://images.unsplash.com/photo-1485965120184-e220f721d03e",
		DefaultAction: &messenger.DefaultAction{
			Type: "web_url",
			URL:  "https://example.com/catalog/city-bike",
		},
		Buttons: []messenger.Button{
			{Type: "web_url", Title: "View listing", URL: "https://example.com/catalog/city-bike"},
			{Type: "postback", Title: "Tell me more", Payload: PayloadBikeDetails},
		},
	},
	{
		Title:    "Touring Kayak",
		Subtitle: "Stable single-seat kayak with dry hatch",
		ImageURL: "https://images.unsplash.com/photo-1544551763-46a013bb70d5",
		DefaultAction: &messenger.DefaultAction{
			Type: "web_url",
			URL:  "https://example.com/catalog/touring-kayak",
		},
		Buttons: []messenger.Button{
			{Type: "web_url", Title: "View listing", URL: "https://example.com/catalog/touring-kayak"},
			{Type: "postback", Title: "Tell me more", Payload: PayloadKayakDetails},
		},
	},
	{
		Title:    "Concert Tickets",
		Subtitle: "Two seats, front balcony",
		ImageURL: "https://images.unsplash.com/photo-1501386761578-eac5c94b800a",
		Buttons: []messenger.Button{
			{Type: "web_url", Title: "View listing", URL: "https://example.com/catalog/concert-tickets"},
			{Type: "postback", Title: "Tell me more", Payload: PayloadTicketDetails},
		},
	},
}

// Static is the built-in example catalog.
type Static struct{}

// Elements returns a copy of the catalog in display order.
func (Static) Elements() []messenger.Element {
	return Elements()
}

// Elements returns a copy of the catalog in display order.
func Elements() []messenger.Element {
	out := make([]messenger.Element, len(elements))
	for i, e := range elements {
		if e.DefaultAction != nil {
			da := *e.DefaultAction
			e.DefaultAction = &da
		}
		e.Buttons = append([]messenger.Button(nil), e.Buttons...)
		out[i] = e
	}
	return out
}
