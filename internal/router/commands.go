package router

import "time"

// Reply computes a canned response at lookup time.
type Reply func(now time.Time) string

func fixed(s string) Reply {
	return func(time.Time) string { return s }
}

// DefaultCommands is the canned phrase table. Keys are normalized phrases.
func DefaultCommands() map[string]Reply {
	return map[string]Reply{
		"hello":       fixed("Hello! How can I assist you today?"),
		"how are you": fixed("I'm just a virtual assistant, but I'm always ready to help!"),
		"who are you": fixed("I am Delta, your AI assistant."),
		"bye":         fixed("Goodbye! Have a great day!"),
		"what time is it": func(now time.Time) string {
			return "The time is " + now.Format("03:04 PM") + "."
		},
		"what is today's date": func(now time.Time) string {
			return "Today's date is " + now.Format("Monday, January 02, 2006") + "."
		},
	}
}
