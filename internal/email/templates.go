package email

import (
	"fmt"
	"strings"
)

// Message is a rendered notification ready to send.
type Message struct {
	Subject string
	Body    string
}

// MatchDetails carries the fields the notification templates interpolate.
type MatchDetails struct {
	Title    string
	Date     string
	Time     string
	Location string
}

func (d MatchDetails) title() string {
	if t := strings.TrimSpace(d.Title); t != "" {
		return t
	}
	return "your match"
}

func (d MatchDetails) when() string {
	date := strings.TrimSpace(d.Date)
	if date == "" {
		date = "TBD"
	}
	clock := strings.TrimSpace(d.Time)
	if clock == "" {
		return date
	}
	return date + " " + clock
}

// BuildRequestReceived notifies a match creator about a new join request.
func BuildRequestReceived(playerName string, details MatchDetails) Message {
	lines := []string{
		fmt.Sprintf("%s wants to join %s.", playerName, details.title()),
		"",
		fmt.Sprintf("When: %s", details.when()),
		fmt.Sprintf("Where: %s", orTBD(details.Location)),
		"",
		"Open the app to approve or reject the request.",
	}
	return Message{
		Subject: fmt.Sprintf("New join request for %s", details.title()),
		Body:    strings.Join(lines, "\n"),
	}
}

// BuildRequestApproved notifies a player that their request was approved.
func BuildRequestApproved(playerName string, details MatchDetails) Message {
	lines := []string{
		fmt.Sprintf("Good news %s, you're in!", playerName),
		"",
		fmt.Sprintf("Match: %s", details.title()),
		fmt.Sprintf("When: %s", details.when()),
		fmt.Sprintf("Where: %s", orTBD(details.Location)),
		"",
		"See you on the pitch.",
	}
	return Message{
		Subject: fmt.Sprintf("You're in: %s", details.title()),
		Body:    strings.Join(lines, "\n"),
	}
}

// BuildMatchReminder reminds a participant about an upcoming match.
func BuildMatchReminder(details MatchDetails) Message {
	lines := []string{
		fmt.Sprintf("Reminder: %s is coming up.", details.title()),
		"",
		fmt.Sprintf("When: %s", details.when()),
		fmt.Sprintf("Where: %s", orTBD(details.Location)),
	}
	return Message{
		Subject: fmt.Sprintf("Upcoming match: %s", details.title()),
		Body:    strings.Join(lines, "\n"),
	}
}

func orTBD(v string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return "TBD"
}
