package intent

import (
	"regexp"
	"strconv"
	"strings"
)

var percentRe = regexp.MustCompile(`\b(\d{1,3})\s*(%|percent)?`)

// after returns the original-case text following the first marker found.
func after(text string, markers ...string) (string, bool) {
	lower := strings.ToLower(text)
	for _, m := range markers {
		if i := strings.Index(lower, m); i >= 0 {
			return strings.TrimSpace(text[i+len(m):]), true
		}
	}
	return "", false
}

func trimPunct(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), ".!?,")
}

// ReminderTitle strips the reminder phrasing and returns what to remember.
func ReminderTitle(text string) string {
	title, ok := after(text, "remind me to ", "remind me about ", "set reminder to ", "create reminder to ", "don't let me forget to ")
	if !ok {
		title, _ = after(text, "set reminder", "create reminder", "remind me", "set an alarm")
	}
	title = trimPunct(title)
	if title == "" {
		return "Reminder"
	}
	return title
}

func Destination(text string) string {
	dest, _ := after(text, "navigate to ", "directions to ", "take me to ", "how do i get to ")
	return trimPunct(dest)
}

func AppName(text string) string {
	name, _ := after(text, "open ", "launch ")
	name = strings.TrimPrefix(trimPunct(name), "the ")
	return strings.TrimSuffix(name, " app")
}

// FactContent returns the statement to store for a remember-fact command.
func FactContent(text string) string {
	if s, ok := after(text, "remember that ", "don't forget that "); ok {
		return trimPunct(s)
	}
	if s, ok := after(text, "remember "); ok {
		return trimPunct(s)
	}
	return trimPunct(text)
}

// Percent extracts the first 0..100 number in text.
func Percent(text string) (int, bool) {
	m := percentRe.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil || v > 100 {
		return 0, false
	}
	return v, true
}

// LightsCommand reduces a home-control utterance to a lights value
// ("on", "off", or "" for a status query).
func LightsCommand(text string) string {
	words := strings.FieldsFunc(Normalize(text), func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '?'
	})
	for _, w := range words {
		switch w {
		case "on", "illuminate":
			return "on"
		case "off", "kill":
			return "off"
		}
	}
	return ""
}

// SceneName returns the scene mentioned in "activate movie scene" style phrases.
func SceneName(text string) string {
	s := Normalize(text)
	i := strings.Index(s, "scene")
	if i < 0 {
		return ""
	}
	before := strings.Fields(s[:i])
	if len(before) > 0 {
		last := before[len(before)-1]
		if last != "the" && last != "a" && last != "activate" {
			return last
		}
	}
	rest := strings.Fields(s[i+len("scene"):])
	if len(rest) > 0 {
		return trimPunct(rest[0])
	}
	return ""
}
