package intent

import (
	"strings"

	"jarvis/internal/domain"
)

type rule struct {
	keywords []string
	tag      domain.IntentTag
}

// Table order is priority order: the first rule with any matching keyword wins.
var rules = []rule{
	{[]string{"protocol", "initiate", "engage macro", "run macro"}, domain.IntentRunProtocol},
	{[]string{"take a photo", "take photo", "capture photo", "take a picture", "take picture", "snap a photo", "photograph"}, domain.IntentPhoto},
	{[]string{"show video", "play video", "show last video", "play last video", "show my video", "play my video", "recent video"}, domain.IntentVideo},
	{[]string{"record note", "take a note", "record a note", "make a note", "save a note", "voice memo", "record memo"}, domain.IntentNote},
	{[]string{"remember that", "remember my", "remember i ", "don't forget that"}, domain.IntentRememberFact},
	{[]string{"what time", "tell me the time", "current time", "time is it", "what's the time"}, domain.IntentTime},
	{[]string{"what date", "what day", "today's date", "current date", "what is today"}, domain.IntentDate},
	{[]string{"weather", "forecast", "temperature", "how hot", "how cold", "is it raining"}, domain.IntentWeather},
	{[]string{"brightness", "screen brightness", "display brightness", "brighter", "dimmer"}, domain.IntentBrightness},
	{[]string{"volume", "louder", "quieter", "turn up", "turn down", "mute", "unmute"}, domain.IntentVolume},
	{[]string{"play music", "play some music", "start music", "play a song", "play my music", "pause music", "stop music", "skip song", "next song", "next track", "spotify", "open spotify"}, domain.IntentMusic},
	{[]string{"send message", "text message", "send a text", "message to"}, domain.IntentSendMessage},
	{[]string{"set reminder", "remind me", "set an alarm", "create reminder", "don't let me forget"}, domain.IntentReminder},
	{[]string{"set timer", "set a timer", "timer for", "start timer", "countdown", "count down"}, domain.IntentTimer},
	{[]string{"calendar", "schedule", "events", "what am i doing", "what's next", "appointments"}, domain.IntentCalendar},
	{[]string{"steps", "heart rate", "workout", "fitness", "calories", "activity summary"}, domain.IntentFitness},
	{[]string{"navigate to", "directions to", "take me to", "how do i get to"}, domain.IntentNavigate},
	{[]string{"open ", "launch "}, domain.IntentOpenApp},
	{[]string{"lights", "turn on", "turn off", "smart home", "scene", "illuminate", "activate", "lock the"}, domain.IntentHomeControl},
	{[]string{"good morning", "daily briefing", "morning briefing", "what's new", "catch me up", "status report"}, domain.IntentBriefing},
}

// Normalize lower-cases and trims text the way Classify sees it.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Classify maps an utterance to exactly one intent tag.
func Classify(text string) domain.IntentTag {
	s := Normalize(text)
	if s == "" {
		return domain.IntentUnknown
	}

	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(s, kw) {
				return r.tag
			}
		}
	}

	return domain.IntentUnknown
}

