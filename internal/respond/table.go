// Package respond holds every user-facing sentence, keyed by intent and personality.
package respond

import (
	"fmt"
	"math/rand/v2"
	"time"

	"jarvis/internal/domain"
)

type key struct {
	intent      domain.IntentTag
	personality domain.Personality
}

type pair struct {
	ok   string
	fail string
}

const (
	pro      = domain.PersonalityProfessional
	sarcasm  = domain.PersonalitySarcastic
	friendly = domain.PersonalityFriendly
)

var canned = map[key]pair{
	{domain.IntentPhoto, pro}:      {"Photo captured and saved, sir.", "I'm afraid the photo capture failed, sir. Perhaps we should try again."},
	{domain.IntentPhoto, sarcasm}:  {"Photo taken. A masterpiece, no doubt.", "The camera refused. I can't say I blame it."},
	{domain.IntentPhoto, friendly}: {"Got it! Photo saved!", "Oops, the photo didn't work. Want to try again?"},

	{domain.IntentVideo, pro}:      {"Playing your video now, sir.", "I couldn't locate any videos, sir. My apologies."},
	{domain.IntentVideo, sarcasm}:  {"Here's your video. Try not to fall asleep.", "No videos found. Riveting."},
	{domain.IntentVideo, friendly}: {"Here's your latest video!", "Hmm, I couldn't find any videos."},

	{domain.IntentNote, pro}:      {"Note recorded successfully, sir.", "The recording encountered an issue, sir."},
	{domain.IntentNote, sarcasm}:  {"Noted. Literally.", "The recording failed. Your wisdom is lost forever."},
	{domain.IntentNote, friendly}: {"Your note is saved!", "Oh no, the recording didn't work."},

	{domain.IntentTime, pro}: {"", "I seem to have lost track of time, sir."},
	{domain.IntentDate, pro}: {"", "I'm having difficulty accessing the date, sir."},

	{domain.IntentWeather, pro}:      {"", "Weather services are currently unavailable, sir."},
	{domain.IntentWeather, sarcasm}:  {"", "Look out a window? I don't have weather data right now."},
	{domain.IntentWeather, friendly}: {"", "Oh no, I can't check the weather just yet."},

	{domain.IntentBrightness, pro}: {"Brightness adjusted, sir.", "I couldn't adjust the brightness, sir."},
	{domain.IntentVolume, pro}:     {"Volume adjusted, sir.", "Volume adjustment failed, sir."},
	{domain.IntentMusic, pro}:      {"Playing music now, sir.", "I'm unable to access your music player, sir."},
	{domain.IntentMusic, sarcasm}:  {"Music on. Try to keep the dancing dignified.", "Your music player is ignoring me."},

	{domain.IntentSendMessage, pro}:      {"Message sent, sir.", "Message functionality requires additional permissions, sir. This feature is currently being developed."},
	{domain.IntentSendMessage, sarcasm}:  {"Message sent.", "I don't send messages yet. Use your thumbs."},
	{domain.IntentSendMessage, friendly}: {"Message sent!", "Sorry, I can't send messages just yet."},

	{domain.IntentReminder, pro}:      {"Reminder set, sir.", "I couldn't set that reminder, sir."},
	{domain.IntentReminder, sarcasm}:  {"Reminder set. One less thing for you to forget.", "The reminder didn't stick. Ironic."},
	{domain.IntentReminder, friendly}: {"Reminder set!", "Hmm, I couldn't set that reminder."},

	{domain.IntentTimer, pro}:      {"Timer started, sir.", "I couldn't set that timer, sir. Please tell me how long."},
	{domain.IntentCalendar, pro}:   {"Calendar checked, sir.", "I couldn't access your calendar, sir."},
	{domain.IntentHomeControl, pro}: {"Home command executed, sir.", "I couldn't control your home devices, sir."},
	{domain.IntentHomeControl, sarcasm}: {"Done. The house obeys.", "Your house is not listening to me either."},

	{domain.IntentBriefing, pro}: {"Briefing complete, sir.", "I couldn't compile your briefing, sir."},
	{domain.IntentFitness, pro}:  {"Fitness data retrieved, sir.", "I couldn't access your health data, sir."},
	{domain.IntentOpenApp, pro}:  {"App launched, sir.", "I couldn't open that app, sir."},
	{domain.IntentNavigate, pro}: {"Navigation started, sir.", "I couldn't start navigation, sir."},

	{domain.IntentRememberFact, pro}:      {"I'll remember that, sir.", "I couldn't commit that to memory, sir."},
	{domain.IntentRememberFact, sarcasm}:  {"Filed away. Unlike some of us, I don't forget.", "My memory banks refused that one."},
	{domain.IntentRememberFact, friendly}: {"Got it, I'll remember that!", "Sorry, I couldn't save that memory."},

	{domain.IntentRunProtocol, pro}:      {"Protocol complete, sir.", "I'm sorry, sir. That protocol could not be initiated."},
	{domain.IntentRunProtocol, sarcasm}:  {"Protocol complete. You're welcome.", "That protocol could not be initiated. Did you make it up?"},
	{domain.IntentRunProtocol, friendly}: {"All done with that protocol!", "Hmm, that protocol could not be initiated."},

	{domain.IntentUnknown, pro}:      {"", "I'm afraid I encountered a difficulty processing that request, sir. Perhaps we could try again?"},
	{domain.IntentUnknown, sarcasm}:  {"", "I tried. It didn't work. Ask me again, slower."},
	{domain.IntentUnknown, friendly}: {"", "Sorry, I got a bit lost there. Could you try again?"},
}

func lookup(intent domain.IntentTag, p domain.Personality) pair {
	if v, ok := canned[key{intent, p}]; ok {
		return v
	}
	if v, ok := canned[key{intent, pro}]; ok {
		return v
	}
	return canned[key{domain.IntentUnknown, pro}]
}

// Success returns the canned success sentence for intent, or "" when the
// intent always produces a computed answer.
func Success(intent domain.IntentTag, p domain.Personality) string {
	return lookup(intent, p).ok
}

func Failure(intent domain.IntentTag, p domain.Personality) string {
	return lookup(intent, p).fail
}

// Fallback is spoken when the conversational responder fails.
func Fallback(p domain.Personality) string {
	return Failure(domain.IntentUnknown, p)
}

func ProtocolMissing(p domain.Personality) string {
	return Failure(domain.IntentRunProtocol, p)
}

func ProtocolComplete(p domain.Personality, name string) string {
	switch p {
	case sarcasm:
		return fmt.Sprintf("%s protocol complete. You're welcome.", name)
	case friendly:
		return fmt.Sprintf("All done with %s!", name)
	default:
		return fmt.Sprintf("%s protocol complete, sir.", name)
	}
}

func Offline(domain.Personality) string {
	return "I'm currently offline, sir. I can still help with time, date, timers, music control, and opening apps. For AI conversations and weather, I'll need an internet connection."
}

func Goodbye(domain.Personality) string {
	return "Going offline now, sir. It's been a pleasure serving you. Until next time."
}

func PermissionDenied(domain.Personality) string {
	return "I require microphone access to hear your commands, sir."
}

func TimerDone(label string) string {
	if label == "" {
		return "Sir, your timer is complete."
	}
	return fmt.Sprintf("Sir, your %s timer is complete.", label)
}

var acks = map[domain.Personality][]string{
	pro: {
		"At your service, sir.",
		"Yes, sir?",
		"How may I assist you, sir?",
		"I'm listening, sir.",
		"Ready and awaiting your command, sir.",
	},
	sarcasm: {
		"I'm listening. Try to make it interesting.",
		"Yes? I was busy calculating pi, but proceed.",
		"Ready for your command. Try not to break anything.",
		"I'm here. Unfortunately.",
		"Go ahead. I'm all ears. Metaphorically.",
	},
	friendly: {
		"Ready when you are!",
		"What can I do for you?",
		"I'm here to help!",
		"Just say the word!",
		"Listening! What's up?",
	},
}

// Acknowledgement returns a random wake acknowledgement.
func Acknowledgement(p domain.Personality) string {
	list, ok := acks[p]
	if !ok {
		list = acks[pro]
	}
	return list[rand.IntN(len(list))]
}

// Greeting returns the startup line for the hour of now.
func Greeting(p domain.Personality, now time.Time) string {
	h := now.Hour()
	switch {
	case h < 12:
		return "Good morning, sir. JARVIS online and all systems are fully operational. How may I assist you today?"
	case h < 17:
		return "Good afternoon, sir. JARVIS at your service. All systems nominal and ready for your commands."
	default:
		return "Good evening, sir. JARVIS online. I trust you've had a productive day. What can I do for you?"
	}
}

// Salutation is the short time-of-day opener used by the briefing.
func Salutation(now time.Time) string {
	h := now.Hour()
	switch {
	case h < 12:
		return "Good morning, sir."
	case h < 17:
		return "Good afternoon, sir."
	default:
		return "Good evening, sir."
	}
}

func Time(p domain.Personality, now time.Time) string {
	t := now.Format("3:04 PM")
	switch p {
	case sarcasm:
		return fmt.Sprintf("It is %s. You have meetings, I assume?", t)
	case friendly:
		return fmt.Sprintf("It's %s right now!", t)
	default:
		return fmt.Sprintf("The current time is %s, sir.", t)
	}
}

func Date(p domain.Personality, now time.Time) string {
	d := now.Format("Monday, January 2, 2006")
	switch p {
	case sarcasm:
		return fmt.Sprintf("If you must know, it's %s.", d)
	case friendly:
		return fmt.Sprintf("Today is %s. A beautiful day!", d)
	default:
		return fmt.Sprintf("Today is %s, sir.", d)
	}
}
