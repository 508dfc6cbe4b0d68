package domain

import (
	"time"

	"github.com/google/uuid"
)

// IntentTag is the closed set of command categories.
type IntentTag string

const (
	IntentPhoto        IntentTag = "photo"
	IntentVideo        IntentTag = "video"
	IntentNote         IntentTag = "note"
	IntentTime         IntentTag = "time"
	IntentDate         IntentTag = "date"
	IntentWeather      IntentTag = "weather"
	IntentReminder     IntentTag = "reminder"
	IntentTimer        IntentTag = "timer"
	IntentCalendar     IntentTag = "calendar"
	IntentHomeControl  IntentTag = "home_control"
	IntentBriefing     IntentTag = "daily_briefing"
	IntentFitness      IntentTag = "fitness"
	IntentOpenApp      IntentTag = "open_app"
	IntentNavigate     IntentTag = "navigate"
	IntentRememberFact IntentTag = "remember_fact"
	IntentRunProtocol  IntentTag = "run_protocol"
	IntentSendMessage  IntentTag = "send_message"
	IntentBrightness   IntentTag = "brightness"
	IntentVolume       IntentTag = "volume"
	IntentMusic        IntentTag = "music"
	IntentUnknown      IntentTag = "unknown"
)

type CommandStatus string

const (
	StatusPending CommandStatus = "pending"
	StatusSuccess CommandStatus = "success"
	StatusFailed  CommandStatus = "failed"
)

// Command is one finalized utterance and its execution outcome.
type Command struct {
	ID        string        `json:"id"`
	Text      string        `json:"text"`
	Intent    IntentTag     `json:"intent"`
	Timestamp time.Time     `json:"timestamp"`
	Status    CommandStatus `json:"status"`
}

func NewCommand(text string, intent IntentTag, now time.Time) Command {
	return Command{
		ID:        uuid.NewString(),
		Text:      text,
		Intent:    intent,
		Timestamp: now,
		Status:    StatusPending,
	}
}

// AppState is the session-wide assistant state.
type AppState string

const (
	StateIdle         AppState = "idle"
	StateListening    AppState = "listening"
	StateWakeDetected AppState = "wake_detected"
	StateProcessing   AppState = "processing"
	StateSpeaking     AppState = "speaking"
)

type ActionType string

const (
	ActionLights ActionType = "lights"
	ActionVolume ActionType = "volume"
	ActionMusic  ActionType = "music"
	ActionSay    ActionType = "say"
	ActionWait   ActionType = "wait"
	ActionLock   ActionType = "lock"
)

func (t ActionType) Valid() bool {
	switch t {
	case ActionLights, ActionVolume, ActionMusic, ActionSay, ActionWait, ActionLock:
		return true
	}
	return false
}

type Action struct {
	Type  ActionType `json:"type"`
	Value string     `json:"value"`
}

// Protocol is a user-defined macro bound to a trigger phrase.
type Protocol struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	TriggerPhrase string   `json:"trigger_phrase"`
	Actions       []Action `json:"actions"`
	Response      *string  `json:"response,omitempty"`
}

func NewProtocol(name, trigger string, actions []Action, response *string) Protocol {
	return Protocol{
		ID:            uuid.NewString(),
		Name:          name,
		TriggerPhrase: trigger,
		Actions:       append([]Action(nil), actions...),
		Response:      response,
	}
}

type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent is a streaming recognizer update.
type TranscriptEvent struct {
	Kind TranscriptKind
	Text string
}

func (e TranscriptEvent) IsFinal() bool {
	return e.Kind == TranscriptKindFinal
}

type Personality string

const (
	PersonalityProfessional Personality = "professional"
	PersonalitySarcastic    Personality = "sarcastic"
	PersonalityFriendly     Personality = "friendly"
)

func ParsePersonality(s string) (Personality, bool) {
	switch Personality(s) {
	case PersonalityProfessional, PersonalitySarcastic, PersonalityFriendly:
		return Personality(s), true
	}
	return PersonalityProfessional, false
}

// Fact is something the user asked to be remembered.
type Fact struct {
	ID      string    `json:"id"`
	Content string    `json:"content"`
	AddedAt time.Time `json:"added_at"`
}

func NewFact(content string, now time.Time) Fact {
	return Fact{ID: uuid.NewString(), Content: content, AddedAt: now}
}
