package nlu

import (
	"context"
	"math/rand/v2"
	"strings"

	"jarvis/internal/domain"
)

type variants [3]string

func (v variants) pick(p domain.Personality) string {
	switch p {
	case domain.PersonalitySarcastic:
		return v[1]
	case domain.PersonalityFriendly:
		return v[2]
	}
	return v[0]
}

var smallTalk = []struct {
	keywords []string
	reply    variants
}{
	{
		keywords: []string{"how are you"},
		reply: variants{
			"I'm operating at optimal efficiency, sir. Thank you for inquiring.",
			"I'm software. I don't have feelings, but thanks for pretending to care.",
			"I'm doing fantastic! Ready to help you with whatever you need!",
		},
	},
	{
		keywords: []string{"who are you", "what are you"},
		reply: variants{
			"I am JARVIS, sir. Just A Rather Very Intelligent System, at your service.",
			"I am J.A.R.V.I.S. You know, the brilliance behind the operation.",
			"I'm Jarvis! Your personal AI assistant and friend.",
		},
	},
	{
		keywords: []string{"thank"},
		reply: variants{
			"You're most welcome, sir. It's my pleasure to assist.",
			"Just doing my job. You're welcome.",
			"You are so welcome! Anytime!",
		},
	},
	{
		keywords: []string{"hello", "good morning", "good evening"},
		reply: variants{
			"Good day, sir. How may I be of assistance?",
			"Greetings. I was just enjoying the silence, but proceed.",
			"Hi there! How can I help you today?",
		},
	},
}

var idle = map[domain.Personality][]string{
	domain.PersonalityProfessional: {
		"Indeed, sir. How may I assist you further?",
		"At your service, sir.",
		"I'm here to help, sir. What would you like me to do?",
		"Certainly, sir. Is there anything specific you require?",
	},
	domain.PersonalitySarcastic: {
		"I'm listening. Try to make it interesting.",
		"Yes? I was busy calculating pi, but proceed.",
		"Ready for your command. Try not to break anything.",
		"Go ahead. I'm all ears. Metaphorically.",
	},
	domain.PersonalityFriendly: {
		"Ready when you are!",
		"What can I do for you?",
		"I'm here to help!",
		"Just say the word!",
	},
}

// Offline answers small talk without a language model.
type Offline struct {
	personality PersonalitySource
}

func NewOffline(personality PersonalitySource) *Offline {
	return &Offline{personality: personality}
}

func (o *Offline) Reply(_ context.Context, text string) (string, error) {
	p := domain.PersonalityProfessional
	if o.personality != nil {
		p = o.personality.Personality()
	}

	lower := strings.ToLower(text)
	for _, rule := range smallTalk {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.reply.pick(p), nil
			}
		}
	}

	pool, ok := idle[p]
	if !ok {
		pool = idle[domain.PersonalityProfessional]
	}
	return pool[rand.IntN(len(pool))], nil
}
