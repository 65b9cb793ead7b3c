package services

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	casualTerm   = regexp.MustCompile(`\b(buddy|bro|dude|mate|friend|pal|doc)\b`)
	greetingWord = regexp.MustCompile(`\b(hi|hello|hey|greetings|morning|afternoon)\b`)
	symptomWord  = regexp.MustCompile(`\b(fever|pain|headache|cough|cold|flu|symptom|hurt|ache|dizzy|nausea|vomit|rash|swelling|infection)\b`)
	historyWord  = regexp.MustCompile(`\b(diabetes|sugar|bp|pressure|thyroid|asthma|surgery|operation|medication|tablet|drug)\b`)
	wellnessWord = regexp.MustCompile(`\b(yoga|meditation|retreat|ayurveda|spa|wellness|detox|relax)\b`)
	medicalWord  = regexp.MustCompile(`\b(surgery|treatment|hospital|doctor|cataract|transplant|knee|hip|cardiac|heart|cancer|dental|ivf|operation)\b`)
)

// picker chooses an index in [0, n).
type picker func(n int) int

func uniqueMatches(re *regexp.Regexp, s string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range re.FindAllString(s, -1) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// assistantFallback builds a keyword reply for the general assistant when
// no model is reachable.
func assistantFallback(text string, pick picker) string {
	lower := strings.ToLower(text)
	var parts []string

	term := casualTerm.FindString(lower)
	greeted := greetingWord.MatchString(lower)
	if greeted {
		suffix := ""
		if term != "" {
			suffix = " " + term
		}
		greetings := []string{
			fmt.Sprintf("Hello%s! I'm HealAI.", suffix),
			fmt.Sprintf("Hey%s! I'm here to help.", suffix),
			"Hi there! Ready to assist you.",
		}
		parts = append(parts, greetings[pick(len(greetings))])
	}

	symptoms := uniqueMatches(symptomWord, lower)
	if len(symptoms) > 0 {
		parts = append(parts, fmt.Sprintf("I see you're mentioning %s. I've noted that down.", strings.Join(symptoms, " and ")))
	}
	history := uniqueMatches(historyWord, lower)
	if len(history) > 0 {
		parts = append(parts, fmt.Sprintf("Got it, added %s to your medical history.", strings.Join(history, ", ")))
	}

	if len(parts) > 0 {
		switch {
		case len(parts) == 1 && greeted:
			parts = append(parts, "How are you feeling right now?")
		case len(symptoms) > 0:
			parts = append(parts, "Any other symptoms?")
		}
		return strings.Join(parts, " ")
	}

	generic := []string{
		"I'm listening. Could you please describe your symptoms?",
		"I'm here. Specific symptoms allow me to help you better.",
		"Could you provide more details about how you're feeling?",
	}
	return generic[pick(len(generic))]
}

// medicalFallback answers the medical travel chat; priorTurns is the number
// of messages already in the transcript.
func medicalFallback(text string, knownSymptoms int, priorTurns int) string {
	lower := strings.ToLower(text)
	if priorTurns > 2 {
		if strings.Contains(lower, "cost") || strings.Contains(lower, "price") {
			return "Estimates vary. Hotel: ₹3k-8k/night, Treatment: dependent on hospital. Shall I search options?"
		}
		return "I'm listening. Could you clarify your travel plans?"
	}
	if strings.Contains(lower, "plan") || strings.Contains(lower, "trip") {
		return "I can help plan your trip! I estimate a 3-day trip for consultation would cost around ₹15,000 (Flights + Hotel). Which city are you travelling to?"
	}
	if knownSymptoms == 0 && !strings.Contains(lower, "symptom") {
		return "Hello! I'm HealAI. To start, could you tell me what symptoms you are experiencing?"
	}
	return "I've noted that. Anything else you'd like to add to your medical record?"
}

// buddyIntent is the structured reading of a travel buddy message.
type buddyIntent struct {
	Intent     string `json:"intent"` // medical, wellness, general, greeting
	City       string `json:"city"`
	Topic      string `json:"topic"`
	IsGreeting bool   `json:"is_greeting"`
}

var knownCities = []string{
	"Delhi", "Mumbai", "Bangalore", "Chennai", "Hyderabad", "Kolkata", "Pune",
	"Rishikesh", "Kerala", "Goa", "Jaipur", "Ahmedabad",
}

// guessIntent classifies a message by keywords when the model is unavailable.
func guessIntent(text string) buddyIntent {
	lower := strings.ToLower(text)
	var in buddyIntent
	for _, c := range knownCities {
		if strings.Contains(lower, strings.ToLower(c)) {
			in.City = c
			break
		}
	}
	switch {
	case wellnessWord.MatchString(lower):
		in.Intent = "wellness"
		in.Topic = wellnessWord.FindString(lower)
	case medicalWord.MatchString(lower):
		in.Intent = "medical"
		in.Topic = medicalWord.FindString(lower)
	case greetingWord.MatchString(lower):
		in.Intent = "greeting"
		in.IsGreeting = true
	default:
		in.Intent = "general"
	}
	return in
}

func buddyFallback(in buddyIntent, found int) string {
	switch {
	case found > 0:
		where := in.City
		if where == "" {
			where = "top hubs"
		}
		topic := in.Topic
		if topic == "" {
			topic = "care"
		}
		return fmt.Sprintf("I found some great %s options in %s!", topic, where)
	case in.Intent == "greeting":
		return "Hey buddy! Tell me where you'd like to travel or what treatment you need."
	}
	return "Buddy, I couldn't find matches right now."
}
