package ai

import (
	"fmt"
	"strings"

	"github.com/Omashka/circles-sub001/internal/models"
)

const voiceNoteSystemPrompt = `You are an assistant that structures spoken notes about personal contacts.
Extract only information stated in the note. Respond with a single JSON object:
{"summary": string, "interests": [string], "events": [string], "dates": [string],
 "workInfo": string|null, "topicsToAvoid": [string], "familyDetails": string|null,
 "travelNotes": string|null, "religiousEvents": [string], "birthday": "YYYY-MM-DD"|null}
Use empty arrays and null for missing information. Respond with JSON only, no markdown fences.`

const screenshotSystemPrompt = `You are an assistant that structures text captured from a messaging screenshot.
Identify which of the provided contacts the conversation is about, if any, and rate
your confidence from 0.0 to 1.0. Respond with a single JSON object:
{"detectedContactName": string|null, "confidence": number, "summary": string,
 "interests": [string], "events": [string], "dates": [string], "workInfo": string|null,
 "topicsToAvoid": [string], "familyDetails": string|null, "travelNotes": string|null,
 "religiousEvents": [string], "birthday": "YYYY-MM-DD"|null}
Use empty arrays and null for missing information. Respond with JSON only, no markdown fences.`

const giftIdeasSystemPrompt = `You are an assistant that suggests thoughtful gift ideas for a personal contact.
Respond with a JSON array of 5 short gift idea strings. Respond with JSON only, no markdown fences.`

func voiceNotePrompt(transcription, contactName string) string {
	var b strings.Builder
	if contactName != "" {
		fmt.Fprintf(&b, "The note is about %s.\n\n", contactName)
	}
	fmt.Fprintf(&b, "Note:\n%s", transcription)
	return b.String()
}

func screenshotPrompt(text string, candidates []models.CandidateContact) string {
	var b strings.Builder
	if len(candidates) > 0 {
		b.WriteString("Known contacts:\n")
		for _, c := range candidates {
			fmt.Fprintf(&b, "- %s (id: %s)\n", c.Name, c.ID)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Screenshot text:\n%s", text)
	return b.String()
}

func giftIdeasPrompt(contactName string, interests []string, budget string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Contact: %s\n", contactName)
	if len(interests) > 0 {
		fmt.Fprintf(&b, "Interests: %s\n", strings.Join(interests, ", "))
	}
	if budget != "" {
		fmt.Fprintf(&b, "Budget: %s\n", budget)
	}
	return b.String()
}
