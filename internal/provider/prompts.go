package provider

import (
	"encoding/json"
	"fmt"

	"github.com/quicklearn/quicklearn/internal/model"
)

// systemInstruction pins the exact output shape for every provider family.
const systemInstruction = `You are an expert educational assistant. Return only valid JSON responses with the following structure: {"one_line": "...", "explanation": "...", "analogy": "...", "example": "...", "formula": "...", "revision_note": "..."}`

const generatePromptTemplate = `You are a friendly teacher explaining things to a 5-year-old.

Explain the following topic in the simplest way possible. Use easy words. No jargon.

Topic: %s

Return your response as a JSON object with these exact keys:
- "one_line": A very simple definition (max 15 words).
- "explanation": A fun, simple explanation like you are talking to a child (50-80 words).
- "analogy": A simple comparison using everyday things like toys, food, or animals (30-50 words).
- "example": A real-life example a child would understand (30-50 words).
- "formula": Key formula (only if really needed, otherwise empty string).
- "revision_note": A super short reminder (max 10 words).

Keep it fun, warm, and super easy to understand!

Return ONLY the JSON object, no other text.`

const verifyPromptTemplate = `You are an educational verifier tasked with reviewing and improving explanations.

Topic: %s

Existing explanation:
%s

Review this explanation for:
1. Factual accuracy
2. Clarity and simplicity
3. Engagement and memorability
4. Completeness

Improve the explanation while keeping the same JSON structure. If any information is incorrect, fix it. If anything is unclear, clarify it. Keep it concise and student-friendly.

Return the improved JSON with these exact keys:
- "one_line": Improved single-sentence definition
- "explanation": Enhanced explanation
- "analogy": Better analogy (if needed)
- "example": Clearer example
- "formula": Verified formula (if applicable)
- "revision_note": Refined revision reminder
- "verified": Set to true

Return ONLY the JSON object, no other text.`

// buildPrompt returns the user instruction: a fresh teach-a-beginner
// prompt, or a critique-and-improve prompt when existing content is given.
func buildPrompt(topic string, existing *model.ExplanationContent) string {
	if existing == nil {
		return fmt.Sprintf(generatePromptTemplate, topic)
	}
	existingJSON, _ := json.MarshalIndent(existing, "", "  ")
	return fmt.Sprintf(verifyPromptTemplate, topic, string(existingJSON))
}
