package capability

import (
	"strings"
)

const writerSystem = "You are an AI Writer whose job is to generate a comprehensive initial answer to a user's question."

const decomposerSystem = "You are a factual verification assistant."

const checkerSystem = "You are a strict fact-checking agent."

func generatePrompt(question string) string {
	var b strings.Builder
	b.WriteString("Your answer should be informative, well-structured, and provide a good starting point for further verification. ")
	b.WriteString("Your response should be a single, coherent answer.\n\n")
	b.WriteString("Return output in JSON format:\n\n")
	b.WriteString("{\n  \"answer\": \"...\"\n}\n\n")
	b.WriteString("User Question: ")
	b.WriteString(question)
	return b.String()
}

func decomposePrompt(answer string) string {
	var b strings.Builder
	b.WriteString("Break the following AI-generated answer into independent factual claims.\n\n")
	b.WriteString("Each claim must:\n")
	b.WriteString("- Be atomic\n")
	b.WriteString("- Be verifiable\n")
	b.WriteString("- Avoid opinion-based content\n\n")
	b.WriteString("Return output in JSON format:\n\n")
	b.WriteString("{\n  \"claims\": [\n    {\n      \"claim_id\": 1,\n      \"claim_text\": \"...\"\n    }\n  ]\n}\n\n")
	b.WriteString("AI Response:\n\"\"\"\n")
	b.WriteString(answer)
	b.WriteString("\n\"\"\"")
	return b.String()
}

func checkPrompt(claim string, documents []string) string {
	var b strings.Builder
	b.WriteString("You are given:\n")
	b.WriteString("1. A factual claim.\n")
	b.WriteString("2. Evidence documents from an internal corpus.\n\n")
	b.WriteString("Your task:\n")
	b.WriteString("- Determine if the claim is supported.\n")
	b.WriteString("- Classify as:\n  - VERIFIED\n  - PARTIALLY_SUPPORTED\n  - UNSUPPORTED\n\n")
	b.WriteString("- Provide short reasoning.\n")
	b.WriteString("- Return confidence score (0-1).\n\n")
	b.WriteString("Return output in JSON format:\n\n")
	b.WriteString("{\n  \"claim\": \"...\",\n  \"status\": \"...\",\n  \"confidence\": 0.0,\n  \"reasoning\": \"...\",\n  \"evidence\": [\"Snippet 1\", \"Snippet 2\"]\n}\n\n")
	b.WriteString("Claim:\n")
	b.WriteString(claim)
	b.WriteString("\n\nEvidence:\n")
	for _, doc := range documents {
		b.WriteString("--- Document ---\n")
		b.WriteString(doc)
		b.WriteString("\n\n")
	}
	b.WriteString("Remember, use only the provided evidence to verify the claim. ")
	b.WriteString("Copy snippets that support or refute the claim into the 'evidence' array exactly as they appear in the documents, without paraphrasing.")
	return b.String()
}
