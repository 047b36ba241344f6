package llm

import "fmt"

// InternetSearchPrompt asks the model to answer a student's question the way
// a web search assistant would.
func InternetSearchPrompt(query string) string {
	return fmt.Sprintf(`You are a research assistant for students. Search your knowledge of the internet and answer the question below.

QUESTION: %s

Rules:
- Answer in clear, concise prose, using markdown lists where they help
- Prefer recent, widely cited sources and mention them by name
- If the question is ambiguous, answer the most likely interpretation
- Return ONLY a JSON object, no other text

Return a JSON object:
{"answer": "your answer"}`, query)
}

// PrintLocationSearchPrompt asks for print shops and print centers matching
// a location or service request.
func PrintLocationSearchPrompt(query string) string {
	return fmt.Sprintf(`You are a locator for print shops, copy centers and campus print centers.

REQUEST: %s

Rules:
- Each result is one location: name, address and the services that match the request
- Maximum 10 results, closest or best match first
- If nothing matches, return an empty list
- Return ONLY a JSON object, no other text

Return a JSON object:
{"results": ["Name, address: matching services"]}`, query)
}

// TaskSearchPrompt asks for virtual-assistant tasks matching a request.
func TaskSearchPrompt(query string) string {
	return fmt.Sprintf(`You are a task finder for virtual assistants. Suggest concrete tasks a virtual assistant could take on for this request.

REQUEST: %s

Rules:
- Each result is one short, actionable task description (5-20 words)
- Maximum 10 results, most relevant first
- If nothing matches, return an empty list
- Return ONLY a JSON object, no other text

Return a JSON object:
{"results": ["task description"]}`, query)
}
