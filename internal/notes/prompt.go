package notes

import (
	"strings"
	"text/template"
)

// SystemInstruction is sent as the system message of every request.
const SystemInstruction = "You are a helpful AI that generates structured lecture notes. " +
	"Do NOT add any closing remarks, offers, or meta comments. Only return the notes."

// Sections are the headings the notes are organized into, in order.
var Sections = []string{
	"Main Points",
	"Key Definitions",
	"Examples",
	"Additional Insights",
	"Study Tips",
}

var promptTemplate = template.Must(template.New("notes").Parse(
	`You are an expert note-taker. Summarize the following lecture transcript into clear,
well-structured study notes for a student. Organize them into:
{{- range .Sections}}
- {{.}}
{{- end}}

Topic: {{.Topic}}
Transcript: {{.Transcript}}
`))

// BuildPrompt renders the user message for a transcript and topic
func BuildPrompt(transcript string, topic Topic) string {
	var b strings.Builder
	// The template and its inputs are fixed; Execute cannot fail on a strings.Builder.
	_ = promptTemplate.Execute(&b, struct {
		Sections   []string
		Topic      Topic
		Transcript string
	}{Sections, topic, transcript})
	return b.String()
}
