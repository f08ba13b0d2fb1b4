package ollama

import (
	"fmt"
	"strings"
)

const extractionPrompt = `Transcribe all text visible in this image exactly as written.
Keep the original line breaks and reading order.
Do not translate, summarize or describe the image.
If the image contains no readable text, reply with an empty message.`

// buildPrompt appends the expected language of the documents, if known.
func buildPrompt(languageHint string) string {
	languageHint = strings.TrimSpace(languageHint)
	if languageHint == "" {
		return extractionPrompt
	}
	return extractionPrompt + fmt.Sprintf("\nThe text is mostly written in %s. Keep it in its original script and, for right-to-left scripts, in logical reading order.", languageHint)
}

// cleanTranscription strips the wrappers vision models like to add around plain text.
func cleanTranscription(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		} else {
			text = ""
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return strings.TrimSpace(text)
}
