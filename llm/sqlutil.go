package llm

import (
	"regexp"
	"strings"
)

// sqlBlockPattern matches a SQL statement inside markdown code fences:
// ```sql SELECT ... ``` (the language tag is optional).
var sqlBlockPattern = regexp.MustCompile("(?s)```(?:sql)?\\s*\\n?(.*?)\\s*```")

// labelPrefixes are chatter prefixes models prepend to the statement.
var labelPrefixes = []string{"sqlquery:", "sql query:", "sql:", "query:"}

// ExtractSQL extracts a SQL statement from an LLM response string.
// It unwraps markdown code fences and strips label prefixes like "SQLQuery:"
// that models commonly emit. Returns an empty string when nothing remains.
func ExtractSQL(content string) string {
	text := strings.TrimSpace(content)

	if matches := sqlBlockPattern.FindStringSubmatch(text); len(matches) > 1 {
		text = strings.TrimSpace(matches[1])
	}

	lower := strings.ToLower(text)
	for _, prefix := range labelPrefixes {
		if strings.HasPrefix(lower, prefix) {
			text = strings.TrimSpace(text[len(prefix):])
			break
		}
	}

	return text
}
