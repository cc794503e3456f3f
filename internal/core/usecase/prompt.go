package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/book-qa/internal/core/domain"
)

const AnswerPromptTemplate = `Answer the question based only on the following context:

{context}

---

Answer the question based on the above context: {question}`

// RenderPrompt substitutes {name} placeholders in template with vars. Every
// placeholder must have a value and every value must be used. Values are
// inserted verbatim, so braces inside them are never re-expanded.
func RenderPrompt(template string, vars map[string]string) (string, error) {
	var out strings.Builder
	used := make(map[string]bool, len(vars))
	missing := make([]string, 0)

	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			out.WriteString(rest)
			break
		}
		closeAt := strings.IndexByte(rest[open+1:], '}')
		if closeAt < 0 {
			out.WriteString(rest)
			break
		}
		name := rest[open+1 : open+1+closeAt]
		if !isPlaceholderName(name) {
			out.WriteString(rest[:open+1])
			rest = rest[open+1:]
			continue
		}

		out.WriteString(rest[:open])
		value, ok := vars[name]
		if !ok {
			missing = append(missing, name)
		} else {
			used[name] = true
			out.WriteString(value)
		}
		rest = rest[open+closeAt+2:]
	}

	if len(missing) > 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "render prompt", fmt.Errorf("missing variables: %s", strings.Join(missing, ", ")))
	}

	unknown := make([]string, 0)
	for name := range vars {
		if !used[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return "", domain.WrapError(domain.ErrInvalidInput, "render prompt", fmt.Errorf("unknown variables: %s", strings.Join(unknown, ", ")))
	}
	return out.String(), nil
}

func isPlaceholderName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
