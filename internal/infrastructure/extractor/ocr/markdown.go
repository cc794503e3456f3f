package ocr

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	spaceRun   = regexp.MustCompile(`[\t\f\v ]+`)
	blankLines = regexp.MustCompile(`\n{3,}`)
	mdEscaper  = strings.NewReplacer(`*`, `\*`, `_`, `\_`)
)

// ToMarkdown renders OCR output as markdown. The text is read as HTML, so
// entities are decoded and stray tags dropped; markdown emphasis characters
// are escaped and runs of spaces collapsed. Paragraph breaks survive.
func ToMarkdown(text string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(text))

loop:
	for {
		switch z.Next() {
		case html.ErrorToken:
			break loop
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "br":
				b.WriteString("\n")
			case "p", "div":
				b.WriteString("\n\n")
			}
		}
	}

	raw := strings.ReplaceAll(b.String(), "\r\n", "\n")
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		line = spaceRun.ReplaceAllString(line, " ")
		line = strings.TrimRight(line, " ")
		lines[i] = mdEscaper.Replace(line)
	}

	out := blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.Trim(out, "\n")
}
