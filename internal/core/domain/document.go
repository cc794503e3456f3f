package domain

import "time"

// Languages is the OCR language table offered to callers. Values are passed to
// the OCR engine verbatim.
var Languages = []Language{
	{Name: "English", Code: "eng"},
	{Name: "Hebrew", Code: "heb"},
	{Name: "French", Code: "fra"},
	{Name: "Spanish", Code: "spa"},
	{Name: "German", Code: "deu"},
}

const DefaultLanguageCode = "eng"

type Language struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// ResolveLanguage maps a display name or code to an OCR language tag. Unknown
// values are returned unchanged so the OCR engine can reject them itself.
func ResolveLanguage(value string) string {
	if value == "" {
		return DefaultLanguageCode
	}
	for _, lang := range Languages {
		if lang.Name == value || lang.Code == value {
			return lang.Code
		}
	}
	return value
}

type Document struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Language string `json:"language"`
	Content  []byte `json:"-"`
}

// TextDocument is converted text loaded back from the workspace for indexing.
type TextDocument struct {
	Source string
	Text   string
}

type Conversion struct {
	SourcePath  string `json:"source_path"`
	TextPath    string `json:"text_path"`
	Language    string `json:"language"`
	Pages       int    `json:"pages"`
	SourceBytes int64  `json:"source_bytes"`
	TextBytes   int64  `json:"text_bytes"`
	Text        string `json:"text,omitempty"`
}

type BuildReport struct {
	Generation string        `json:"generation"`
	Documents  int           `json:"documents"`
	Chunks     int           `json:"chunks"`
	Verified   bool          `json:"verified"`
	Duration   time.Duration `json:"duration"`
}
