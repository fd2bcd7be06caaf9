package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

//go:embed templates/*.txt
var Files embed.FS

// MaxTextRunes is how much slide text is sent to the model.
const MaxTextRunes = 20000

var slidesTagRegex = regexp.MustCompile(`(?i)</?\s*slides\b[^>]*>`)

// Language selects a template set.
type Language string

const (
	Spanish Language = "es"
	English Language = "en"
)

var languages = []Language{Spanish, English}

// IsValidLanguage reports whether templates exist for lang.
func IsValidLanguage(lang string) bool {
	for _, l := range languages {
		if string(l) == lang {
			return true
		}
	}
	return false
}

var (
	loadOnce        sync.Once
	loadErr         error
	systemTemplates map[Language]*template.Template
	userTemplates   map[Language]*template.Template
)

// Data fills the templates.
type Data struct {
	Subject    string
	Topic      string
	Text       string
	Direct     int
	Integrated int
	CaseStudy  int
}

// Load parses templates/system_<lang>.txt and templates/user_<lang>.txt
// from fsys. Only the first call has any effect.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		systemTemplates = make(map[Language]*template.Template)
		userTemplates = make(map[Language]*template.Template)
		for _, l := range languages {
			sys, err := parse(fsys, "templates/system_"+string(l)+".txt")
			if err != nil {
				loadErr = err
				return
			}
			usr, err := parse(fsys, "templates/user_"+string(l)+".txt")
			if err != nil {
				loadErr = err
				return
			}
			systemTemplates[l] = sys
			userTemplates[l] = usr
		}
	})
	return loadErr
}

func parse(fsys fs.FS, name string) (*template.Template, error) {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", name, err)
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template %s: %w", name, err)
	}
	return tmpl, nil
}

// Build renders the system and user prompts for lang. Unknown languages
// fall back to Spanish.
func Build(lang Language, data Data) (system, user string, err error) {
	if systemTemplates == nil {
		if loadErr != nil {
			return "", "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", "", errors.New("templates not initialized: call Load first")
	}
	sys, ok := systemTemplates[lang]
	if !ok {
		lang = Spanish
		sys = systemTemplates[lang]
	}
	data.Text = SanitizeText(data.Text)

	var sb, ub bytes.Buffer
	if err := sys.Execute(&sb, data); err != nil {
		return "", "", err
	}
	if err := userTemplates[lang].Execute(&ub, data); err != nil {
		return "", "", err
	}
	return sb.String(), ub.String(), nil
}

// SanitizeText removes delimiter tags and truncates to MaxTextRunes.
func SanitizeText(text string) string {
	text = slidesTagRegex.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) > MaxTextRunes {
		runes := []rune(text)
		text = string(runes[:MaxTextRunes])
	}
	return text
}
