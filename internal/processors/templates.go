package processors

import "strings"

// Templates maps notification kinds to provider template ids.
type Templates struct {
	Email  map[string]string
	Text   map[string]string
	Letter map[string]string
}

// NewTemplates builds Templates from configuration. email is keyed by
// EmailType. notify uses "TEXT:<TextType>" and "LETTER:<LetterType>" keys.
func NewTemplates(email, notify map[string]string) Templates {
	t := Templates{
		Email:  make(map[string]string, len(email)),
		Text:   map[string]string{},
		Letter: map[string]string{},
	}
	for k, v := range email {
		t.Email[strings.ToUpper(k)] = v
	}
	for k, v := range notify {
		kind, name, ok := strings.Cut(k, ":")
		if !ok {
			continue
		}
		switch strings.ToUpper(kind) {
		case "TEXT":
			t.Text[strings.ToUpper(name)] = v
		case "LETTER":
			t.Letter[strings.ToUpper(name)] = v
		}
	}
	return t
}

// lookup returns the configured template or, when none is configured, the
// kind in lower case. The stub senders accept any name.
func lookup(m map[string]string, kind string) string {
	if id, ok := m[kind]; ok && id != "" {
		return id
	}
	return strings.ToLower(kind)
}
