// Package resource describes recognition vocabularies and synthesis voices.
package resource

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Language is an immutable grammar + dictionary pair handed to the recognizer.
//
// A regenerated vocabulary is a new Language; values are never edited in place.
type Language struct {
	name       string
	grammar    string
	dictionary string
	dynamic    bool
}

// NewLanguage builds a language resource. Paths are validated at activation.
func NewLanguage(name, grammarPath, dictionaryPath string, dynamic bool) Language {
	return Language{
		name:       strings.TrimSpace(name),
		grammar:    strings.TrimSpace(grammarPath),
		dictionary: strings.TrimSpace(dictionaryPath),
		dynamic:    dynamic,
	}
}

// Static builds a pre-shipped language resource.
func Static(name, grammarPath, dictionaryPath string) Language {
	return NewLanguage(name, grammarPath, dictionaryPath, false)
}

func (l Language) Name() string {
	if l.name != "" {
		return l.name
	}
	return l.grammar
}

func (l Language) GrammarPath() string    { return l.grammar }
func (l Language) DictionaryPath() string { return l.dictionary }
func (l Language) IsDynamic() bool        { return l.dynamic }

// IsZero reports whether l carries no paths at all.
func (l Language) IsZero() bool {
	return l.grammar == "" && l.dictionary == ""
}

// Equal compares identity by paths and origin; the display name is ignored.
func (l Language) Equal(other Language) bool {
	return l.grammar == other.grammar &&
		l.dictionary == other.dictionary &&
		l.dynamic == other.dynamic
}

// Exists reports whether both referenced files are present.
func (l Language) Exists() bool {
	if l.grammar == "" || l.dictionary == "" {
		return false
	}
	for _, path := range []string{l.grammar, l.dictionary} {
		if _, err := os.Stat(path); err != nil {
			return false
		}
	}
	return true
}

// IsReadable returns nil when both referenced files can be opened for reading.
func (l Language) IsReadable() error {
	if l.grammar == "" {
		return errors.New("grammar path is empty")
	}
	if l.dictionary == "" {
		return errors.New("dictionary path is empty")
	}
	if err := readable(l.grammar); err != nil {
		return fmt.Errorf("grammar: %w", err)
	}
	if err := readable(l.dictionary); err != nil {
		return fmt.Errorf("dictionary: %w", err)
	}
	return nil
}

func (l Language) String() string {
	kind := "static"
	if l.dynamic {
		kind = "dynamic"
	}
	return fmt.Sprintf("%s (%s, grammar=%s, dictionary=%s)", l.Name(), kind, l.grammar, l.dictionary)
}

func readable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}

// Voice identifies one synthesis voice by name.
type Voice struct {
	name string
}

// NewVoice builds a voice; installation is checked by the synthesizer at use.
func NewVoice(name string) Voice {
	return Voice{name: strings.TrimSpace(name)}
}

func (v Voice) Name() string   { return v.name }
func (v Voice) IsZero() bool   { return v.name == "" }
func (v Voice) String() string { return v.name }
