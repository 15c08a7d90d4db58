package resource

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ErrGeneration marks failures to build a dynamic vocabulary.
var ErrGeneration = errors.New("resource generation failed")

// Generator writes dynamic grammar/dictionary files from a vocabulary.
type Generator struct {
	// Dir receives generated files. It is created on demand.
	Dir string
	// BaseDictionary is an optional CMUdict-style pronunciation source. When set,
	// every vocabulary word must be present in it.
	BaseDictionary string
}

// Generate builds a new dynamic Language for phrases.
//
// Each call writes a fresh file pair with a unique name so earlier resources stay valid.
func (g Generator) Generate(ctx context.Context, phrases []string) (Language, error) {
	if err := ctx.Err(); err != nil {
		return Language{}, err
	}

	normalized, words := normalizeVocabulary(phrases)
	if len(normalized) == 0 {
		return Language{}, fmt.Errorf("%w: vocabulary is empty", ErrGeneration)
	}

	pronunciations, err := g.lookupPronunciations(words)
	if err != nil {
		return Language{}, err
	}

	dir := strings.TrimSpace(g.Dir)
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "jarvis-lm")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Language{}, fmt.Errorf("%w: create generation dir: %v", ErrGeneration, err)
	}

	name := "dynamic-" + uuid.NewString()[:8]
	grammarPath := filepath.Join(dir, name+".gram")
	dictionaryPath := filepath.Join(dir, name+".dic")

	grammar, err := json.Marshal(normalized)
	if err != nil {
		return Language{}, fmt.Errorf("%w: encode grammar: %v", ErrGeneration, err)
	}
	if err := os.WriteFile(grammarPath, append(grammar, '\n'), 0o600); err != nil {
		return Language{}, fmt.Errorf("%w: write grammar: %v", ErrGeneration, err)
	}

	var dict strings.Builder
	for _, word := range words {
		if p := pronunciations[word]; p != "" {
			fmt.Fprintf(&dict, "%s\t%s\n", word, p)
			continue
		}
		fmt.Fprintf(&dict, "%s\n", word)
	}
	if err := os.WriteFile(dictionaryPath, []byte(dict.String()), 0o600); err != nil {
		_ = os.Remove(grammarPath)
		return Language{}, fmt.Errorf("%w: write dictionary: %v", ErrGeneration, err)
	}

	return NewLanguage(name, grammarPath, dictionaryPath, true), nil
}

// normalizeVocabulary lowercases and dedupes phrases, preserving first-seen order.
// The second result is the sorted set of distinct words across all phrases.
func normalizeVocabulary(phrases []string) ([]string, []string) {
	seenPhrase := make(map[string]struct{}, len(phrases))
	seenWord := make(map[string]struct{})
	out := make([]string, 0, len(phrases))
	words := make([]string, 0)

	for _, raw := range phrases {
		fields := strings.Fields(strings.ToLower(raw))
		if len(fields) == 0 {
			continue
		}
		phrase := strings.Join(fields, " ")
		if _, ok := seenPhrase[phrase]; ok {
			continue
		}
		seenPhrase[phrase] = struct{}{}
		out = append(out, phrase)
		for _, w := range fields {
			if _, ok := seenWord[w]; ok {
				continue
			}
			seenWord[w] = struct{}{}
			words = append(words, w)
		}
	}
	sort.Strings(words)
	return out, words
}

// lookupPronunciations resolves words against BaseDictionary when configured.
func (g Generator) lookupPronunciations(words []string) (map[string]string, error) {
	path := strings.TrimSpace(g.BaseDictionary)
	if path == "" {
		return map[string]string{}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open base dictionary: %v", ErrGeneration, err)
	}
	defer f.Close()

	wanted := make(map[string]struct{}, len(words))
	for _, w := range words {
		wanted[w] = struct{}{}
	}

	found := make(map[string]string, len(words))
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";;;") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		word := strings.ToLower(fields[0])
		if i := strings.IndexByte(word, '('); i > 0 {
			// Alternate pronunciations; the first listed wins.
			word = word[:i]
		}
		if _, ok := wanted[word]; !ok {
			continue
		}
		if _, ok := found[word]; ok {
			continue
		}
		found[word] = strings.Join(fields[1:], " ")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read base dictionary: %v", ErrGeneration, err)
	}

	missing := make([]string, 0)
	for _, w := range words {
		if _, ok := found[w]; !ok {
			missing = append(missing, w)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: no pronunciation for %s", ErrGeneration, strings.Join(missing, ", "))
	}
	return found, nil
}
