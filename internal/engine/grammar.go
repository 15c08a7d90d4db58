package engine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rbright/jarvis/internal/session"
)

// LoadGrammar reads a JSON array of phrases.
func LoadGrammar(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read grammar: %v", session.ErrResourceInvalid, err)
	}
	var phrases []string
	if err := json.Unmarshal(data, &phrases); err != nil {
		return nil, fmt.Errorf("%w: grammar %s is not a JSON string array: %v", session.ErrResourceInvalid, path, err)
	}

	out := phrases[:0]
	for _, phrase := range phrases {
		phrase = strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
		if phrase != "" {
			out = append(out, phrase)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: grammar %s has no phrases", session.ErrResourceInvalid, path)
	}
	return out, nil
}

// Dictionary maps words to pronunciations; an empty pronunciation is allowed.
type Dictionary map[string]string

// LoadDictionary reads "word<TAB or space>PHONES" lines, skipping ";;;" comments.
func LoadDictionary(path string) (Dictionary, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read dictionary: %v", session.ErrResourceInvalid, err)
	}
	defer file.Close()

	dict := Dictionary{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";;;") {
			continue
		}
		word, phones, _ := strings.Cut(strings.Join(strings.Fields(line), " "), " ")
		word = strings.ToLower(word)
		if i := strings.IndexByte(word, '('); i > 0 {
			word = word[:i]
		}
		if _, seen := dict[word]; !seen {
			dict[word] = phones
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan dictionary: %v", session.ErrResourceInvalid, err)
	}
	return dict, nil
}

// Missing returns grammar words the dictionary does not cover, in first-seen order.
func (d Dictionary) Missing(phrases []string) []string {
	seen := map[string]bool{}
	var missing []string
	for _, phrase := range phrases {
		for _, word := range strings.Fields(phrase) {
			if word == "[unk]" || seen[word] {
				continue
			}
			seen[word] = true
			if _, ok := d[word]; !ok {
				missing = append(missing, word)
			}
		}
	}
	return missing
}
