package config

import (
	"fmt"
	"os"
	"strings"
	"unicode"
)

// parseArgv splits synth.command into argv, expanding environment variables.
func parseArgv(input string) ([]string, error) {
	return splitArgv(input, os.Getenv)
}

// splitArgv splits a shell-like command line. Whitespace separates words;
// single quotes are literal; inside double quotes only \" \\ \$ escape; $VAR
// and ${VAR} expand outside single quotes; an unquoted # starts a comment.
func splitArgv(input string, getenv func(string) string) ([]string, error) {
	var (
		argv   []string
		word   strings.Builder
		inWord bool
	)
	runes := []rune(input)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			if inWord {
				argv = append(argv, word.String())
				word.Reset()
				inWord = false
			}
		case r == '#' && !inWord:
			i = len(runes)
		case r == '\\':
			if i+1 >= len(runes) {
				return nil, fmt.Errorf("unterminated escape sequence in command: %q", input)
			}
			i++
			word.WriteRune(runes[i])
			inWord = true
		case r == '\'':
			end := indexRune(runes, i+1, '\'')
			if end < 0 {
				return nil, fmt.Errorf("unterminated quote in command: %q", input)
			}
			word.WriteString(string(runes[i+1 : end]))
			i = end
			inWord = true
		case r == '"':
			end, err := readDoubleQuoted(runes, i+1, &word, getenv)
			if err != nil {
				return nil, fmt.Errorf("%w in command: %q", err, input)
			}
			i = end
			inWord = true
		case r == '$':
			i = expandVar(runes, i, &word, getenv)
			inWord = true
		default:
			word.WriteRune(r)
			inWord = true
		}
	}

	if inWord {
		argv = append(argv, word.String())
	}
	return argv, nil
}

// readDoubleQuoted consumes runes after an opening " and returns the index of the closing one.
func readDoubleQuoted(runes []rune, start int, word *strings.Builder, getenv func(string) string) (int, error) {
	for i := start; i < len(runes); i++ {
		switch r := runes[i]; r {
		case '"':
			return i, nil
		case '\\':
			if i+1 < len(runes) && strings.ContainsRune(`"\$`, runes[i+1]) {
				i++
				word.WriteRune(runes[i])
				continue
			}
			word.WriteRune(r)
		case '$':
			i = expandVar(runes, i, word, getenv)
		default:
			word.WriteRune(r)
		}
	}
	return 0, fmt.Errorf("unterminated quote")
}

// expandVar writes the value of the variable starting at runes[at] == '$' and
// returns the index of its last rune. A lone $ is kept literally.
func expandVar(runes []rune, at int, word *strings.Builder, getenv func(string) string) int {
	if at+1 < len(runes) && runes[at+1] == '{' {
		end := indexRune(runes, at+2, '}')
		if end < 0 {
			word.WriteRune('$')
			return at
		}
		word.WriteString(getenv(string(runes[at+2 : end])))
		return end
	}

	end := at + 1
	for end < len(runes) && (runes[end] == '_' || unicode.IsLetter(runes[end]) || (end > at+1 && unicode.IsDigit(runes[end]))) {
		end++
	}
	if end == at+1 {
		word.WriteRune('$')
		return at
	}
	word.WriteString(getenv(string(runes[at+1 : end])))
	return end - 1
}

func indexRune(runes []rune, from int, target rune) int {
	for i := from; i < len(runes); i++ {
		if runes[i] == target {
			return i
		}
	}
	return -1
}

func mustParseArgv(input string) []string {
	argv, err := parseArgv(input)
	if err != nil {
		panic(err)
	}
	return argv
}
