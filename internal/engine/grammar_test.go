package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/jarvis/internal/session"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadGrammarNormalizesPhrases(t *testing.T) {
	path := writeFile(t, "g.gram", `["  Hello   Computer ", "", "what time is it"]`)

	phrases, err := LoadGrammar(path)
	require.NoError(t, err)
	require.Equal(t, []string{"hello computer", "what time is it"}, phrases)
}

func TestLoadGrammarRejectsBadContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "not json", content: "hello computer", want: "not a JSON string array"},
		{name: "object", content: `{"phrases": []}`, want: "not a JSON string array"},
		{name: "empty", content: `["", "  "]`, want: "no phrases"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadGrammar(writeFile(t, "g.gram", tc.content))
			require.ErrorIs(t, err, session.ErrResourceInvalid)
			require.Contains(t, err.Error(), tc.want)
		})
	}

	_, err := LoadGrammar(filepath.Join(t.TempDir(), "missing.gram"))
	require.ErrorIs(t, err, session.ErrResourceInvalid)
}

func TestLoadDictionaryAndMissing(t *testing.T) {
	path := writeFile(t, "d.dic", ";;; comment\nhello\tHH AH L OW\nhello(2)  HH EH L OW\nCOMPUTER K AH M P Y UW T ER\nthe\n\n")

	dict, err := LoadDictionary(path)
	require.NoError(t, err)
	require.Equal(t, "HH AH L OW", dict["hello"])
	require.Equal(t, "K AH M P Y UW T ER", dict["computer"])
	require.Contains(t, dict, "the")

	require.Empty(t, dict.Missing([]string{"hello computer", "the computer", "[unk]"}))
	require.Equal(t, []string{"open", "door"}, dict.Missing([]string{"open the door", "hello door", "open"}))
}
