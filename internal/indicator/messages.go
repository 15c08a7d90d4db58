package indicator

import (
	"os"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
)

type messages struct {
	listening  string
	switched   string
	heard      string
	reset      string
	errorTitle string
	errorText  string
}

func indicatorMessagesFromEnv() messages {
	return indicatorMessages(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "en") {
		return localeEnglish
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeEnglish:
		fallthrough
	default:
		return messages{
			listening:  "Listening…",
			switched:   "Vocabulary switched",
			heard:      "Heard",
			reset:      "Session reset",
			errorTitle: "Speech engine error",
			errorText:  "The speech engine stopped unexpectedly",
		}
	}
}
