package view

import "golang.org/x/text/language"

var supportedTags = []language.Tag{
	language.AmericanEnglish,
	language.BrazilianPortuguese,
}

var matcher = language.NewMatcher(supportedTags)

// labels holds the localized widget chrome strings. Message content is never
// localized, only rendered.
type labels struct {
	Connecting     string
	Online         string
	Reconnecting   string
	Offline        string
	Unresolved     string
	Retry          string
	ConnectionLost string
	Pinned         string
	ReplyingTo     string
	Votes          string
}

var labelsByTag = map[language.Tag]labels{
	language.AmericanEnglish: {
		Connecting:     "Connecting…",
		Online:         "Online",
		Reconnecting:   "Reconnecting…",
		Offline:        "Offline",
		Unresolved:     "Chat unavailable",
		Retry:          "Retry",
		ConnectionLost: "Connection lost",
		Pinned:         "Pinned",
		ReplyingTo:     "Replying to",
		Votes:          "votes",
	},
	language.BrazilianPortuguese: {
		Connecting:     "Conectando…",
		Online:         "Online",
		Reconnecting:   "Reconectando…",
		Offline:        "Desconectado",
		Unresolved:     "Chat indisponível",
		Retry:          "Tentar novamente",
		ConnectionLost: "Conexão perdida",
		Pinned:         "Fixada",
		ReplyingTo:     "Respondendo a",
		Votes:          "votos",
	},
}

// labelsFor resolves the closest supported locale for a BCP 47 string and
// returns its label set. Unknown locales fall back to English.
func labelsFor(locale string) labels {
	_, index := language.MatchStrings(matcher, locale)
	return labelsByTag[supportedTags[index]]
}
