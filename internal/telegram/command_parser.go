package telegram

import (
	"strings"
)

type Command int

const (
	CommandSearch Command = iota
	CommandStart
	CommandHelp
	CommandABN
	CommandRetry
	CommandUnknown
)

func (c Command) String() string {
	switch c {
	case CommandSearch:
		return "search"
	case CommandStart:
		return "start"
	case CommandHelp:
		return "help"
	case CommandABN:
		return "abn"
	case CommandRetry:
		return "retry"
	default:
		return "unknown"
	}
}

// ParseCommand разбирает текст сообщения.
// /abn 51 824 753 556 -> CommandABN, "51 824 753 556"
// обычный текст -> CommandSearch, сам текст
func ParseCommand(text string) (Command, string) {
	text = strings.TrimSpace(text)

	if !strings.HasPrefix(text, "/") {
		return CommandSearch, normalizeSpaces(text)
	}

	parts := strings.SplitN(text, " ", 2)
	command := strings.ToLower(parts[0])
	// /abn@AbnSearchBot в группах
	if i := strings.Index(command, "@"); i > 0 {
		command = command[:i]
	}

	var rest string
	if len(parts) > 1 {
		rest = normalizeSpaces(parts[1])
	}

	switch command {
	case "/start":
		return CommandStart, rest
	case "/help":
		return CommandHelp, rest
	case "/abn":
		return CommandABN, rest
	case "/retry":
		return CommandRetry, rest
	case "/search":
		return CommandSearch, rest
	default:
		return CommandUnknown, text
	}
}

func normalizeSpaces(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
