package command

import (
	"strings"

	"muse-stream-server/modules/common/model"
)

// Kind is the recognized command verb.
type Kind string

const (
	KindGenerate Kind = "generate"
	KindMood     Kind = "mood"
	KindVote     Kind = "vote"
)

// Command is one parsed chat command.
type Command struct {
	Kind   Kind
	Author string
	Prompt string // generate: free-text prompt
	Mood   string // mood: normalized mood tag
	Token  string // vote: case-normalized poll token
}

// Parser turns raw chat text into typed commands. Parsing is deliberately
// permissive: anything that is not a well-formed command yields nil, never
// an error, so chatter can't break the command loop.
type Parser struct {
	prefix string
}

// NewParser builds a parser for the given command prefix (e.g. "!").
func NewParser(prefix string) *Parser {
	return &Parser{prefix: prefix}
}

// Parse returns the command carried by raw, or nil when raw is not a
// command. A recognized verb with a missing argument is silently dropped.
func (p *Parser) Parse(raw, author string) *Command {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, p.prefix) {
		return nil
	}

	fields := strings.Fields(strings.TrimPrefix(text, p.prefix))
	if len(fields) == 0 {
		return nil
	}

	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "generate":
		if len(args) == 0 {
			return nil
		}
		return &Command{
			Kind:   KindGenerate,
			Author: author,
			Prompt: strings.Join(args, " "),
			Mood:   model.DefaultMood,
		}
	case "mood":
		if len(args) == 0 {
			return nil
		}
		return &Command{
			Kind:   KindMood,
			Author: author,
			Mood:   model.NormalizeMood(strings.Join(args, " ")),
		}
	case "vote":
		if len(args) == 0 {
			return nil
		}
		return &Command{
			Kind:   KindVote,
			Author: author,
			Token:  strings.ToUpper(args[0]),
		}
	default:
		return nil
	}
}
