// Package intent classifies chat messages into task intents with ordered
// keyword rules. It is deliberately coarse: a rule matches when every one
// of its patterns is found in the lowercased message.
package intent

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/user/tasktalk/internal/types"
)

type Intent string

const (
	Add      Intent = "add"
	List     Intent = "list"
	Complete Intent = "complete"
	Update   Intent = "update"
	Delete   Intent = "delete"
	Unknown  Intent = "unknown"
)

// Rule matches an intent when all of its patterns match.
type Rule struct {
	Intent   Intent
	Tool     string
	Patterns []*regexp.Regexp
}

func (r Rule) matches(lower string) bool {
	for _, p := range r.Patterns {
		if !p.MatchString(lower) {
			return false
		}
	}
	return len(r.Patterns) > 0
}

// Rules is evaluated in order; the first full match wins.
var Rules = []Rule{
	{Add, "add_task", compile(`(?:remember|remind|add|create|new|save|note|make)`, `(?:task|todo|remember)`)},
	{List, "list_tasks", compile(`(?:show|list|what|get|give me|my)`, `(?:tasks|todos|do|need)`)},
	{Complete, "complete_task", compile(`(?:done|complete|finish|mark|check|tick)`, `(?:task|todo)`)},
	{Update, "update_task", compile(`(?:change|update|edit|modify|rename)`, `(?:to|as|into)`)},
	{Delete, "delete_task", compile(`(?:delete|remove|cancel|forget)`, `(?:task|todo)`)},
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// Match is the classification of one message.
type Match struct {
	Intent Intent `json:"intent"`
	Tool   string `json:"tool,omitempty"`
	// Title is the extracted task title for add, or the new title for update.
	Title string `json:"title,omitempty"`
}

// Classify matches message against Rules.
func Classify(message string) Match {
	return ClassifyWith(Rules, message)
}

// ClassifyWith matches message against the given rule table.
func ClassifyWith(rules []Rule, message string) Match {
	lower := strings.ToLower(message)
	for _, r := range rules {
		if !r.matches(lower) {
			continue
		}
		m := Match{Intent: r.Intent, Tool: r.Tool}
		switch r.Intent {
		case Add:
			m.Title = AddTitle(message)
		case Update:
			m.Title = UpdateTitle(message)
		}
		return m
	}
	return Match{Intent: Unknown}
}

var addVerbs = map[string]bool{"remember": true, "add": true, "create": true, "save": true}

// AddTitle returns the words after the first action verb, dropping one
// leading "to". Without a verb, or with nothing after it, the whole
// message is the title.
func AddTitle(message string) string {
	words := strings.Fields(message)
	title := ""
	for i, w := range words {
		if !addVerbs[strings.ToLower(w)] {
			continue
		}
		rest := words[i+1:]
		if len(rest) > 0 && strings.EqualFold(rest[0], "to") {
			rest = rest[1:]
		}
		title = strings.Join(rest, " ")
		break
	}
	if title == "" {
		title = strings.TrimSpace(message)
	}
	return truncate(title, types.MaxTitleLength)
}

var toToken = regexp.MustCompile(`\bto\b`)

// UpdateTitle returns the lowercased text after the first "to" token, or
// "" when there is none.
func UpdateTitle(message string) string {
	lower := strings.ToLower(message)
	loc := toToken.FindStringIndex(lower)
	if loc == nil {
		return ""
	}
	return truncate(strings.TrimSpace(lower[loc[1]:]), types.MaxTitleLength)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
