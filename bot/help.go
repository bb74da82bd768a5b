package bot

import (
	"context"
	"strings"
)

// help is the handler for the automatic help command.
func (b *Bot) help(ctx context.Context, call *Invocation) error {
	_, err := call.Reply(ctx, b.Help(b.Username()))
	return err
}

// Help renders the list of commands as seen by users mentioning username.
// Commands are grouped by category in order of each category's first
// command.
func (b *Bot) Help(username string) string {
	var order []string
	groups := make(map[string][]string)
	for _, c := range b.Commands() {
		if _, ok := groups[c.Category]; !ok {
			order = append(order, c.Category)
		}
		var s strings.Builder
		if c.Admin {
			s.WriteString("🔒 ")
		}
		line := "@" + username + " " + c.Name + " " + c.Pattern.Signature()
		s.WriteString(strings.TrimSuffix(line, " "))
		if c.Description != "" {
			s.WriteString("\n_" + c.Description + "_")
		}
		s.WriteString("\n")
		groups[c.Category] = append(groups[c.Category], s.String())
	}
	cats := make([]string, len(order))
	for i, cat := range order {
		cats[i] = "### " + cat + "\n" + strings.Join(groups[cat], "\n")
	}
	return b.msgs.HelpHeading + "\n" + strings.Join(cats, "\n")
}
