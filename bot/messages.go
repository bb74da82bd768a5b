package bot

import "github.com/zephyrtronium/roarbot/pattern"

// Messages is the text the bot sends in response to commands.
type Messages struct {
	// Messages holds the argument parsing messages.
	pattern.Messages
	// Banned is the reply to banned users.
	Banned string `toml:"banned"`
	// AdminLocked is the reply to non-admins using admin commands.
	AdminLocked string `toml:"admin_locked"`
	// Error is the reply when a command fails.
	Error string `toml:"error"`
	// HelpHeading is the first line of the help command's output.
	HelpHeading string `toml:"help_heading"`
	// HelpDescription is the description of the help command.
	HelpDescription string `toml:"help_description"`
}

// DefaultMessages is the messages used for fields left empty in Config.
var DefaultMessages = Messages{
	Messages:        pattern.DefaultMessages,
	Banned:          "You are banned from using this bot.",
	AdminLocked:     "You can't use this command as it is limited to administrators.",
	Error:           "💥 Something exploded. Check the console for more info!",
	HelpHeading:     "## Commands",
	HelpDescription: "Shows this message.",
}

// Merge returns m with empty fields filled from def.
func (m Messages) Merge(def Messages) Messages {
	m.Messages = m.Messages.Merge(def.Messages)
	fill(&m.Banned, def.Banned)
	fill(&m.AdminLocked, def.AdminLocked)
	fill(&m.Error, def.Error)
	fill(&m.HelpHeading, def.HelpHeading)
	fill(&m.HelpDescription, def.HelpDescription)
	return m
}

func fill(s *string, def string) {
	if *s == "" {
		*s = def
	}
}
