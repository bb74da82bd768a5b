// Package command implements the commands of the example bot.
package command

import (
	"fmt"

	"github.com/zephyrtronium/roarbot/bot"
)

// Config is the configuration of the example commands.
type Config struct {
	// Meows is the meows and their weights for the meow command.
	// If empty, a default set is used.
	Meows map[string]int `toml:"meows"`
}

type registration struct {
	name string
	opts bot.CommandOptions
	fn   bot.Func
}

// Register adds every example command to b.
func Register(b *bot.Bot, cfg Config) error {
	cmds := []registration{
		{"ping", bot.CommandOptions{Description: "Pong!", Category: "Fun"}, Ping},
		{"meow", bot.CommandOptions{Description: "Meows.", Category: "Fun"}, Meow(cfg.Meows)},
		{"greet", bot.CommandOptions{Pattern: greetPattern, Description: "Greets someone.", Category: "Fun"}, Greet},
		{"add", bot.CommandOptions{Pattern: addPattern, Description: "Adds two numbers.", Category: "Math"}, Add},
		{"whois", bot.CommandOptions{Pattern: whoisPattern, Description: "Shows a user's profile.", Category: "Profile"}, Whois},
		{"color", bot.CommandOptions{Pattern: colorPattern, Description: "Changes the bot's avatar color.", Category: "Profile", Admin: true}, Color},
		{"say", bot.CommandOptions{Pattern: sayPattern, Description: "Posts a message.", Category: "Admin", Admin: true}, Say},
		{"unsay", bot.CommandOptions{Description: "Deletes the bot's post this replies to.", Category: "Admin", Admin: true}, Unsay},
	}
	for _, c := range cmds {
		if err := b.Register(c.name, c.opts, c.fn); err != nil {
			return fmt.Errorf("couldn't register example commands: %w", err)
		}
	}
	return nil
}
