package commands

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/idlehelper/bot/idlehelper/config"
	"github.com/idlehelper/bot/idlehelper/database/models"
)

func intPtr(v int) *int {
	return &v
}

func floatPtr(v float64) *float64 {
	return &v
}

func reminderChoices() []discord.ApplicationCommandOptionChoiceString {
	choices := make([]discord.ApplicationCommandOptionChoiceString, 0, len(ReminderActivities))
	for _, a := range ReminderActivities {
		choices = append(choices, discord.ApplicationCommandOptionChoiceString{Name: a, Value: a})
	}
	return choices
}

var On = discord.SlashCommandCreate{
	Name:        "on",
	Description: "Turn on IDLE Helper",
}

var Off = discord.SlashCommandCreate{
	Name:        "off",
	Description: "Turn off IDLE Helper, your settings are kept",
}

var Purge = discord.SlashCommandCreate{
	Name:        "purge",
	Description: "Delete your data",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "data",
			Description: "Delete everything IDLE Helper stores about you",
		},
	},
}

var Reminders = discord.SlashCommandCreate{
	Name:        "reminders",
	Description: "Manage your reminders",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "add",
			Description: "Add a custom reminder",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "time",
					Description: "When to remind you, e.g. 1h30m",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "text",
					Description: "What to remind you about",
					Required:    true,
					MaxLength:   intPtr(config.MaxCustomReminderLen),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "list",
			Description: "List active reminders",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "Whose reminders to show",
				},
			},
		},
	},
}

var Stats = discord.SlashCommandCreate{
	Name:        "stats",
	Description: "Show tracked activity",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "timeframe",
			Description: "Timeframe to report, e.g. 3d",
		},
		discord.ApplicationCommandOptionUser{
			Name:        "user",
			Description: "Whose stats to show",
		},
	},
}

var Settings = discord.SlashCommandCreate{
	Name:        "settings",
	Description: "Show and change settings",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "user",
			Description: "Your general settings",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionBool{Name: "reactions", Description: "React to game messages"},
				discord.ApplicationCommandOptionBool{Name: "tracking", Description: "Track your activity for /stats"},
				discord.ApplicationCommandOptionBool{Name: "dnd", Description: "Don't ping me in reminders"},
				discord.ApplicationCommandOptionBool{Name: "embed", Description: "Send reminders as embeds"},
				discord.ApplicationCommandOptionBool{Name: "slash", Description: "Show slash commands in reminders"},
				discord.ApplicationCommandOptionChannel{
					Name:         "channel",
					Description:  "Send all reminders to this channel",
					ChannelTypes: []discord.ChannelType{discord.ChannelTypeGuildText},
				},
				discord.ApplicationCommandOptionBool{Name: "reset-channel", Description: "Send reminders where the command was used"},
				discord.ApplicationCommandOptionInt{
					Name:        "donor-tier",
					Description: "Your donor tier",
					MinValue:    intPtr(0),
					MaxValue:    intPtr(maxDonorTier),
				},
				discord.ApplicationCommandOptionInt{
					Name:        "energy-max",
					Description: "Your maximum energy",
					MinValue:    intPtr(1),
					MaxValue:    intPtr(maxEnergy),
				},
				discord.ApplicationCommandOptionInt{
					Name:        "energy",
					Description: "Your current energy",
					MinValue:    intPtr(0),
					MaxValue:    intPtr(maxEnergy),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "helpers",
			Description: "Raid, teamraid and upgrade helpers",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionBool{Name: "context", Description: "Context commands after game commands"},
				discord.ApplicationCommandOptionBool{Name: "raid", Description: "Raid helper"},
				discord.ApplicationCommandOptionBool{Name: "raid-compact", Description: "Compact raid helper"},
				discord.ApplicationCommandOptionBool{Name: "raid-names", Description: "Show worker names in the raid helper"},
				discord.ApplicationCommandOptionBool{Name: "teamraid", Description: "Teamraid helper"},
				discord.ApplicationCommandOptionBool{Name: "upgrades", Description: "Upgrades helper"},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "reminders",
			Description: "Turn reminders on or off",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "reminder",
					Description: "Reminder to change",
					Choices:     reminderChoices(),
				},
				discord.ApplicationCommandOptionBool{Name: "enabled", Description: "Turn the reminder on or off"},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "messages",
			Description: "Change reminder messages",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "reminder",
					Description: "Reminder to change",
					Required:    true,
					Choices:     reminderChoices(),
				},
				discord.ApplicationCommandOptionString{
					Name:        "message",
					Description: "New message, placeholders like {name} are filled in",
					MaxLength:   intPtr(config.MaxReminderMessageLen),
				},
				discord.ApplicationCommandOptionBool{Name: "reset", Description: "Restore the default message"},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "server",
			Description: "Server settings, needs Manage Server",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "event",
					Description: "Event ping to change",
					Choices: []discord.ApplicationCommandOptionChoiceString{
						{Name: "energy ritual", Value: models.EventEnergy},
						{Name: "fired worker", Value: models.EventFired},
						{Name: "lucky reward", Value: models.EventLucky},
						{Name: "packing", Value: models.EventPacking},
					},
				},
				discord.ApplicationCommandOptionBool{Name: "enabled", Description: "Turn the event ping on or off"},
				discord.ApplicationCommandOptionString{
					Name:        "message",
					Description: "Event ping message",
					MaxLength:   intPtr(config.MaxReminderMessageLen),
				},
				discord.ApplicationCommandOptionString{
					Name:        "prefix",
					Description: "Prefix for text commands",
					MaxLength:   intPtr(maxPrefixLen),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "guild",
			Description: "Guild settings, only the leader can change them",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionChannel{
					Name:         "channel",
					Description:  "Channel for guild reminders and alerts",
					ChannelTypes: []discord.ChannelType{discord.ChannelTypeGuildText},
				},
				discord.ApplicationCommandOptionRole{Name: "role", Description: "Role pinged in guild reminders"},
				discord.ApplicationCommandOptionBool{Name: "reminders", Description: "Teamraid reminders"},
				discord.ApplicationCommandOptionFloat{
					Name:        "offset",
					Description: "Hours to remind before the teamraid is ready",
					MinValue:    floatPtr(0),
					MaxValue:    floatPtr(maxOffsetHour),
				},
				discord.ApplicationCommandOptionBool{Name: "teamraid", Description: "Teamraid helper"},
				discord.ApplicationCommandOptionBool{Name: "alerts", Description: "Alert when a guild buff unlocks"},
				discord.ApplicationCommandOptionString{
					Name:        "reminder-message",
					Description: "Guild reminder message",
					MaxLength:   intPtr(config.MaxReminderMessageLen),
				},
				discord.ApplicationCommandOptionString{
					Name:        "alert-message",
					Description: "Guild buff alert message",
					MaxLength:   intPtr(config.MaxReminderMessageLen),
				},
			},
		},
	},
}

var Workers = discord.SlashCommandCreate{
	Name:        "workers",
	Description: "Rank your workers by raid power",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionUser{Name: "user", Description: "Whose workers to show"},
	},
}

var Guild = discord.SlashCommandCreate{
	Name:        "guild",
	Description: "Guild commands",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "power",
			Description: "Power of every member of your guild",
		},
	},
}

var Calculator = discord.SlashCommandCreate{
	Name:        "calculator",
	Description: "Do some math",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "expression",
			Description: "e.g. (5 + 3) * 2",
			Required:    true,
		},
	},
}

var Codes = discord.SlashCommandCreate{
	Name:        "codes",
	Description: "Redeemable codes",
}

var EventReductions = discord.SlashCommandCreate{
	Name:        "event-reductions",
	Description: "Cooldown reductions of the current event",
}

var Help = discord.SlashCommandCreate{
	Name:        "help",
	Description: "How IDLE Helper works",
}

var About = discord.SlashCommandCreate{
	Name:        "about",
	Description: "Version and stats of IDLE Helper",
}

var Dev = discord.SlashCommandCreate{
	Name:        "dev",
	Description: "Owner commands",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "code",
			Description: "Add or replace a redeemable code",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{Name: "code", Description: "Code", Required: true},
				discord.ApplicationCommandOptionString{Name: "contents", Description: "What the code gives", Required: true},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "reduction",
			Description: "Set the event reduction of a cooldown",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{Name: "activity", Description: "Cooldown activity", Required: true},
				discord.ApplicationCommandOptionFloat{Name: "slash", Description: "Reduction for slash commands in percent", Required: true},
				discord.ApplicationCommandOptionFloat{Name: "mention", Description: "Reduction for mention commands in percent", Required: true},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "minievent",
			Description: "Set the energy multiplier of the mini event",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionFloat{Name: "multiplier", Description: "Energy multiplier", Required: true},
			},
		},
	},
}

var Commands = []discord.ApplicationCommandCreate{
	On,
	Off,
	Purge,
	Reminders,
	Stats,
	Settings,
	Workers,
	Guild,
	Calculator,
	Codes,
	EventReductions,
	Help,
	About,
	Dev,
}
