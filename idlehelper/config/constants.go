package config

import "time"

// Application-wide constants organized by domain

// UI and Display Constants
const (
	DefaultPageSize = 10

	// Colors
	ErrorColor   = 0xFF0000
	SuccessColor = 0x00FF00
	InfoColor    = 0x0099FF
	WarningColor = 0xFFAA00

	EmbedDefaultColor = 0x2B2D31

	// Reactions
	ReactionAck     = "✅"
	ReactionWarning = "⚠️"
	ReactionClock   = "🕓"
)

// Reminder scheduling
const (
	DueWindow          = 15 * time.Second
	GCHorizon          = 20 * time.Second
	ScheduleInterval   = 10 * time.Second
	GCInterval         = 120 * time.Second
	MessageCacheMaxAge = 10 * time.Minute
	CacheGCInterval    = 10 * time.Minute

	JitterMin = 60 * time.Second
	JitterMax = 300 * time.Second
)

// Game rules
const (
	RaidEnergyCost     = 40
	TeamraidEnergyCost = 40
	// TimeSpeederProduction is the production time one time speeder adds.
	TimeSpeederProduction = 2 * time.Hour
)

// Tracking log windows
const (
	ConsolidationHorizon = 28 * 24 * time.Hour
	RetentionHorizon     = 366 * 24 * time.Hour
)

// Interaction timeouts
const (
	InteractionTimeout      = 300 * time.Second
	AbortTimeout            = 60 * time.Second
	CommandExecutionTimeout = 10 * time.Second
	DefaultQueryTimeout     = 30 * time.Second
	BatchQueryTimeout       = 60 * time.Second
	ShutdownTimeout         = 10 * time.Second
)

// Limits
const (
	MaxTimestringSeconds  = 999_999_999
	MaxReminderMessageLen = 1024
	MaxCustomReminderLen  = 150
	MaxClanMembers        = 50
	MessageCacheChannels  = 2048
	MessageCachePerChan   = 64
)
