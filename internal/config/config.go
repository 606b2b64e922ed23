package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-guild-bot/internal/domain"
	"github.com/go-playground/validator/v10"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	DiscordToken  string `validate:"required"`
	GuildID       string `validate:"required"`
	CommandPrefix string `validate:"required"`

	// Role and channel identifiers. IDs are preferred; when an ID is empty
	// the corresponding name is resolved once at startup against the guild.
	VerifiedRoleID     string
	VerifiedRoleName   string
	ApprovedRoleID     string
	ApprovedRoleName   string
	GeneralChannelID   string
	GeneralChannelName string
	AdminChannelID     string
	AdminChannelName   string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	SNSRegion   string
	SNSTopicARN string // empty disables verification audit alerts

	OnboardTimeout  time.Duration `validate:"gt=0"`
	CleanupGrace    time.Duration `validate:"gt=0"`
	TickInterval    time.Duration `validate:"gt=0"`
	VoicePointEvery time.Duration `validate:"gt=0"` // seconds of voice per point, tick and leave alike
	ThanksCooldown  time.Duration `validate:"gt=0"`
	MentionCooldown time.Duration `validate:"gt=0"`
	BurstWindow     time.Duration `validate:"gt=0"`
	BurstMax        int           `validate:"gt=0"`
	ThanksPoints    int           `validate:"gt=0"`
	NickMaxLen      int           `validate:"gt=0"`

	Levels domain.LevelTable

	AllowedOrigins []string // CORS allowed origins for the liveness server
}

// DynamoTables holds the DynamoDB table name for each collection.
type DynamoTables struct {
	Members string
	OTPs    string
	Secrets string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		DiscordToken:  getEnv("DISCORD_TOKEN", ""),
		GuildID:       getEnv("DISCORD_GUILD_ID", ""),
		CommandPrefix: getEnv("COMMAND_PREFIX", "!"),

		VerifiedRoleID:     getEnv("VERIFIED_ROLE_ID", ""),
		VerifiedRoleName:   getEnv("VERIFIED_ROLE_NAME", "Verified"),
		ApprovedRoleID:     getEnv("APPROVED_ROLE_ID", ""),
		ApprovedRoleName:   getEnv("APPROVED_ROLE_NAME", "Approved"),
		GeneralChannelID:   getEnv("GENERAL_CHANNEL_ID", ""),
		GeneralChannelName: getEnv("GENERAL_CHANNEL_NAME", "general"),
		AdminChannelID:     getEnv("ADMIN_CHANNEL_ID", ""),
		AdminChannelName:   getEnv("ADMIN_CHANNEL_NAME", "commands"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Members: getEnv("DYNAMO_TABLE_MEMBERS", "guild_members"),
			OTPs:    getEnv("DYNAMO_TABLE_OTPS", "otps"),
			Secrets: getEnv("DYNAMO_TABLE_SECRETS", "server_secrets"),
		},

		SNSRegion:   getEnv("SNS_REGION", "us-east-1"),
		SNSTopicARN: getEnv("SNS_TOPIC_ARN", ""),

		OnboardTimeout:  getEnvDur("ONBOARD_TIMEOUT", 5*time.Minute),
		CleanupGrace:    getEnvDur("CLEANUP_GRACE", 3*time.Second),
		TickInterval:    getEnvDur("VOICE_TICK_INTERVAL", 30*time.Second),
		VoicePointEvery: getEnvDur("VOICE_POINT_EVERY", 30*time.Second),
		ThanksCooldown:  getEnvDur("THANKS_COOLDOWN", 20*time.Minute),
		MentionCooldown: getEnvDur("MENTION_COOLDOWN", 20*time.Minute),
		BurstWindow:     getEnvDur("BURST_WINDOW", 10*time.Second),
		BurstMax:        getEnvInt("BURST_MAX", 5),
		ThanksPoints:    getEnvInt("THANKS_POINTS", 5),
		NickMaxLen:      getEnvInt("NICK_MAX_LEN", 32),

		Levels: parseLevels(getEnv("LEVEL_TABLE", "")),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

var v = validator.New()

// Validate checks required fields and the level table. Called once at
// startup; the process refuses to start on an invalid configuration.
func (c *Config) Validate() error {
	if err := v.Struct(c); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	if err := c.Levels.Validate(); err != nil {
		return fmt.Errorf("LEVEL_TABLE: %w", err)
	}
	return nil
}

// defaultLevels is the shipped six-tier table.
var defaultLevels = domain.LevelTable{
	{Threshold: 10, Name: "Beginner"},
	{Threshold: 30, Name: "Jr Cyber Apprentice"},
	{Threshold: 55, Name: "Cyber Expert"},
	{Threshold: 60, Name: "Hacker Novice"},
	{Threshold: 75, Name: "Hacker"},
	{Threshold: 100, Name: "Cybersecurity Champion"},
}

// parseLevels parses "10:Beginner,30:Jr Cyber Apprentice,...". A malformed
// value falls back to the default table; ordering errors are caught by
// Validate.
func parseLevels(s string) domain.LevelTable {
	if s == "" {
		return defaultLevels
	}
	var table domain.LevelTable
	for _, part := range strings.Split(s, ",") {
		threshold, name, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return defaultLevels
		}
		n, err := strconv.Atoi(threshold)
		if err != nil {
			return defaultLevels
		}
		table = append(table, domain.Level{Threshold: n, Name: name})
	}
	return table
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
