package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-guild-bot/internal/application/approval"
	"github.com/go-guild-bot/internal/application/otp"
	"github.com/go-guild-bot/internal/application/points"
	"github.com/go-guild-bot/internal/application/verification"
	"github.com/go-guild-bot/internal/bot"
	"github.com/go-guild-bot/internal/config"
	"github.com/go-guild-bot/internal/infrastructure/discord"
	"github.com/go-guild-bot/internal/infrastructure/dynamo"
	"github.com/go-guild-bot/internal/infrastructure/sns"
	transporthttp "github.com/go-guild-bot/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx := context.Background()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	memberRepo := dynamo.NewMemberRepo(dynamoClient, cfg.DynamoTables.Members)
	otpRepo := dynamo.NewOTPRepo(dynamoClient, cfg.DynamoTables.OTPs)
	secretRepo := dynamo.NewSecretRepo(dynamoClient, cfg.DynamoTables.Secrets)

	// SNS audit alerts (optional — graceful fallback).
	var alerts sns.AlertPublisher
	if cfg.SNSTopicARN != "" {
		p, err := sns.NewPublisher(cfg)
		if err != nil {
			log.Printf("WARN: SNS publisher not available: %v", err)
		} else {
			alerts = p
		}
	}

	gateway, err := discord.New(cfg.DiscordToken)
	if err != nil {
		log.Fatalf("discord: %v", err)
	}

	// Role and channel IDs may be configured directly; otherwise they
	// are resolved by name once the gateway is open.
	if err := gateway.Open(); err != nil {
		log.Fatalf("discord connect: %v", err)
	}
	defer gateway.Close()
	if err := resolveGuildIDs(ctx, gateway, cfg); err != nil {
		log.Fatalf("resolve roles/channels: %v", err)
	}

	otpSvc := otp.NewService(otpRepo)
	verificationSvc := verification.NewService(verification.ServiceDeps{
		Gateway:        gateway,
		Secrets:        secretRepo,
		OTPs:           otpSvc,
		Alerts:         alerts,
		VerifiedRoleID: cfg.VerifiedRoleID,
		CommandPrefix:  cfg.CommandPrefix,
		OnboardTimeout: cfg.OnboardTimeout,
		CleanupGrace:   cfg.CleanupGrace,
	})
	pointsSvc := points.NewService(points.ServiceDeps{
		Gateway:         gateway,
		Members:         memberRepo,
		Levels:          cfg.Levels,
		ThanksPoints:    cfg.ThanksPoints,
		VoicePointEvery: cfg.VoicePointEvery,
		NickMaxLen:      cfg.NickMaxLen,
		ThanksCooldown:  cfg.ThanksCooldown,
		MentionCooldown: cfg.MentionCooldown,
	})
	approvalSvc := approval.NewService(approval.ServiceDeps{
		Gateway:        gateway,
		VerifiedRoleID: cfg.VerifiedRoleID,
		ApprovedRoleID: cfg.ApprovedRoleID,
		BurstWindow:    cfg.BurstWindow,
		BurstMax:       cfg.BurstMax,
	})

	if err := verificationSvc.EnsureSecret(ctx); err != nil {
		log.Fatalf("seed shared secret: %v", err)
	}

	dispatcher := bot.NewDispatcher(bot.Deps{
		Verification:     verificationSvc,
		Points:           pointsSvc,
		Approval:         approvalSvc,
		OTPs:             otpSvc,
		Gateway:          gateway,
		CommandPrefix:    cfg.CommandPrefix,
		GeneralChannelID: cfg.GeneralChannelID,
		AdminChannelID:   cfg.AdminChannelID,
	})
	gateway.Bind(dispatcher)

	tickCtx, stopTick := context.WithCancel(ctx)
	defer stopTick()
	go runVoiceTicker(tickCtx, dispatcher, cfg)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		slog.Info("liveness server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	slog.Info("bot running", "guild_id", cfg.GuildID)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	stopTick()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	slog.Info("stopped")
}

// resolveGuildIDs fills in any role or channel ID left empty in the
// config by looking the entity up by name.
func resolveGuildIDs(ctx context.Context, gateway *discord.Gateway, cfg *config.Config) error {
	var err error
	if cfg.VerifiedRoleID == "" {
		if cfg.VerifiedRoleID, err = gateway.ResolveRole(ctx, cfg.GuildID, cfg.VerifiedRoleName); err != nil {
			return err
		}
	}
	if cfg.ApprovedRoleID == "" {
		if cfg.ApprovedRoleID, err = gateway.ResolveRole(ctx, cfg.GuildID, cfg.ApprovedRoleName); err != nil {
			return err
		}
	}
	if cfg.GeneralChannelID == "" {
		if cfg.GeneralChannelID, err = gateway.ResolveChannel(ctx, cfg.GuildID, cfg.GeneralChannelName); err != nil {
			return err
		}
	}
	if cfg.AdminChannelID == "" {
		if cfg.AdminChannelID, err = gateway.ResolveChannel(ctx, cfg.GuildID, cfg.AdminChannelName); err != nil {
			return err
		}
	}
	return nil
}

// runVoiceTicker emits the periodic voice-point tick until ctx ends.
func runVoiceTicker(ctx context.Context, d *bot.Dispatcher, cfg *config.Config) {
	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Dispatch(ctx, bot.TickEvent{GuildID: cfg.GuildID}); err != nil {
				slog.Warn("voice tick failed", "err", err)
			}
		}
	}
}
