package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/avask/chorus/config"
	"github.com/avask/chorus/internal/bot"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Chorus - Discord Music Bot")
	log.Println("==========================")

	cfg, err := config.Load()
	if err != nil {
		log.Printf("Error: Failed to load configuration: %v", err)
		log.Println("")
		log.Println("Please ensure you have set the following environment variables:")
		log.Println("  DISCORD_TOKEN          - Your Discord bot token (required)")
		log.Println("  DISCORD_APPLICATION_ID - Your Discord application ID (required)")
		log.Println("  LAVALINK_PASSWORD      - Password of your Lavalink node (required)")
		log.Println("")
		log.Println("Optional environment variables:")
		log.Println("  DISCORD_GUILD_ID       - Guild ID for development (registers commands to specific guild)")
		log.Println("  LAVALINK_HOST          - Lavalink host (default: localhost)")
		log.Println("  LAVALINK_PORT          - Lavalink port (default: 2333)")
		log.Println("  LAVALINK_SECURE        - Use TLS for Lavalink (default: false)")
		log.Println("  DEFAULT_VOLUME         - Default volume level (0-100, default: 100)")
		log.Println("  AUTO_LEAVE_TIMEOUT     - Idle disconnect timeout in seconds (default: 300)")
		log.Println("")
		log.Println("Database configuration (liked tracks):")
		log.Println("  DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SSLMODE")
		log.Println("")
		log.Println("Redis configuration (settings cache):")
		log.Println("  REDIS_HOST, REDIS_PORT, REDIS_PASSWORD, REDIS_DB")
		log.Println("")
		log.Println("Yandex Music configuration:")
		log.Println("  YANDEX_MUSIC_TOKEN")
		os.Exit(1)
	}

	log.Println("")
	log.Println("Configuration loaded successfully")
	log.Println("---------------------------------")

	if cfg.IsDevelopment() {
		log.Printf("Mode: Development (Guild ID: %s)", cfg.GuildID)
	} else {
		log.Printf("Mode: Production (global commands)")
	}

	log.Println("")
	log.Println("Bot Settings:")
	log.Printf("  Default Volume: %d%%", cfg.DefaultVolume)
	log.Printf("  Auto Leave Timeout: %d seconds", cfg.AutoLeaveTimeout)

	log.Println("")
	log.Println("Lavalink:")
	log.Printf("  Host: %s:%s (secure: %v)", cfg.LavalinkHost, cfg.LavalinkPort, cfg.LavalinkSecure)

	log.Println("")
	log.Println("Database:")
	if cfg.HasDatabase() {
		log.Printf("  Host: %s:%d", cfg.DBHost, cfg.DBPort)
		log.Printf("  Database: %s", cfg.DBName)
	} else {
		log.Printf("  Status: not configured (liked tracks disabled)")
	}

	log.Println("")
	log.Println("Redis:")
	if cfg.HasRedis() {
		log.Printf("  Host: %s:%d", cfg.RedisHost, cfg.RedisPort)
	} else {
		log.Printf("  Status: not configured (settings cache disabled)")
	}

	log.Println("")
	log.Println("Yandex Music:")
	if cfg.YandexMusicToken != "" {
		log.Printf("  Status: configured")
	} else {
		log.Printf("  Status: not configured (Yandex Music links will not work)")
	}

	log.Println("")
	log.Println("---------------------------------")

	b, err := bot.New(cfg)
	if err != nil {
		log.Fatalf("Error: Failed to create bot: %v", err)
	}

	log.Println("Starting bot...")
	if err := b.Start(); err != nil {
		log.Fatalf("Error: Bot error: %v", err)
	}

	log.Println("Bot is running. Press CTRL+C to exit.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	if err := b.Stop(); err != nil {
		log.Printf("Error: Failed to stop bot: %v", err)
	}
}
