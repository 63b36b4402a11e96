package bot

import (
	"log"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/avask/chorus/config"
	"github.com/avask/chorus/internal/database"
	commands "github.com/avask/chorus/internal/features"
	"github.com/avask/chorus/internal/lavalink"
	"github.com/avask/chorus/internal/music"
	"github.com/avask/chorus/internal/redis"
)

type Bot struct {
	config  *config.Config
	session *discordgo.Session
	engine  *lavalink.Client
	manager *music.Manager
	voice   *voiceRelay
	started bool
}

func New(cfg *config.Config) (*Bot, error) {
	if cfg.HasDatabase() {
		dbConfig := &database.Config{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		}
		if err := database.Initialize(dbConfig); err != nil {
			log.Printf("Warning: Database initialization failed, likes are disabled: %v", err)
		}
	} else {
		log.Printf("No database configured, likes are disabled")
	}

	if cfg.HasRedis() {
		redisConfig := redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
		if _, err := redis.Init(redisConfig); err != nil {
			log.Printf("Warning: Redis initialization failed, settings are uncached: %v", err)
		}
	}

	s, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	// The node wants the bot's user id before the gateway opens.
	self, err := s.User("@me")
	if err != nil {
		return nil, err
	}

	engine := lavalink.NewClient(lavalink.Config{
		Host:     cfg.LavalinkHost,
		Port:     cfg.LavalinkPort,
		Password: cfg.LavalinkPassword,
		Secure:   cfg.LavalinkSecure,
	}, self.ID, nil)

	catalog := music.NewYandexClient(cfg.YandexMusicToken)
	likes := database.NewLikesRepository()
	prefs := music.NewPreferences(database.NewSettingsRepository(), redis.Client())
	resolver := music.NewResolver(engine, catalog, prefs)

	voice := &voiceGateway{session: s}
	manager := music.NewManager(engine, voice, likes, resolver, prefs, music.Options{
		IdleDelay:     time.Duration(cfg.AutoLeaveTimeout) * time.Second,
		DefaultVolume: cfg.DefaultVolume,
	})
	engine.SetHandler(manager)

	commands.Configure(manager)

	relay := newVoiceRelay(engine, self.ID)
	s.AddHandler(relay.onVoiceStateUpdate)
	s.AddHandler(relay.onVoiceServerUpdate)

	return &Bot{
		config:  cfg,
		session: s,
		engine:  engine,
		manager: manager,
		voice:   relay,
	}, nil
}

func (b *Bot) Start() error {
	if b.started {
		return nil
	}

	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		if s.State != nil && s.State.User != nil {
			log.Printf("Bot ready as %s", s.State.User.Username)
		} else {
			log.Printf("Bot ready")
		}
	})

	commands.AddHandlers(b.session)
	b.manager.Subscribe(commands.NewAnnouncer(b.session))

	if _, err := commands.RegisterCommands(b.session, b.config.ApplicationID, b.config.GuildID); err != nil {
		log.Printf("Warning: failed to register slash commands: %v", err)
	}

	if err := b.session.Open(); err != nil {
		return err
	}

	b.engine.Connect()

	b.started = true
	log.Printf("Bot session opened")
	return nil
}

func (b *Bot) Stop() error {
	if !b.started {
		return nil
	}
	b.started = false

	b.engine.Close()

	if err := b.session.Close(); err != nil {
		return err
	}

	if err := database.Close(); err != nil {
		log.Printf("Warning: failed to close database: %v", err)
	}

	if err := redis.Close(); err != nil {
		log.Printf("Warning: failed to close redis: %v", err)
	}

	log.Printf("Bot session closed")
	return nil
}
