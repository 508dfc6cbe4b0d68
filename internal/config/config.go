package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config stores runtime configuration for the daemon.
type Config struct {
	Wake     WakeConfig
	STT      STTConfig
	Deepgram DeepgramConfig
	OpenAI   OpenAIConfig
	Speech   SpeechConfig
	Hub      HubConfig
	Google   GoogleConfig
	Weather  WeatherConfig
	Media    MediaConfig
	Paths    PathsConfig
	Network  NetworkConfig
	API      APIConfig
	NATS     NATSConfig
	Dispatch DispatchConfig
}

type WakeConfig struct {
	Phrases        []string
	SilenceTimeout time.Duration
	Greet          bool
}

// STTConfig selects the recognizer: "deepgram" or "whisper".
type STTConfig struct {
	Provider     string
	WhisperModel string
	Language     string
	Threads      int
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	ChatModel  string
	TTSModel   string
	MaxHistory int
	MaxTokens  int
}

type SpeechConfig struct {
	EspeakVoice string
	CueDir      string
	Duck        bool
}

type HubConfig struct {
	URL        string
	Shard      string
	LightsNode string
	LockNode   string
	SceneNode  string
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	TokenPath    string
	CalendarID   string
	TaskList     string
}

type WeatherConfig struct {
	Location string
	Imperial bool
}

type MediaConfig struct {
	PreferredPlayer string
}

type PathsConfig struct {
	Database string
	Photos   string
	Videos   string
	Notes    string
	Home     string
}

type NetworkConfig struct {
	SocksProxy    string
	ProbeTargets  []string
	ProbeInterval time.Duration
}

type APIConfig struct {
	Addr  string
	Token string
}

type NATSConfig struct {
	URL     string
	Subject string
}

type DispatchConfig struct {
	ProviderTimeout  time.Duration
	ResponderTimeout time.Duration
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	dataDir := envOrDefault("XDG_DATA_HOME", filepath.Join(home, ".local", "share"))

	cfg := Config{
		Wake: WakeConfig{
			Phrases:        envOrDefaultList("JARVIS_WAKE_PHRASES", nil),
			SilenceTimeout: envOrDefaultMillis("JARVIS_SILENCE_TIMEOUT_MS", 3*time.Second),
			Greet:          envOrDefaultBool("JARVIS_GREET", true),
		},
		STT: STTConfig{
			Provider:     strings.ToLower(envOrDefault("JARVIS_STT", "")),
			WhisperModel: envOrDefault("WHISPER_MODEL", filepath.Join(dataDir, "jarvis", "models", "ggml-base.en.bin")),
			Language:     envOrDefault("WHISPER_LANGUAGE", "en"),
			Threads:      envOrDefaultInt("WHISPER_THREADS", 0),
		},
		Deepgram: DeepgramConfig{
			APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			Language:    strings.TrimSpace(os.Getenv("DEEPGRAM_LANGUAGE")),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
		},
		OpenAI: OpenAIConfig{
			APIKey:     strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			BaseURL:    strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
			ChatModel:  envOrDefault("JARVIS_CHAT_MODEL", "gpt-4o-mini"),
			TTSModel:   envOrDefault("JARVIS_TTS_MODEL", "gpt-4o-mini-tts"),
			MaxHistory: envOrDefaultInt("JARVIS_CHAT_HISTORY", 20),
			MaxTokens:  envOrDefaultInt("JARVIS_CHAT_MAX_TOKENS", 150),
		},
		Speech: SpeechConfig{
			EspeakVoice: envOrDefault("JARVIS_ESPEAK_VOICE", "en-gb"),
			CueDir:      envOrDefault("JARVIS_CUE_DIR", filepath.Join(dataDir, "jarvis", "sounds")),
			Duck:        envOrDefaultBool("JARVIS_DUCK", true),
		},
		Hub: HubConfig{
			URL:        strings.TrimSpace(os.Getenv("JARVIS_HUB_URL")),
			Shard:      envOrDefault("JARVIS_HUB_SHARD", "JARVIS"),
			LightsNode: envOrDefault("JARVIS_HUB_LIGHTS", "VERTEX"),
			LockNode:   strings.TrimSpace(os.Getenv("JARVIS_HUB_LOCK")),
			SceneNode:  strings.TrimSpace(os.Getenv("JARVIS_HUB_SCENES")),
		},
		Google: GoogleConfig{
			ClientID:     strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID")),
			ClientSecret: strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_SECRET")),
			TokenPath:    strings.TrimSpace(os.Getenv("GOOGLE_TOKEN_FILE")),
			CalendarID:   envOrDefault("GOOGLE_CALENDAR_ID", "primary"),
			TaskList:     envOrDefault("GOOGLE_TASK_LIST", "@default"),
		},
		Weather: WeatherConfig{
			Location: strings.TrimSpace(os.Getenv("JARVIS_WEATHER_LOCATION")),
			Imperial: envOrDefaultBool("JARVIS_WEATHER_IMPERIAL", false),
		},
		Media: MediaConfig{
			PreferredPlayer: strings.TrimSpace(os.Getenv("JARVIS_MEDIA_PLAYER")),
		},
		Paths: PathsConfig{
			Database: envOrDefault("JARVIS_DB", filepath.Join(dataDir, "jarvis", "jarvis.sqlite")),
			Photos:   envOrDefault("JARVIS_PHOTO_DIR", filepath.Join(home, "Pictures", "Jarvis")),
			Videos:   envOrDefault("JARVIS_VIDEO_DIR", filepath.Join(home, "Videos")),
			Notes:    envOrDefault("JARVIS_NOTE_DIR", filepath.Join(dataDir, "jarvis", "notes")),
			Home:     home,
		},
		Network: NetworkConfig{
			SocksProxy:    strings.TrimSpace(os.Getenv("JARVIS_SOCKS_PROXY")),
			ProbeTargets:  envOrDefaultList("JARVIS_PROBE_TARGETS", []string{"1.1.1.1:443", "8.8.8.8:53"}),
			ProbeInterval: envOrDefaultMillis("JARVIS_PROBE_INTERVAL_MS", 15*time.Second),
		},
		API: APIConfig{
			Addr:  envOrDefault("JARVIS_API_ADDR", "127.0.0.1:8765"),
			Token: strings.TrimSpace(os.Getenv("JARVIS_API_TOKEN")),
		},
		NATS: NATSConfig{
			URL:     strings.TrimSpace(os.Getenv("NATS_URL")),
			Subject: envOrDefault("JARVIS_NATS_SUBJECT", "jarvis.events"),
		},
		Dispatch: DispatchConfig{
			ProviderTimeout:  envOrDefaultMillis("JARVIS_PROVIDER_TIMEOUT_MS", 8*time.Second),
			ResponderTimeout: envOrDefaultMillis("JARVIS_RESPONDER_TIMEOUT_MS", 20*time.Second),
		},
	}

	if cfg.STT.Provider == "" {
		cfg.STT.Provider = "whisper"
		if cfg.Deepgram.APIKey != "" {
			cfg.STT.Provider = "deepgram"
		}
	}
	if cfg.STT.Provider != "whisper" && cfg.STT.Provider != "deepgram" {
		return Config{}, errors.New("JARVIS_STT must be whisper or deepgram")
	}
	if cfg.OpenAI.MaxHistory <= 0 {
		cfg.OpenAI.MaxHistory = 20
	}
	if cfg.OpenAI.MaxTokens <= 0 {
		cfg.OpenAI.MaxTokens = 150
	}
	if cfg.Wake.SilenceTimeout < 500*time.Millisecond {
		cfg.Wake.SilenceTimeout = 3 * time.Second
	}

	return cfg, nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultMillis(key string, fallback time.Duration) time.Duration {
	ms := envOrDefaultInt(key, -1)
	if ms < 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// envOrDefaultList splits a comma-separated value.
func envOrDefaultList(key string, fallback []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
