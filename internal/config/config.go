// Package config loads and validates the gateway's process configuration
// from environment variables (and an optional .env file), following the
// viper + go-playground/validator pattern the rest of the stack uses for
// its services.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// PostgresConfig holds the session-log database mirror's connection
// parameters.
type PostgresConfig struct {
	Host              string `mapstructure:"host" validate:"required"`
	Port              int    `mapstructure:"port" validate:"required"`
	DBName            string `mapstructure:"db_name" validate:"required"`
	User              string `mapstructure:"auth_user" validate:"required"`
	Password          string `mapstructure:"auth_password"`
	SSLMode           string `mapstructure:"ssl_mode" validate:"required"`
	MaxOpenConnection int    `mapstructure:"max_open_connection" validate:"required"`
	MaxIdleConnection int    `mapstructure:"max_ideal_connection" validate:"required"`
}

// RedisConfig holds the CallRegistry's shared-cache connection parameters.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ASRConfig holds Google Speech streaming recognition parameters.
type ASRConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	APIKey          string `mapstructure:"api_key"`
	ProjectID       string `mapstructure:"project_id"`
	Region          string `mapstructure:"region"`
	Language        string `mapstructure:"language" validate:"required"`
	Model           string `mapstructure:"model" validate:"required"`
	QueueSize       int    `mapstructure:"queue_size" validate:"required"`
}

// ESLConfig holds the FreeSWITCH/Asterisk Event Socket connection
// parameters.
type ESLConfig struct {
	Host        string `mapstructure:"host" validate:"required"`
	Port        int    `mapstructure:"port" validate:"required"`
	Password    string `mapstructure:"password" validate:"required"`
	DialTimeout int    `mapstructure:"dial_timeout_seconds" validate:"required"`
}

// AppConfig is the full gateway process configuration.
type AppConfig struct {
	ServiceName string `mapstructure:"service_name" validate:"required"`
	Version     string `mapstructure:"version" validate:"required"`
	LogLevel    string `mapstructure:"log_level" validate:"required"`
	LogDir      string `mapstructure:"log_dir" validate:"required"`

	RTPPort        int    `mapstructure:"rtp_port" validate:"required"`
	WSPort         int    `mapstructure:"ws_port" validate:"required"`
	InitHTTPAddr   string `mapstructure:"init_http_addr" validate:"required"`
	InitSocketPath string `mapstructure:"init_socket_path"`

	DefaultClientID        string `mapstructure:"default_client_id" validate:"required"`
	ClientMappingPath      string `mapstructure:"client_mapping_path" validate:"required"`
	ClientProfileDir       string `mapstructure:"client_profile_dir" validate:"required"`
	TemplateAudioDir       string `mapstructure:"template_audio_dir" validate:"required"`
	SessionRootDir         string `mapstructure:"session_root_dir" validate:"required"`
	SessionRetentionDays   int    `mapstructure:"session_retention_days" validate:"required"`
	NoInputTimeoutSeconds  int    `mapstructure:"no_input_timeout_seconds" validate:"required"`
	AutoHangupDelaySeconds int    `mapstructure:"auto_hangup_delay_seconds" validate:"required"`
	DefaultOperatorNumber  string `mapstructure:"default_operator_number"`
	VADModelPath           string `mapstructure:"vad_model_path"`
	RTPInfoGlob            string `mapstructure:"rtp_info_glob" validate:"required"`
	MigrationsDir          string `mapstructure:"migrations_dir" validate:"required"`

	Postgres PostgresConfig `mapstructure:"postgres" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis" validate:"required"`
	ASR      ASRConfig      `mapstructure:"asr" validate:"required"`
	ESL      ESLConfig      `mapstructure:"esl" validate:"required"`
}

// Load reads configuration from the environment (and ENV_PATH's .env file,
// if set), applies defaults, and validates the result.
func Load() (*AppConfig, error) {
	envPath := os.Getenv("ENV_PATH")
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	v := viper.NewWithOptions(viper.KeyDelimiter("__"))
	v.AutomaticEnv()
	setDefaults(v)

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "ivr-gateway")
	v.SetDefault("VERSION", "0.1.0")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DIR", "/var/log/libertycall")

	v.SetDefault("RTP_PORT", 20000)
	v.SetDefault("WS_PORT", 9001)
	v.SetDefault("INIT_HTTP_ADDR", "0.0.0.0:8088")
	v.SetDefault("INIT_SOCKET_PATH", "/var/run/libertycall/init.sock")

	v.SetDefault("DEFAULT_CLIENT_ID", "000")
	v.SetDefault("CLIENT_MAPPING_PATH", "/opt/libertycall/config/client_mapping.json")
	v.SetDefault("CLIENT_PROFILE_DIR", "/opt/libertycall/clients")
	v.SetDefault("TEMPLATE_AUDIO_DIR", "/opt/libertycall/audio")
	v.SetDefault("SESSION_ROOT_DIR", "/var/lib/libertycall/sessions")
	v.SetDefault("SESSION_RETENTION_DAYS", 30)
	v.SetDefault("NO_INPUT_TIMEOUT_SECONDS", 8)
	v.SetDefault("AUTO_HANGUP_DELAY_SECONDS", 15)
	v.SetDefault("DEFAULT_OPERATOR_NUMBER", "")
	v.SetDefault("VAD_MODEL_PATH", "")
	v.SetDefault("RTP_INFO_GLOB", "/tmp/rtp_info_*.txt")
	v.SetDefault("MIGRATIONS_DIR", "/opt/libertycall/migrations")

	v.SetDefault("POSTGRES__HOST", "localhost")
	v.SetDefault("POSTGRES__PORT", 5432)
	v.SetDefault("POSTGRES__DB_NAME", "libertycall")
	v.SetDefault("POSTGRES__AUTH_USER", "libertycall")
	v.SetDefault("POSTGRES__AUTH_PASSWORD", "")
	v.SetDefault("POSTGRES__MAX_OPEN_CONNECTION", 10)
	v.SetDefault("POSTGRES__MAX_IDEAL_CONNECTION", 10)
	v.SetDefault("POSTGRES__SSL_MODE", "disable")

	v.SetDefault("REDIS__ADDR", "localhost:6379")
	v.SetDefault("REDIS__PASSWORD", "")
	v.SetDefault("REDIS__DB", 0)

	v.SetDefault("ASR__LANGUAGE", "ja-JP")
	v.SetDefault("ASR__MODEL", "long")
	v.SetDefault("ASR__QUEUE_SIZE", 500)

	v.SetDefault("ESL__HOST", "127.0.0.1")
	v.SetDefault("ESL__PORT", 8021)
	v.SetDefault("ESL__PASSWORD", "ClueCon")
	v.SetDefault("ESL__DIAL_TIMEOUT_SECONDS", 5)
}
