package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/weiawesome/wes-io-channels/pkg/config"
	"github.com/weiawesome/wes-io-channels/pkg/pubsub"
	"github.com/weiawesome/wes-io-channels/pkg/storage"
)

// Config is the channel-service configuration. Durations are parsed
// separately so a malformed value falls back to its default.
type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	StreamKey StreamKeyConfig
	Readiness ReadinessConfig
	Storage   storage.Config
	Events    pubsub.Config
	Auth      AuthConfig
	CORS      CORSConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"-"`
	PongWait       time.Duration `mapstructure:"-"`
	WriteWait      time.Duration `mapstructure:"-"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type StreamKeyConfig struct {
	Secret     string
	TTL        time.Duration `mapstructure:"-"`
	PublishTTL time.Duration `mapstructure:"-"`
}

// ReadinessConfig selects how a stream's playlist is probed.
type ReadinessConfig struct {
	Driver     string        `mapstructure:"driver"` // "http", "local", "s3"
	HLSBaseURL string        `mapstructure:"hls_base_url"`
	Timeout    time.Duration `mapstructure:"-"`
	Interval   time.Duration `mapstructure:"-"`
	Watch      bool          `mapstructure:"watch"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, *viper.Viper, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3001)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 65536)
	v.SetDefault("streamkey.secret", "")
	v.SetDefault("streamkey.ttl", "1h")
	v.SetDefault("streamkey.publish_ttl", "30m")
	v.SetDefault("readiness.driver", "http")
	v.SetDefault("readiness.hls_base_url", "http://localhost:8080/hls")
	v.SetDefault("readiness.timeout", "5s")
	v.SetDefault("readiness.interval", "250ms")
	v.SetDefault("readiness.watch", false)
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local.base_path", "./hls")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.use_path_style", true)
	v.SetDefault("events.driver", "none")
	v.SetDefault("events.redis.address", "localhost:6379")
	v.SetDefault("events.redis.pool_size", 10)
	v.SetDefault("events.redis.read_timeout", "3s")
	v.SetDefault("events.redis.write_timeout", "3s")
	v.SetDefault("events.kafka.brokers", "localhost:9092")
	v.SetDefault("events.kafka.topic", "channel-events")
	v.SetDefault("events.kafka.partitions", 4)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("streamkey.secret", "STREAM_KEY_SECRET")
	v.BindEnv("readiness.hls_base_url", "HLS_BASE_URL")
	v.BindEnv("storage.s3.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.s3.bucket", "S3_BUCKET")
	v.BindEnv("storage.s3.access_key_id", "S3_ACCESS_KEY_ID")
	v.BindEnv("storage.s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("events.redis.address", "REDIS_ADDRESS")
	v.BindEnv("events.redis.password", "REDIS_PASSWORD")
	v.BindEnv("events.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, err
	}

	// Parse durations
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.StreamKey.TTL = parseDuration(v, "streamkey.ttl", time.Hour)
	cfg.StreamKey.PublishTTL = parseDuration(v, "streamkey.publish_ttl", 30*time.Minute)
	cfg.Readiness.Timeout = parseDuration(v, "readiness.timeout", 5*time.Second)
	cfg.Readiness.Interval = parseDuration(v, "readiness.interval", 250*time.Millisecond)
	cfg.Events.Redis.ReadTimeout = parseDuration(v, "events.redis.read_timeout", 3*time.Second)
	cfg.Events.Redis.WriteTimeout = parseDuration(v, "events.redis.write_timeout", 3*time.Second)
	cfg.CORS.AllowedOrigins = parseList(v, "cors.allowed_origins")

	return &cfg, v, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}

// parseList accepts either a YAML list or a comma separated env value.
func parseList(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
