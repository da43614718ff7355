package shared

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv      string        `envconfig:"APP_ENV" default:"prod"`
	LogLevel    string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`
	HTTPAddr    string        `envconfig:"HTTP_ADDR" default:":8080" validate:"required"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"60s" validate:"gt=0"`
	MetricsAddr string        `envconfig:"METRICS_ADDR" default:":9100"`
	MySQLDSN    string        `envconfig:"MYSQL_DSN" default:"root:root@tcp(localhost:3306)/hotelbot?parseTime=true&charset=utf8mb4,utf8&loc=UTC" validate:"required"`
	RedisAddr   string        `envconfig:"REDIS_ADDR" default:"localhost:6379" validate:"required"`
	RedisPass   string        `envconfig:"REDIS_PASSWORD"`
	RedisDB     int           `envconfig:"REDIS_DB" default:"0" validate:"gte=0"`

	HotelsBase     string        `envconfig:"HOTELS_BASE_URL" default:"https://hotels4.p.rapidapi.com" validate:"url"`
	HotelsHost     string        `envconfig:"HOTELS_HOST" default:"hotels4.p.rapidapi.com"`
	HotelsKey      string        `envconfig:"HOTELS_API_KEY"`
	HotelsLocale   string        `envconfig:"HOTELS_LOCALE" default:"ru_RU"`
	HotelsCurrency string        `envconfig:"HOTELS_CURRENCY" default:"RUB" validate:"len=3"`
	HotelsRPS      int           `envconfig:"HOTELS_RPS" default:"5" validate:"gt=0"`
	RemoteTimeout  time.Duration `envconfig:"REMOTE_TIMEOUT" default:"10s" validate:"gt=0"`

	PageSize    int    `envconfig:"SEARCH_PAGE_SIZE" default:"25" validate:"gt=0,lte=100"`
	MaxPages    int    `envconfig:"SEARCH_MAX_PAGES" default:"10" validate:"gt=0"`
	MaxResults  int    `envconfig:"MAX_RESULTS" default:"5" validate:"gt=0"`
	MaxPhotos   int    `envconfig:"MAX_PHOTOS" default:"5" validate:"gte=0"`
	PhotoSize   string `envconfig:"PHOTO_SIZE" default:"z" validate:"required"`
	PhotoWorker int    `envconfig:"PHOTO_WORKERS" default:"4" validate:"gt=0"`

	CacheTTL     time.Duration `ignored:"true"`
	CacheTTLSec  int           `envconfig:"CACHE_TTL_SECONDS" default:"900" validate:"gte=0"`
	LockTTL      time.Duration `envconfig:"LOCK_TTL" default:"90s" validate:"gtfield=HTTPTimeout"`
	HistoryLimit int           `envconfig:"HISTORY_LIMIT" default:"5" validate:"gt=0"`
	BookingBase  string        `envconfig:"BOOKING_BASE_URL" default:"https://www.hotels.com" validate:"url"`

	WarmLocations []string `envconfig:"WARM_LOCATIONS"`
	WarmWorkers   int      `envconfig:"WARM_WORKERS" default:"4" validate:"gt=0"`
}

// Load reads an optional .env file (ENV_FILE, defaulting to ./.env) into the
// process environment and builds Config from it. Invalid settings are fatal.
func Load() Config {
	c, err := LoadFrom(os.Getenv("ENV_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if c.HotelsKey == "" {
		log.Warn().Msg("HOTELS_API_KEY is empty")
	}
	return c
}

func LoadFrom(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := exportEnvFile(envFile); err != nil {
		return Config{}, fmt.Errorf("env file %s: %w", envFile, err)
	}

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, err
	}
	c.CacheTTL = time.Duration(c.CacheTTLSec) * time.Second

	if err := validator.New().Struct(c); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

// exportEnvFile copies the file's keys into the environment without
// overriding variables that are already set.
func exportEnvFile(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if st.IsDir() {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	for k, val := range v.AllSettings() {
		key := strings.ToUpper(k)
		if _, ok := os.LookupEnv(key); ok {
			continue
		}
		if err := os.Setenv(key, fmt.Sprint(val)); err != nil {
			return err
		}
	}
	return nil
}
