// Package config loads service settings: built-in defaults, then
// config.yaml, then .env, then the process environment. In production the
// environment can first be seeded from AWS SSM Parameter Store.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMongo    = "mongo"
)

// Config struct for YAML configuration. Every key can be overridden by an
// environment variable of the same name.
type Config struct {
	Env      string `yaml:"ENV" validate:"oneof=development production test"`
	GRPCPort int    `yaml:"GRPC_PORT" validate:"min=0,max=65535"`
	HTTPPort int    `yaml:"HTTP_PORT" validate:"min=0,max=65535"`

	Store         string `yaml:"STORE" validate:"oneof=postgres sqlite mongo"`
	DBHost        string `yaml:"DB_HOST" validate:"required_if=Store postgres"`
	DBPort        int    `yaml:"DB_PORT" validate:"min=0,max=65535"`
	DBUser        string `yaml:"DB_USER"`
	DBPassword    string `yaml:"DB_PASSWORD"`
	DBName        string `yaml:"DB_NAME" validate:"required_if=Store postgres"`
	DBSSLMode     string `yaml:"DB_SSLMODE"`
	SQLitePath    string `yaml:"SQLITE_PATH" validate:"required_if=Store sqlite"`
	MongoURI      string `yaml:"MONGO_URI" validate:"required_if=Store mongo"`
	MongoDatabase string `yaml:"MONGO_DATABASE" validate:"required_if=Store mongo"`

	RedisAddr string        `yaml:"REDIS_ADDR"`
	CacheTTL  time.Duration `yaml:"CACHE_TTL" validate:"min=0"`

	KafkaBrokers []string `yaml:"KAFKA_BROKERS"`
	Topic        string   `yaml:"TOPIC"`

	JWTSecret   string   `yaml:"JWT_SECRET"`
	CORSOrigins []string `yaml:"CORS_ORIGINS"`
	RateLimit   float64  `yaml:"RATE_LIMIT" validate:"min=0"`
	RateBurst   int      `yaml:"RATE_BURST" validate:"min=0,required_unless=RateLimit 0"`

	SSMPath   string `yaml:"SSM_PATH"`
	AWSRegion string `yaml:"AWS_REGION"`
}

// Default returns the settings used when nothing else is configured.
func Default() *Config {
	return &Config{
		Env:           "production",
		GRPCPort:      50051,
		HTTPPort:      8080,
		Store:         StorePostgres,
		DBHost:        "localhost",
		DBPort:        5432,
		DBUser:        "postgres",
		DBName:        "companies",
		DBSSLMode:     "disable",
		SQLitePath:    "companies.db",
		MongoDatabase: "directory",
		CacheTTL:      10 * time.Minute,
		Topic:         "companies",
		RateLimit:     20,
		RateBurst:     40,
		AWSRegion:     "us-east-1",
	}
}

// Development reports whether error bodies should carry stacks.
func (c *Config) Development() bool {
	return c.Env == "development"
}

// Load builds the configuration. A missing yaml file or .env file is not an
// error.
func Load(ctx context.Context, yamlPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	if productionEnv() && os.Getenv("SSM_PATH") != "" {
		client, err := newSSMClient(ctx, os.Getenv("AWS_REGION"))
		if err != nil {
			return nil, err
		}
		if _, err := LoadSSM(ctx, client, os.Getenv("SSM_PATH")); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	if yamlPath != "" {
		file, err := os.ReadFile(yamlPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(file, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", yamlPath, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, err
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// productionEnv reads ENV before any file is loaded, so SSM can seed the
// rest. An unset ENV means production, as in Default.
func productionEnv() bool {
	env, ok := os.LookupEnv("ENV")
	return !ok || env == "" || env == "production"
}

// Validate checks the settings against their tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnv overrides each field whose yaml key is set in the environment.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		key := t.Field(i).Tag.Get("yaml")
		raw, ok := lookup(key)
		if !ok {
			continue
		}
		if err := setField(v.Field(i), strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func setField(f reflect.Value, raw string) error {
	switch {
	case f.Type() == durationType:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		f.SetInt(int64(d))
	case f.Kind() == reflect.String:
		f.SetString(raw)
	case f.Kind() == reflect.Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		f.SetInt(int64(n))
	case f.Kind() == reflect.Float64:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		f.SetFloat(n)
	case f.Kind() == reflect.Slice && f.Type().Elem().Kind() == reflect.String:
		f.Set(reflect.ValueOf(splitList(raw)))
	default:
		return fmt.Errorf("unsupported field type %s", f.Type())
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var newSSMClient = func(ctx context.Context, region string) (ssm.GetParametersByPathAPIClient, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}
	return ssm.NewFromConfig(cfg), nil
}

// LoadSSM exports every parameter under path into the environment, named by
// the part of its name after the path. It returns how many were set.
func LoadSSM(ctx context.Context, client ssm.GetParametersByPathAPIClient, path string) (int, error) {
	prefix := strings.TrimRight(path, "/") + "/"
	pages := ssm.NewGetParametersByPathPaginator(client, &ssm.GetParametersByPathInput{
		Path:           aws.String(strings.TrimRight(path, "/")),
		WithDecryption: aws.Bool(true),
		Recursive:      aws.Bool(true),
	})

	n := 0
	for pages.HasMorePages() {
		out, err := pages.NextPage(ctx)
		if err != nil {
			return n, fmt.Errorf("unable to load parameters from %s: %w", path, err)
		}
		for _, p := range out.Parameters {
			key := strings.TrimPrefix(aws.ToString(p.Name), prefix)
			if err := os.Setenv(key, aws.ToString(p.Value)); err != nil {
				return n, fmt.Errorf("unable to set %s: %w", key, err)
			}
			n++
		}
	}
	return n, nil
}
