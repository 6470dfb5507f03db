// Package config parses command line flags for the server. Every flag falls
// back to a SECUREDOCS_* environment variable, and an explicit flag wins over
// the environment.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend names a document store implementation.
const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

const envPrefix = "SECUREDOCS_"

type Config struct {
	Port           string
	Backend        string
	DataDir        string
	BackgroundSave time.Duration
	MongoURI       string
	Database       string
	PostgresDSN    string
	RedisURL       string
	KeyFile        string
	Encrypt        bool
	Validate       bool
}

// Load parses args (without the program name) using lookup for environment
// fallbacks. Pass os.LookupEnv in production.
func Load(args []string, lookup func(string) (string, bool)) (*Config, error) {
	fs := flag.NewFlagSet("go-securedocs", flag.ContinueOnError)
	fs.Usage = func() { usage(fs) }

	cfg := &Config{}
	fs.StringVar(&cfg.Port, "port", "8080", "Server port")
	fs.StringVar(&cfg.Backend, "backend", BackendMemory, "Document store: memory, mongo, postgres or redis")
	fs.StringVar(&cfg.DataDir, "data-dir", "", "Data directory for the memory backend. Empty disables persistence.")
	fs.DurationVar(&cfg.BackgroundSave, "background-save", 0, "Background save interval for the memory backend (e.g., 5m, 30s). Set to 0 to save after every write.")
	fs.StringVar(&cfg.MongoURI, "mongo-uri", "mongodb://localhost:27017", "MongoDB connection URI")
	fs.StringVar(&cfg.Database, "database", "securedocs", "MongoDB database name")
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", "", "PostgreSQL connection string")
	fs.StringVar(&cfg.RedisURL, "redis-url", "redis://localhost:6379/0", "Redis connection URL")
	fs.StringVar(&cfg.KeyFile, "key-file", "data/secret.key", "Encryption key file, generated on first start")
	fs.BoolVar(&cfg.Encrypt, "encrypt", true, "Encrypt document fields at rest")
	fs.BoolVar(&cfg.Validate, "validate", true, "Validate writes against collection schemas")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if err := applyEnv(fs, lookup); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EnvName returns the environment variable consulted for a flag.
func EnvName(flagName string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// applyEnv sets every flag not given on the command line from the environment.
func applyEnv(fs *flag.FlagSet, lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	var errs []error
	fs.VisitAll(func(f *flag.Flag) {
		if explicit[f.Name] {
			return
		}
		value, ok := lookup(EnvName(f.Name))
		if !ok {
			return
		}
		if err := f.Value.Set(value); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s=%q: %w", EnvName(f.Name), value, err))
		}
	})
	return errors.Join(errs...)
}

func (c *Config) validate() error {
	if _, err := strconv.ParseUint(c.Port, 10, 16); err != nil {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	if c.BackgroundSave < 0 {
		return fmt.Errorf("background-save must not be negative")
	}
	switch c.Backend {
	case BackendMemory:
		if c.BackgroundSave > 0 && c.DataDir == "" {
			return fmt.Errorf("background-save requires data-dir")
		}
	case BackendMongo:
		if c.MongoURI == "" || c.Database == "" {
			return fmt.Errorf("mongo backend requires mongo-uri and database")
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres backend requires postgres-dsn")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("redis backend requires redis-url")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Encrypt && c.KeyFile == "" {
		return fmt.Errorf("encrypt requires key-file")
	}
	return nil
}

func usage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintf(out, "Usage of %s:\n", os.Args[0])
	fmt.Fprintf(out, "\ngo-securedocs serves schema-validated, field-encrypted applicant records over HTTP.\n\n")
	fmt.Fprintf(out, "Options:\n")
	fs.PrintDefaults()
	fmt.Fprintf(out, "\nEvery option can also be set as %s<NAME>, e.g. %s.\n", envPrefix, EnvName("postgres-dsn"))
	fmt.Fprintf(out, "\nExamples:\n")
	fmt.Fprintf(out, "  %s                                         # In-memory, not persisted\n", os.Args[0])
	fmt.Fprintf(out, "  %s -data-dir /var/lib/securedocs           # Memory backend saved to disk\n", os.Args[0])
	fmt.Fprintf(out, "  %s -backend mongo -mongo-uri mongodb://db  # MongoDB\n", os.Args[0])
	fmt.Fprintf(out, "\nSafety Note:\n")
	fmt.Fprintf(out, "  Losing the key file makes every stored document unreadable. Back it up.\n")
}
