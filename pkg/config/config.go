// Package config loads process configuration from the environment.
//
// Values come from environment variables; a .env file in the working
// directory (or the files passed to Load) fills in variables that are not
// set yet. Structs declare their variables with caarlos0/env tags:
//
//	type Config struct {
//	    Addr   string `env:"HTTP_ADDR" envDefault:":8080"`
//	    Secret string `env:"COOKIE_SECRET,required"`
//	}
//
//	cfg, err := config.Load[Config]()
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrParsingConfig = errors.New("config: failed to parse configuration")
	ErrLoadingEnv    = errors.New("config: failed to load env file")
)

// Load reads the env files and parses the environment into a new T.
// Missing files are ignored; without files ".env" is tried.
func Load[T any](files ...string) (T, error) {
	var cfg T
	if err := loadFiles(files); err != nil {
		return cfg, err
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}

// MustLoad is like Load but panics on error.
func MustLoad[T any](files ...string) T {
	cfg, err := Load[T](files...)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}

func loadFiles(files []string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		existing = append(existing, f)
	}
	if len(existing) == 0 {
		return nil
	}
	// godotenv.Load never overrides variables that are already set.
	if err := godotenv.Load(existing...); err != nil {
		return errors.Join(ErrLoadingEnv, err)
	}
	return nil
}
