// Package config provides centralized management for application settings, defaults, and the Viper-based configuration engine.
package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/anisan-cli/reelplay/constant"
	"github.com/anisan-cli/reelplay/filesystem"
	"github.com/anisan-cli/reelplay/where"
	"github.com/joho/godotenv"
	levenshtein "github.com/ka-weihe/fast-levenshtein"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// EnvKeyReplacer is a strings.Replacer used to normalize configuration keys into environment variable naming conventions.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// Setup initializes the global configuration state, including defaults, environment bindings, and localized file resolution.
func Setup() error {
	if err := loadDotEnv(); err != nil {
		return err
	}

	viper.SetConfigName(constant.Reelplay)
	viper.SetConfigType("toml")
	viper.SetFs(filesystem.API())
	viper.AddConfigPath(where.Config())

	// Synchronize environment variable bindings.
	viper.SetEnvPrefix(constant.Reelplay)
	viper.SetEnvKeyReplacer(EnvKeyReplacer)
	for _, env := range EnvExposed {
		viper.MustBindEnv(env)
	}

	// Initialize factory default values.
	viper.SetTypeByDefaultValue(true)
	for name, field := range Default {
		viper.SetDefault(name, field.Value)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}

	return nil
}

// loadDotEnv exports the variables of .env files in the working directory and the configuration
// directory. Variables already set in the environment win; missing files are skipped.
func loadDotEnv() error {
	for _, path := range []string{".env", where.DotEnv()} {
		file, err := filesystem.API().Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}

		env, err := godotenv.Parse(file)
		_ = file.Close()
		if err != nil {
			return err
		}

		for name, value := range env {
			if _, ok := lookupEnv(name); !ok {
				lo.Must0(setEnv(name, value))
			}
		}
	}
	return nil
}

// Closest returns the registered key closest to an unknown one.
func Closest(unknown string) string {
	return lo.MinBy(lo.Keys(Default), func(a, b string) bool {
		return levenshtein.Distance(unknown, a) < levenshtein.Distance(unknown, b)
	})
}
