// Copyright 2021-2024 The Connect Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"github.com/sessionwire/sessionwire/compress"
)

const (
	envConfig   = "PRINCIPALCTL_CONFIG"
	envLogLevel = "PRINCIPALCTL_LOG_LEVEL"

	formatHex    = "hex"
	formatBase64 = "base64"
)

type cliConfig struct {
	Compression     string
	Format          string
	Attribute       string
	LogLevel        zerolog.Level
	MaxDecodedBytes int64
}

func defaultConfig() cliConfig {
	return cliConfig{
		Compression:     compress.NameNone,
		Format:          formatHex,
		Attribute:       "principal",
		LogLevel:        zerolog.InfoLevel,
		MaxDecodedBytes: 64 << 20,
	}
}

type fileConfig struct {
	Compression     string `toml:"compression"`
	Format          string `toml:"format"`
	Attribute       string `toml:"attribute"`
	LogLevel        string `toml:"log_level"`
	MaxDecodedBytes int64  `toml:"max_decoded_bytes"`
}

// loadConfig reads path over the defaults. An empty path means no file. The
// log level environment variable wins over the file.
func loadConfig(path string) (cliConfig, error) {
	cfg := defaultConfig()
	if path != "" {
		var raw fileConfig
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return cliConfig{}, fmt.Errorf("load config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return cliConfig{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
		}
		if meta.IsDefined("compression") {
			cfg.Compression = strings.TrimSpace(raw.Compression)
		}
		if meta.IsDefined("format") {
			cfg.Format = strings.TrimSpace(raw.Format)
		}
		if meta.IsDefined("attribute") {
			cfg.Attribute = strings.TrimSpace(raw.Attribute)
		}
		if meta.IsDefined("log_level") {
			lvl, ok := parseLevel(raw.LogLevel)
			if !ok {
				return cliConfig{}, fmt.Errorf("parse log_level: unknown level %q", raw.LogLevel)
			}
			cfg.LogLevel = lvl
		}
		if meta.IsDefined("max_decoded_bytes") {
			cfg.MaxDecodedBytes = raw.MaxDecodedBytes
		}
	}
	if lvl, ok := parseLevel(os.Getenv(envLogLevel)); ok {
		cfg.LogLevel = lvl
	}
	return cfg, nil
}

func (c cliConfig) validate() error {
	switch c.Format {
	case formatHex, formatBase64:
	default:
		return fmt.Errorf("unknown format %q", c.Format)
	}
	switch c.Compression {
	case compress.NameNone, compress.NameGzip, compress.NameZstd, compress.NameLZ4:
	default:
		return fmt.Errorf("unknown compression %q", c.Compression)
	}
	if c.Attribute == "" {
		return fmt.Errorf("attribute name is empty")
	}
	return nil
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}
