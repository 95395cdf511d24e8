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

// principalctl encodes principals into session blobs and inspects existing
// blobs. It uses the same engine registrations as a server would, so its
// output can be compared byte for byte with what a session store holds.
//
// Encode a YAML principal and print the blob as hex:
//
//	principalctl encode --in alice.yaml --compression zstd
//
// Decode a blob read from stdin:
//
//	principalctl decode --format base64 < blob.txt
//
// Defaults come from a TOML file named by --config or PRINCIPALCTL_CONFIG:
//
//	compression = "lz4"
//	format = "base64"
//	attribute = "SPRING_SECURITY_CONTEXT"
//	log_level = "debug"
//	max_decoded_bytes = 1048576
package main

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sessionwire/sessionwire"
	"github.com/sessionwire/sessionwire/transcoder"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const usage = `Usage: principalctl <command> [flags]

Commands:
  encode   read a YAML principal and print a session blob
  decode   read a session blob and print its attributes as YAML
  tags     list the engine's type registrations
`

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type command struct {
	flags        *pflag.FlagSet
	configPath   string
	compression  string
	format       string
	attribute    string
	in           string
	showPassword bool
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stdout, usage)
		return nil
	}
	name := args[0]
	cmd := &command{flags: pflag.NewFlagSet("principalctl "+name, pflag.ContinueOnError)}
	cmd.flags.SetOutput(stderr)
	cmd.flags.StringVar(&cmd.configPath, "config", os.Getenv(envConfig), "path to a TOML config file")
	cmd.flags.StringVar(&cmd.format, "format", "", "blob text format: hex or base64")
	switch name {
	case "encode":
		cmd.flags.StringVar(&cmd.compression, "compression", "", "none, gzip, zstd or lz4")
		cmd.flags.StringVar(&cmd.attribute, "attribute", "", "session attribute that holds the principal")
		cmd.flags.StringVarP(&cmd.in, "in", "i", "-", "YAML principal file, - for stdin")
	case "decode":
		cmd.flags.StringVarP(&cmd.in, "in", "i", "-", "blob file, - for stdin")
		cmd.flags.BoolVar(&cmd.showPassword, "show-password", false, "print passwords instead of masking them")
	case "tags":
	default:
		return fmt.Errorf("unknown command %q\n\n%s", name, usage)
	}
	if err := cmd.flags.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if extra := cmd.flags.Args(); len(extra) > 0 {
		return fmt.Errorf("unexpected argument %q", extra[0])
	}

	cfg, err := loadConfig(cmd.configPath)
	if err != nil {
		return err
	}
	cmd.override(&cfg)
	if err := cfg.validate(); err != nil {
		return err
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr, NoColor: true}).
		Level(cfg.LogLevel).
		With().Timestamp().Str("command", name).Logger()

	engine, err := newEngine(logger)
	if err != nil {
		return err
	}
	switch name {
	case "encode":
		return cmd.encode(engine, cfg, logger, stdin, stdout)
	case "decode":
		return cmd.decode(engine, cfg, logger, stdin, stdout)
	default:
		for _, reg := range engine.Registrations() {
			fmt.Fprintf(stdout, "%d\t%v\n", reg.Tag, reg.Type)
		}
		return nil
	}
}

// override applies flags that were set explicitly on top of the config file.
func (c *command) override(cfg *cliConfig) {
	if c.flags.Changed("compression") {
		cfg.Compression = c.compression
	}
	if c.flags.Changed("format") {
		cfg.Format = c.format
	}
	if c.flags.Changed("attribute") {
		cfg.Attribute = c.attribute
	}
}

func newEngine(logger zerolog.Logger) (*sessionwire.Engine, error) {
	return sessionwire.NewEngine(
		sessionwire.WithWarn(func(err error) {
			logger.Warn().Err(err).Msg("engine")
		}),
		sessionwire.WithCustomizations(
			sessionwire.AuthorityRegistration,
			sessionwire.PrincipalRegistration,
		),
	)
}

func (c *command) encode(engine *sessionwire.Engine, cfg cliConfig, logger zerolog.Logger, stdin io.Reader, stdout io.Writer) error {
	data, err := readInput(c.in, stdin)
	if err != nil {
		return err
	}
	principal, err := parseDescriptor(data)
	if err != nil {
		return err
	}
	tc, err := transcoder.New(engine,
		transcoder.WithCompression(cfg.Compression),
		transcoder.WithMaxDecodedBytes(cfg.MaxDecodedBytes),
	)
	if err != nil {
		return err
	}
	blob, err := tc.Encode(map[string]any{cfg.Attribute: principal})
	if err != nil {
		return err
	}
	logger.Debug().
		Str("username", principal.Username).
		Int("authorities", len(principal.Authorities)).
		Str("compression", cfg.Compression).
		Int("bytes", len(blob)).
		Msg("encoded principal")
	fmt.Fprintln(stdout, formatBlob(blob, cfg.Format))
	return nil
}

func (c *command) decode(engine *sessionwire.Engine, cfg cliConfig, logger zerolog.Logger, stdin io.Reader, stdout io.Writer) error {
	text, err := readInput(c.in, stdin)
	if err != nil {
		return err
	}
	blob, err := parseBlob(text, cfg.Format)
	if err != nil {
		return err
	}
	tc, err := transcoder.New(engine, transcoder.WithMaxDecodedBytes(cfg.MaxDecodedBytes))
	if err != nil {
		return err
	}
	attrs, err := tc.Decode(blob)
	if err != nil {
		logger.Error().
			Str("code", sessionwire.CodeOf(err).String()).
			Int("bytes", len(blob)).
			Msg("decode failed")
		return err
	}
	keys := make([]string, 0, len(attrs))
	for key := range attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	doc := make(map[string]any, len(attrs))
	for _, key := range keys {
		if principal, ok := attrs[key].(*sessionwire.Principal); ok {
			doc[key] = describe(principal, c.showPassword)
			continue
		}
		doc[key] = attrs[key]
	}
	logger.Debug().Strs("attributes", keys).Msg("decoded blob")
	encoder := yaml.NewEncoder(stdout)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return err
	}
	return encoder.Close()
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func formatBlob(blob []byte, format string) string {
	if format == formatBase64 {
		return base64.StdEncoding.EncodeToString(blob)
	}
	return hex.EncodeToString(blob)
}

func parseBlob(text []byte, format string) ([]byte, error) {
	trimmed := strings.TrimSpace(string(text))
	if format == formatBase64 {
		blob, err := base64.StdEncoding.DecodeString(trimmed)
		if err != nil {
			return nil, fmt.Errorf("parse base64 blob: %w", err)
		}
		return blob, nil
	}
	blob, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse hex blob: %w", err)
	}
	return blob, nil
}
