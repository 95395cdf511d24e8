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
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sessionwire/sessionwire"
	"github.com/sessionwire/sessionwire/internal/assert"
	"gopkg.in/yaml.v3"
)

const aliceYAML = `
username: alice
password: secret
authorities:
  - ROLE_USER
  - ROLE_ADMIN
`

const aliceHex = "0001097072696e636970616c120673656372657405616c696365021009524f4c455f55534552100a524f4c455f41444d494e01010101"

func runCommand(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestEncode(t *testing.T) {
	t.Setenv(envConfig, "")
	t.Setenv(envLogLevel, "")
	out, _, err := runCommand(t, aliceYAML, "encode")
	assert.Nil(t, err)
	assert.Equal(t, strings.TrimSpace(out), aliceHex)
}

func TestEncodeDecode(t *testing.T) {
	t.Setenv(envConfig, "")
	t.Setenv(envLogLevel, "")
	input := `
username: bob
password: hunter2
account_non_locked: false
authorities:
  - ROLE_USER
  - role: ROLE_OPS
    attributes:
      tenant: acme
`
	for _, compression := range []string{"none", "gzip", "zstd", "lz4"} {
		for _, format := range []string{formatHex, formatBase64} {
			blob, _, err := runCommand(t, input, "encode", "--compression", compression, "--format", format)
			assert.Nil(t, err, assert.Sprintf("encode %s/%s", compression, format))

			out, _, err := runCommand(t, blob, "decode", "--format", format)
			assert.Nil(t, err, assert.Sprintf("decode %s/%s", compression, format))
			var doc map[string]principalDescriptor
			assert.Nil(t, yaml.Unmarshal([]byte(out), &doc))
			assert.Equal(t, doc["principal"], principalDescriptor{
				Username:              "bob",
				Password:              "[PROTECTED]",
				Enabled:               boolPtr(true),
				AccountNonExpired:     boolPtr(true),
				AccountNonLocked:      boolPtr(false),
				CredentialsNonExpired: boolPtr(true),
				Authorities: []authorityDescriptor{
					{Role: "ROLE_USER"},
					{Role: "ROLE_OPS", Attributes: map[string]string{"tenant": "acme"}},
				},
			})
		}
	}
}

func TestDecodeShowPassword(t *testing.T) {
	t.Setenv(envConfig, "")
	t.Setenv(envLogLevel, "")
	out, _, err := runCommand(t, aliceHex, "decode", "--show-password")
	assert.Nil(t, err)
	assert.True(t, strings.Contains(out, "password: secret"), assert.Sprintf("output:\n%s", out))

	out, _, err = runCommand(t, aliceHex, "decode")
	assert.Nil(t, err)
	assert.False(t, strings.Contains(out, "secret"))
}

func TestDecodeCorrupt(t *testing.T) {
	t.Setenv(envConfig, "")
	t.Setenv(envLogLevel, "")
	truncated := aliceHex[:len(aliceHex)-2]
	_, stderr, err := runCommand(t, truncated, "decode")
	assert.Equal(t, sessionwire.CodeOf(err), sessionwire.CodeCorruptData)
	assert.True(t, strings.Contains(stderr, "decode failed"), assert.Sprintf("stderr:\n%s", stderr))

	_, _, err = runCommand(t, "zz", "decode")
	assert.NotNil(t, err)
}

func TestTags(t *testing.T) {
	t.Setenv(envConfig, "")
	out, _, err := runCommand(t, "", "tags")
	assert.Nil(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, lines, []string{
		"1\tstring",
		"2\tint64",
		"3\tbool",
		"4\t[]uint8",
		"16\tsessionwire.SimpleAuthority",
		"17\t*sessionwire.AttributeAuthority",
		"18\t*sessionwire.Principal",
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv(envLogLevel, "")
	path := filepath.Join(t.TempDir(), "principalctl.toml")
	assert.Nil(t, os.WriteFile(path, []byte(`
compression = "zstd"
format = "base64"
attribute = "SPRING_SECURITY_CONTEXT"
`), 0o600))
	t.Setenv(envConfig, path)

	cfg, err := loadConfig(path)
	assert.Nil(t, err)
	assert.Equal(t, cfg.Compression, "zstd")
	assert.Equal(t, cfg.Format, formatBase64)
	assert.Equal(t, cfg.Attribute, "SPRING_SECURITY_CONTEXT")
	assert.Equal(t, cfg.MaxDecodedBytes, defaultConfig().MaxDecodedBytes)

	out, _, err := runCommand(t, aliceYAML, "encode")
	assert.Nil(t, err)
	blob, err := base64.StdEncoding.DecodeString(strings.TrimSpace(out))
	assert.Nil(t, err)
	assert.Equal(t, blob[0], byte(0)) // too small to be worth compressing
	assert.True(t, bytes.Contains(blob, []byte("SPRING_SECURITY_CONTEXT")))

	// Flags win over the file.
	out, _, err = runCommand(t, aliceYAML, "encode", "--format", "hex", "--attribute", "principal")
	assert.Nil(t, err)
	assert.Equal(t, strings.TrimSpace(out), aliceHex)
}

func TestConfigErrors(t *testing.T) {
	t.Setenv(envLogLevel, "")
	dir := t.TempDir()
	write := func(name, contents string) string {
		path := filepath.Join(dir, name)
		assert.Nil(t, os.WriteFile(path, []byte(contents), 0o600))
		return path
	}

	_, err := loadConfig(write("unknown.toml", `colour = "blue"`))
	assert.NotNil(t, err)
	_, err = loadConfig(write("level.toml", `log_level = "loud"`))
	assert.NotNil(t, err)
	_, err = loadConfig(write("syntax.toml", `format = `))
	assert.NotNil(t, err)
	_, err = loadConfig(filepath.Join(dir, "missing.toml"))
	assert.NotNil(t, err)

	cfg, err := loadConfig(write("format.toml", `format = "binary"`))
	assert.Nil(t, err)
	assert.NotNil(t, cfg.validate())

	t.Setenv(envConfig, "")
	_, _, err = runCommand(t, aliceYAML, "encode", "--compression", "brotli")
	assert.NotNil(t, err)
	_, _, err = runCommand(t, "", "frobnicate")
	assert.NotNil(t, err)
}

func TestLogLevelFromEnvironment(t *testing.T) {
	t.Setenv(envConfig, "")
	path := filepath.Join(t.TempDir(), "principalctl.toml")
	assert.Nil(t, os.WriteFile(path, []byte(`log_level = "error"`), 0o600))

	t.Setenv(envLogLevel, "")
	cfg, err := loadConfig(path)
	assert.Nil(t, err)
	assert.Equal(t, cfg.LogLevel, zerolog.ErrorLevel)

	t.Setenv(envLogLevel, "debug")
	cfg, err = loadConfig(path)
	assert.Nil(t, err)
	assert.Equal(t, cfg.LogLevel, zerolog.DebugLevel)

	_, stderr, err := runCommand(t, aliceYAML, "encode")
	assert.Nil(t, err)
	assert.True(t, strings.Contains(stderr, "encoded principal"), assert.Sprintf("stderr:\n%s", stderr))
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	for raw, want := range map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		" DEBUG ": zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"off":     zerolog.Disabled,
		"error":   zerolog.ErrorLevel,
	} {
		got, ok := parseLevel(raw)
		assert.True(t, ok, assert.Sprintf("parse %q", raw))
		assert.Equal(t, got, want)
	}
	_, ok := parseLevel("")
	assert.False(t, ok)
	_, ok = parseLevel("loud")
	assert.False(t, ok)
}
