// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package main

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/decred/slog"
	"sharder.org/pocscore/server/score"
)

func Test_normalizeNetworkAddress(t *testing.T) {
	tests := []struct {
		listen  string
		want    string
		wantErr bool
	}{
		{
			listen: "[::1]",
			want:   "[::1]:7290",
		},
		{
			listen: "[::]:",
			want:   "[::]:7290",
		},
		{
			listen: "",
			want:   "127.0.0.1:7290",
		},
		{
			listen: "127.0.0.2",
			want:   "127.0.0.2:7290",
		},
		{
			listen: ":7222",
			want:   "127.0.0.1:7222",
		},
		{
			listen:  "http://127.0.0.1:80",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.listen, func(t *testing.T) {
			got, err := normalizeNetworkAddress(tt.listen, defaultAPIHost, defaultAPIPort)
			if (err != nil) != tt.wantErr {
				t.Errorf("normalizeNetworkAddress() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("normalizeNetworkAddress() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelectNetwork(t *testing.T) {
	tests := []struct {
		testnet, simnet bool
		want            string
		wantErr         bool
	}{
		{want: "mainnet"},
		{testnet: true, want: "testnet"},
		{simnet: true, want: "simnet"},
		{testnet: true, simnet: true, wantErr: true},
	}
	for _, tt := range tests {
		got, err := selectNetwork(tt.testnet, tt.simnet)
		if (err != nil) != tt.wantErr {
			t.Fatalf("selectNetwork(%v, %v) error = %v, wantErr %v", tt.testnet, tt.simnet, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("selectNetwork(%v, %v) = %q, want %q", tt.testnet, tt.simnet, got, tt.want)
		}
	}
}

func TestCleanAndExpandPath(t *testing.T) {
	if p := cleanAndExpandPath(""); p != "" {
		t.Fatalf("empty path expanded to %q", p)
	}
	t.Setenv("POCSCORED_TEST_DIR", "/tmp/pocscored")
	if p := cleanAndExpandPath("$POCSCORED_TEST_DIR/a/../b"); p != filepath.Clean("/tmp/pocscored/b") {
		t.Fatalf("wrong expansion %q", p)
	}
	if p := cleanAndExpandPath("~/x"); p == "~/x" || filepath.Base(p) != "x" {
		t.Fatalf("home directory not expanded: %q", p)
	}
}

func TestLoadConfig(t *testing.T) {
	appData := t.TempDir()
	confPath := filepath.Join(appData, defaultConfigFilename)
	err := os.WriteFile(confPath, []byte("maxdisktb=50\nhwforkheight=1000\napilisten=:8000\n"), 0600)
	if err != nil {
		t.Fatalf("error writing config file: %v", err)
	}
	defer func() {
		if logRotator != nil {
			logRotator.Close()
			logRotator = nil
		}
	}()

	cfg, err := loadConfig([]string{
		"--appdata=" + appData,
		"--simnet",
		"--hwforkheight=2000",
		"--debuglevel=warn,SCOR=trace",
		"--replay=" + filepath.Join(appData, "log.jsonl"),
	})
	if err != nil {
		t.Fatalf("loadConfig error: %v", err)
	}
	if cfg.Network != "simnet" {
		t.Fatalf("wrong network %q", cfg.Network)
	}
	if cfg.DataDir != filepath.Join(appData, defaultDataDirname, "simnet") {
		t.Fatalf("wrong data dir %q", cfg.DataDir)
	}
	if _, err := os.Stat(cfg.DataDir); err != nil {
		t.Fatalf("data dir not created: %v", err)
	}
	if cfg.DBPath != filepath.Join(cfg.DataDir, defaultDBFilename) {
		t.Fatalf("wrong db path %q", cfg.DBPath)
	}
	if _, err := os.Stat(filepath.Join(appData, defaultLogDirname, "simnet", defaultLogFilename)); err != nil {
		t.Fatalf("log file not created: %v", err)
	}
	// Command line beats the config file.
	if cfg.HardwareForkHeight != 2000 {
		t.Fatalf("wrong hardware fork height %d", cfg.HardwareForkHeight)
	}
	if cfg.MaxDiskTB != 50 {
		t.Fatalf("wrong max disk TB %d", cfg.MaxDiskTB)
	}
	if cfg.APIListen != "127.0.0.1:8000" {
		t.Fatalf("wrong api address %q", cfg.APIListen)
	}
	if cfg.ReplayPath != filepath.Join(appData, "log.jsonl") {
		t.Fatalf("wrong replay path %q", cfg.ReplayPath)
	}
	if cfg.LogMaker.DefaultLevel != slog.LevelWarn || cfg.LogMaker.Levels["SCOR"] != slog.LevelTrace {
		t.Fatalf("wrong log levels %v %v", cfg.LogMaker.DefaultLevel, cfg.LogMaker.Levels)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	defer func() {
		if logRotator != nil {
			logRotator.Close()
			logRotator = nil
		}
	}()
	tests := []struct {
		name string
		args []string
	}{
		{"two networks", []string{"--testnet", "--simnet"}},
		{"missing config file", []string{"--configfile=nope.conf"}},
		{"max disk", []string{"--maxdisktb=0"}},
		{"max disk limit", []string{"--maxdisktb=" + strconv.FormatInt(score.MaxDiskTBLimit+1, 10)}},
		{"fork height", []string{"--hwforkheight=-1"}},
		{"zero fork height", []string{"--hwforkheight=0"}},
		{"subsystem", []string{"--debuglevel=NOPE=trace"}},
		{"listen", []string{"--apilisten=http://x"}},
	}
	for _, tt := range tests {
		args := append([]string{"--appdata=" + t.TempDir()}, tt.args...)
		if _, err := loadConfig(args); err == nil {
			t.Fatalf("%s: no error", tt.name)
		}
	}
}

func TestParseAndSetDebugLevels(t *testing.T) {
	lm, err := parseAndSetDebugLevels("debug,DB=trace")
	if err != nil {
		t.Fatalf("parseAndSetDebugLevels error: %v", err)
	}
	if lm.DefaultLevel != slog.LevelDebug || lm.Levels["DB"] != slog.LevelTrace {
		t.Fatalf("wrong levels")
	}
	if log.Level() != slog.LevelDebug {
		t.Fatalf("MAIN logger not installed")
	}
	if _, err = parseAndSetDebugLevels("bogus"); err == nil {
		t.Fatalf("no error for invalid level")
	}
	subs := supportedSubsystems()
	if len(subs) != 4 || subs[0] != "API" || subs[3] != "SCOR" {
		t.Fatalf("wrong subsystems %v", subs)
	}
}
