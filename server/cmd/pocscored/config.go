// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/decred/dcrd/dcrutil/v4"
	flags "github.com/jessevdk/go-flags"
	"sharder.org/pocscore/poc"
	"sharder.org/pocscore/server/score"
)

const (
	defaultConfigFilename = "pocscored.conf"
	defaultLogFilename    = "pocscored.log"
	defaultDBFilename     = "pocscore.db"
	defaultDataDirname    = "data"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultMaxLogZips     = 16
	defaultAPIHost        = "127.0.0.1"
	defaultAPIPort        = "7290"
)

var (
	defaultAppDataDir = dcrutil.AppDataDir("pocscored", false)
)

// scoredConf is the data that is required to run the daemon.
type scoredConf struct {
	Network            string
	DataDir            string
	DBPath             string
	APIListen          string
	NoAPI              bool
	ReplayPath         string
	HardwareForkHeight int64
	MaxDiskTB          int64
	LogMaker           *poc.LoggerMaker
}

type flagsData struct {
	// General application behavior
	AppDataDir  string `short:"A" long:"appdata" description:"Path to application home directory"`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir     string `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir      string `long:"logdir" description:"Directory to log output."`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
	MaxLogZips  int    `long:"maxlogzips" description:"The number of zipped log files created by the log rotator to be retained. Setting to 0 will keep all."`
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`

	Testnet bool `long:"testnet" description:"Use the test network (default mainnet)"`
	Simnet  bool `long:"simnet" description:"Use the simulation test network (default mainnet)"`

	APIListen string `long:"apilisten" description:"Address on which the score API should listen"`
	NoAPI     bool   `long:"noapi" description:"Disable the score API"`

	Replay       string `long:"replay" description:"Path to an attestation log to apply at startup"`
	HWForkHeight int64  `long:"hwforkheight" description:"First height scored with the terabyte disk capacity algorithm"`
	MaxDiskTB    int64  `long:"maxdisktb" description:"Upper bound of the terabyte disk capacity score"`
}

// cleanAndExpandPath expands environment variables and leading ~ in the passed
// path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Do not try to clean the empty string
	if path == "" {
		return ""
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows cmd.exe-style
	// %VARIABLE%, but the variables can still be expanded via POSIX-style
	// $VARIABLE.
	path = os.ExpandEnv(path)
	if !strings.HasPrefix(path, "~") {
		return filepath.Clean(path)
	}

	// Expand initial ~ to the current user's home directory, or ~otheruser to
	// otheruser's home directory.  On Windows, both forward and backward
	// slashes can be used.
	path = path[1:]

	var pathSeparators string
	if runtime.GOOS == "windows" {
		pathSeparators = string(os.PathSeparator) + "/"
	} else {
		pathSeparators = string(os.PathSeparator)
	}

	userName := ""
	if i := strings.IndexAny(path, pathSeparators); i != -1 {
		userName = path[:i]
		path = path[i:]
	}

	homeDir := ""
	var u *user.User
	var err error
	if userName == "" {
		u, err = user.Current()
	} else {
		u, err = user.Lookup(userName)
	}
	if err == nil {
		homeDir = u.HomeDir
	}
	// Fallback to CWD if user lookup fails or user has no home directory.
	if homeDir == "" {
		homeDir = "."
	}

	return filepath.Join(homeDir, path)
}

// normalizeNetworkAddress checks for a valid local network address format and
// adds default host and port if not present. Invalidates addresses that include
// a protocol identifier.
func normalizeNetworkAddress(a, defaultHost, defaultPort string) (string, error) {
	if strings.Contains(a, "://") {
		return a, fmt.Errorf("address %s contains a protocol identifier, which is not allowed", a)
	}
	if a == "" {
		return net.JoinHostPort(defaultHost, defaultPort), nil
	}
	host, port, err := net.SplitHostPort(a)
	if err != nil {
		if strings.Contains(err.Error(), "missing port in address") {
			normalized := a + ":" + defaultPort
			host, port, err = net.SplitHostPort(normalized)
			if err != nil {
				return a, fmt.Errorf("unable to address %s after port resolution: %v", normalized, err)
			}
		} else {
			return a, fmt.Errorf("unable to normalize address %s: %v", a, err)
		}
	}
	if host == "" {
		host = defaultHost
	}
	if port == "" {
		port = defaultPort
	}
	return net.JoinHostPort(host, port), nil
}

// selectNetwork returns the data directory namespace for the network flags.
func selectNetwork(testnet, simnet bool) (string, error) {
	switch {
	case testnet && simnet:
		return "", errors.New("both testnet and simnet flags specified")
	case testnet:
		return "testnet", nil
	case simnet:
		return "simnet", nil
	}
	return "mainnet", nil
}

// loadConfig initializes and parses the config using a config file and command
// line options.
func loadConfig(args []string) (*scoredConf, error) {
	// Default config
	cfg := flagsData{
		AppDataDir: defaultAppDataDir,
		// Defaults for ConfigFile, LogDir, and DataDir are set relative to
		// AppDataDir. They are not to be set here.
		MaxLogZips:   defaultMaxLogZips,
		DebugLevel:   defaultLogLevel,
		HWForkHeight: score.DefaultHardwareForkHeight,
		MaxDiskTB:    score.DefaultMaxDiskTB,
	}

	// Pre-parse the command line options to see if an alternative config file
	// or the version flag was specified. Any errors aside from the help message
	// error can be ignored here since they will be caught by the final parse
	// below.
	var preCfg flagsData // zero values as defaults
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		var e *flags.Error
		if errors.As(err, &e) && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			os.Exit(0)
		}
	}

	// Show the version and exit if the version flag was specified.
	if preCfg.ShowVersion {
		fmt.Printf("%s version %s (Go version %s %s/%s)\n", appName,
			Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	// Special show command to list supported subsystems and exit.
	if preCfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	// If a non-default appdata folder is specified on the command line, the
	// default config file location is under it.
	if preCfg.AppDataDir != "" {
		cfg.AppDataDir, err = filepath.Abs(cleanAndExpandPath(preCfg.AppDataDir))
		if err != nil {
			return nil, fmt.Errorf("unable to determine working directory: %w", err)
		}
	}
	isDefaultConfigFile := preCfg.ConfigFile == ""
	if isDefaultConfigFile {
		preCfg.ConfigFile = filepath.Join(cfg.AppDataDir, defaultConfigFilename)
	} else {
		preCfg.ConfigFile = cleanAndExpandPath(preCfg.ConfigFile)
		if !filepath.IsAbs(preCfg.ConfigFile) {
			preCfg.ConfigFile = filepath.Join(cfg.AppDataDir, preCfg.ConfigFile)
		}
	}

	// Config file name for logging.
	configFile := "NONE (defaults)"

	// Load additional config from file.
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := os.Stat(preCfg.ConfigFile); os.IsNotExist(err) {
		// Non-default config file must exist.
		if !isDefaultConfigFile {
			return nil, err
		}
	} else {
		err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
		if err != nil {
			parser.WriteHelp(os.Stderr)
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
		configFile = preCfg.ConfigFile
	}

	// Parse command line options again to ensure they take precedence.
	_, err = parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	network, err := selectNetwork(cfg.Testnet, cfg.Simnet)
	if err != nil {
		return nil, err
	}

	if err = os.MkdirAll(cfg.AppDataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}

	// If datadir or logdir are defaults or non-default relative paths, prepend
	// the appdata directory.
	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(cfg.AppDataDir, defaultDataDirname)
	} else if !filepath.IsAbs(cfg.DataDir) {
		cfg.DataDir = filepath.Join(cfg.AppDataDir, cfg.DataDir)
	}
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(cfg.AppDataDir, defaultLogDirname)
	} else if !filepath.IsAbs(cfg.LogDir) {
		cfg.LogDir = filepath.Join(cfg.AppDataDir, cfg.LogDir)
	}

	// Namespace the data and log directories per network.
	cfg.DataDir = filepath.Join(cfg.DataDir, network)
	if err = os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, err
	}
	cfg.LogDir = filepath.Join(cfg.LogDir, network)

	if cfg.Replay != "" {
		cfg.Replay = cleanAndExpandPath(cfg.Replay)
	}

	if cfg.HWForkHeight <= 0 {
		return nil, fmt.Errorf("hwforkheight %d must be positive", cfg.HWForkHeight)
	}
	if cfg.MaxDiskTB <= 0 || cfg.MaxDiskTB > score.MaxDiskTBLimit {
		return nil, fmt.Errorf("maxdisktb %d out of range (0, %d]", cfg.MaxDiskTB, score.MaxDiskTBLimit)
	}

	apiListen, err := normalizeNetworkAddress(cfg.APIListen, defaultAPIHost, defaultAPIPort)
	if err != nil {
		return nil, err
	}

	// Initialize log rotation. After log rotation has been initialized, the
	// logger variables may be used. This creates the LogDir if needed.
	if cfg.MaxLogZips < 0 {
		cfg.MaxLogZips = 0
	}
	if err = initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename), cfg.MaxLogZips); err != nil {
		return nil, err
	}

	// Parse, validate, and set debug log level(s).
	logMaker, err := parseAndSetDebugLevels(cfg.DebugLevel)
	if err != nil {
		parser.WriteHelp(os.Stderr)
		return nil, err
	}

	log.Infof("App data folder: %s", cfg.AppDataDir)
	log.Infof("Data folder:     %s", cfg.DataDir)
	log.Infof("Log folder:      %s", cfg.LogDir)
	log.Infof("Config file:     %s", configFile)

	return &scoredConf{
		Network:            network,
		DataDir:            cfg.DataDir,
		DBPath:             filepath.Join(cfg.DataDir, defaultDBFilename),
		APIListen:          apiListen,
		NoAPI:              cfg.NoAPI,
		ReplayPath:         cfg.Replay,
		HardwareForkHeight: cfg.HWForkHeight,
		MaxDiskTB:          cfg.MaxDiskTB,
		LogMaker:           logMaker,
	}, nil
}
