package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Version is set at build time via -ldflags
var Version = "dev"

var DefaultHiddenNames = []string{"微信支付", "微信收款助手"}

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	ConfigFile string `long:"config" env:"CONFIG_PATH" default:"config.yaml" description:"YAML settings file (missing file is ignored)"`
	EnvFile    string `long:"env-file" env:"ENV_FILE" default:".env" description:"dotenv file loaded before parsing (missing file is ignored)"`

	// Snapshot sources; empty values fall back to the settings file
	AccountsPath string `long:"accounts" env:"WXPY_PKL_PATH" description:"Account list snapshot (JSON, or .pkl with an _extracted.json sibling)"`
	MappingPath  string `long:"mapping" env:"WXPY_PUID_PKL_PATH" description:"Internal id to puid mapping snapshot"`
	StorePath    string `long:"store" env:"TGDATA_DB_PATH" description:"SQLite message log database"`
	InitStore    bool   `long:"init-store" env:"INIT_STORE" description:"Create the msglog schema when missing (development databases)"`

	OriginPrefix string `long:"origin-prefix" env:"ORIGIN_PREFIX" default:"blueset.wechat" description:"Namespace prefix of msglog origin identifiers"`
	OriginKey    string `long:"origin-key" env:"ORIGIN_KEY" default:"puid" choice:"puid" choice:"internal_id" description:"Account field joined with msglog origin identifiers"`

	// HTTP server
	Host          string `long:"host" env:"HOST" description:"Listen host (default 0.0.0.0)"`
	Port          string `long:"port" env:"PORT" description:"HTTP server port (default 8080)"`
	BaseUrl       string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://feeds.example.com)"`
	ExposeAvatars bool   `long:"expose-avatars" env:"EXPOSE_AVATARS" description:"Include head_img in account listings"`
	DefaultLimit  int    `long:"default-limit" env:"DEFAULT_LIMIT" default:"100" description:"Feed row limit when the request does not set one"`
	MaxLimit      int    `long:"max-limit" env:"MAX_LIMIT" default:"1000" description:"Upper bound for the feed row limit; larger requests are clamped"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" description:"Timezone for timestamps (e.g., Asia/Shanghai); system default when empty"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return loadArgs(os.Args[1:])
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func loadArgs(args []string) (*Cfg, error) {
	loadEnvFile(args)

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	file, err := readFile(raw.ConfigFile)
	if err != nil {
		return nil, err
	}

	cfg := merge(raw, file)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

// loadEnvFile runs before flag parsing so values from the dotenv file
// are visible to go-flags env lookups. Existing variables are kept.
func loadEnvFile(args []string) {
	path := cmp.Or(os.Getenv("ENV_FILE"), ".env")
	for i, arg := range args {
		if arg == "--env-file" && i+1 < len(args) {
			path = args[i+1]
		}
		if value, ok := strings.CutPrefix(arg, "--env-file="); ok {
			path = value
		}
	}

	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Printf("Warning: failed to load env file '%s': %v\n", path, err)
	}
}

func readFile(path string) (*fileCfg, error) {
	var file fileCfg
	if path == "" {
		return &file, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &file, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}

	return &file, nil
}

func merge(raw rawCfg, file *fileCfg) *Cfg {
	var filePort string
	if file.Server.Port > 0 {
		filePort = strconv.Itoa(file.Server.Port)
	}

	hidden := file.HiddenNames
	if hidden == nil {
		hidden = DefaultHiddenNames
	}

	return &Cfg{
		AccountsPath:  cmp.Or(raw.AccountsPath, file.AccountsPath),
		MappingPath:   cmp.Or(raw.MappingPath, file.MappingPath),
		StorePath:     cmp.Or(raw.StorePath, file.StorePath),
		InitStore:     raw.InitStore,
		OriginPrefix:  raw.OriginPrefix,
		OriginKey:     raw.OriginKey,
		Host:          cmp.Or(raw.Host, file.Server.Host, "0.0.0.0"),
		Port:          cmp.Or(raw.Port, filePort, "8080"),
		BaseUrl:       cmp.Or(raw.BaseUrl, file.BaseUrl),
		ExposeAvatars: raw.ExposeAvatars,
		DefaultLimit:  raw.DefaultLimit,
		MaxLimit:      raw.MaxLimit,
		Language:      cmp.Or(file.Language, "zh-CN"),
		OPMLTitle:     cmp.Or(file.OPMLTitle, "WeChat MP RSS Feeds"),
		HiddenNames:   hidden,
		Groups:        file.Groups,
		Timezone:      raw.Timezone,
		Debug:         raw.Debug,
		Version:       GetVersion(),
	}
}

func validate(cfg *Cfg) error {
	requiredFields := map[string]string{
		"accounts path": cfg.AccountsPath,
		"mapping path":  cfg.MappingPath,
		"store path":    cfg.StorePath,
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	if cfg.DefaultLimit < 1 {
		return fmt.Errorf("default limit must be positive")
	}

	if cfg.MaxLimit < cfg.DefaultLimit {
		return fmt.Errorf("max limit %d is below default limit %d", cfg.MaxLimit, cfg.DefaultLimit)
	}

	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
