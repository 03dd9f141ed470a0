package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Venue string

const (
	VenueHyperliquid Venue = "hyperliquid"
	VenueAlpaca      Venue = "alpaca"
)

type Mode string

const (
	ModeLive  Mode = "live"
	ModePaper Mode = "paper"
)

type Config struct {
	Venue   Venue  `yaml:"venue"`
	Mode    Mode   `yaml:"mode"`
	Symbol  string `yaml:"symbol"`
	Testnet bool   `yaml:"testnet"`

	HyperliquidAPIURL string `yaml:"hyperliquid_api_url"`
	HyperliquidWSURL  string `yaml:"hyperliquid_ws_url"`
	AlpacaBaseURL     string `yaml:"alpaca_base_url"`
	AlpacaFeed        string `yaml:"alpaca_feed"`

	WindowSize      int           `yaml:"window_size"`
	UpperBand       float64       `yaml:"upper_band"`
	LowerBand       float64       `yaml:"lower_band"`
	PriceDecimals   int           `yaml:"price_decimals"`
	GracePeriod     time.Duration `yaml:"grace_period"`
	RepriceSlippage float64       `yaml:"reprice_slippage"`
	StrictCancel    bool          `yaml:"strict_cancel"`
	TickPolicy      string        `yaml:"tick_policy"`

	SizePolicy      string  `yaml:"size_policy"`
	FixedSize       float64 `yaml:"fixed_size"`
	LotSize         float64 `yaml:"lot_size"`
	MinQuoteBalance float64 `yaml:"min_quote_balance"`
	MinBaseBalance  float64 `yaml:"min_base_balance"`
	KillSwitch      bool    `yaml:"kill_switch"`

	PaperBaseBalance  float64 `yaml:"paper_base_balance"`
	PaperQuoteBalance float64 `yaml:"paper_quote_balance"`

	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	DecisionsPath     string        `yaml:"decisions_path"`
	StatusAddr        string        `yaml:"status_addr"`

	LogLevel      string `yaml:"log_level"`
	LogFile       string `yaml:"log_file"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`
	LogCompress   bool   `yaml:"log_compress"`

	// secrets are only read from the environment
	PrivateKey     string `yaml:"-"`
	AccountAddress string `yaml:"-"`
	APIKey         string `yaml:"-"`
	APISecret      string `yaml:"-"`
}

func Default() Config {
	return Config{
		Venue:             VenueHyperliquid,
		Mode:              ModePaper,
		Symbol:            "PURR/USDC",
		AlpacaBaseURL:     "https://paper-api.alpaca.markets",
		AlpacaFeed:        "us",
		WindowSize:        500,
		UpperBand:         1.001,
		LowerBand:         0.999,
		PriceDecimals:     5,
		GracePeriod:       30 * time.Second,
		RepriceSlippage:   0.01,
		TickPolicy:        "drop",
		SizePolicy:        "balance",
		LotSize:           1,
		MinQuoteBalance:   100,
		MinBaseBalance:    100,
		PaperQuoteBalance: 1000,
		ReconcileInterval: 30 * time.Second,
		DecisionsPath:     "decisions.ndjson",
		LogLevel:          "info",
		LogMaxSizeMB:      100,
		LogMaxBackups:     3,
		LogMaxAgeDays:     28,
	}
}

// Assets splits the symbol into its base and quote asset.
func (c Config) Assets() (string, string) {
	base, quote, _ := strings.Cut(c.Symbol, "/")
	return base, quote
}

func Load() (Config, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs layers defaults, the YAML file, the environment and the flags
// explicitly present in args, in that order.
func LoadArgs(args []string) (Config, error) {
	files, err := parseFileFlags(args, os.Stderr)
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(files.envFile); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if files.config != "" {
		if err := loadFile(files.config, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs := newFlagSet(&cfg, &fileFlags{})
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.PrivateKey = os.Getenv("HL_PRIVATE_KEY")
	cfg.AccountAddress = os.Getenv("HL_ACCOUNT_ADDRESS")
	cfg.APIKey = os.Getenv("APCA_API_KEY_ID")
	cfg.APISecret = os.Getenv("APCA_API_SECRET_KEY")

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

type fileFlags struct {
	config  string
	envFile string
}

// parseFileFlags reads only the file locations from args. Usage printed on a
// parse failure shows the built-in defaults.
func parseFileFlags(args []string, output io.Writer) (fileFlags, error) {
	scratch := Default()
	var files fileFlags
	fs := newFlagSet(&scratch, &files)
	fs.SetOutput(output)
	err := fs.Parse(args)
	return files, err
}

func newFlagSet(cfg *Config, files *fileFlags) *flag.FlagSet {
	fs := flag.NewFlagSet("bot", flag.ContinueOnError)
	fs.StringVar(&files.config, "config", "", "path to YAML config file")
	fs.StringVar(&files.envFile, "env-file", ".env", "path to dotenv file")

	fs.Func("venue", "trading venue: hyperliquid or alpaca", func(v string) error {
		cfg.Venue = Venue(v)
		return nil
	})
	fs.Func("mode", "run mode: live or paper", func(v string) error {
		cfg.Mode = Mode(v)
		return nil
	})
	fs.StringVar(&cfg.Symbol, "symbol", cfg.Symbol, "spot pair, BASE/QUOTE")
	fs.BoolVar(&cfg.Testnet, "testnet", cfg.Testnet, "use the hyperliquid testnet")
	fs.StringVar(&cfg.HyperliquidAPIURL, "hyperliquid-api-url", cfg.HyperliquidAPIURL, "hyperliquid REST base URL")
	fs.StringVar(&cfg.HyperliquidWSURL, "hyperliquid-ws-url", cfg.HyperliquidWSURL, "hyperliquid websocket URL")
	fs.StringVar(&cfg.AlpacaBaseURL, "alpaca-base-url", cfg.AlpacaBaseURL, "alpaca trading base URL")
	fs.StringVar(&cfg.AlpacaFeed, "alpaca-feed", cfg.AlpacaFeed, "alpaca crypto feed")
	fs.IntVar(&cfg.WindowSize, "window-size", cfg.WindowSize, "rolling window capacity")
	fs.Float64Var(&cfg.UpperBand, "upper-band", cfg.UpperBand, "sell when price > average*upper-band")
	fs.Float64Var(&cfg.LowerBand, "lower-band", cfg.LowerBand, "buy when price < average*lower-band")
	fs.IntVar(&cfg.PriceDecimals, "price-decimals", cfg.PriceDecimals, "decimal places for limit prices")
	fs.DurationVar(&cfg.GracePeriod, "grace-period", cfg.GracePeriod, "time an order rests before cancel")
	fs.Float64Var(&cfg.RepriceSlippage, "reprice-slippage", cfg.RepriceSlippage, "reprice adjustment fraction")
	fs.BoolVar(&cfg.StrictCancel, "strict-cancel", cfg.StrictCancel, "do not treat cancel transport errors as fills")
	fs.StringVar(&cfg.TickPolicy, "tick-policy", cfg.TickPolicy, "ticks received during a lifecycle: drop or buffer")
	fs.StringVar(&cfg.SizePolicy, "size-policy", cfg.SizePolicy, "order sizing: balance or fixed")
	fs.Float64Var(&cfg.FixedSize, "fixed-size", cfg.FixedSize, "order size for the fixed policy")
	fs.Float64Var(&cfg.LotSize, "lot-size", cfg.LotSize, "size granularity for the balance policy")
	fs.Float64Var(&cfg.MinQuoteBalance, "min-quote-balance", cfg.MinQuoteBalance, "skip buys below this quote balance")
	fs.Float64Var(&cfg.MinBaseBalance, "min-base-balance", cfg.MinBaseBalance, "skip sells below this base balance")
	fs.BoolVar(&cfg.KillSwitch, "kill-switch", cfg.KillSwitch, "if true, never place orders")
	fs.Float64Var(&cfg.PaperBaseBalance, "paper-base-balance", cfg.PaperBaseBalance, "starting base balance in paper mode")
	fs.Float64Var(&cfg.PaperQuoteBalance, "paper-quote-balance", cfg.PaperQuoteBalance, "starting quote balance in paper mode")
	fs.DurationVar(&cfg.ReconcileInterval, "reconcile-interval", cfg.ReconcileInterval, "balance reconciliation interval")
	fs.StringVar(&cfg.DecisionsPath, "decisions-path", cfg.DecisionsPath, "path to decisions log")
	fs.StringVar(&cfg.StatusAddr, "status-addr", cfg.StatusAddr, "listen address for the status API, empty disables it")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "rotate logs into this file as well as stderr")
	fs.IntVar(&cfg.LogMaxSizeMB, "log-max-size-mb", cfg.LogMaxSizeMB, "log file size before rotation")
	fs.IntVar(&cfg.LogMaxBackups, "log-max-backups", cfg.LogMaxBackups, "rotated log files to keep")
	fs.IntVar(&cfg.LogMaxAgeDays, "log-max-age-days", cfg.LogMaxAgeDays, "days to keep rotated log files")
	fs.BoolVar(&cfg.LogCompress, "log-compress", cfg.LogCompress, "gzip rotated log files")
	return fs
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// loadDotEnv fills unset variables from path. A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	venue, mode := string(cfg.Venue), string(cfg.Mode)
	str("BOT_VENUE", &venue)
	str("BOT_MODE", &mode)
	cfg.Venue, cfg.Mode = Venue(venue), Mode(mode)
	str("BOT_SYMBOL", &cfg.Symbol)
	boolean("BOT_TESTNET", &cfg.Testnet)
	str("BOT_HYPERLIQUID_API_URL", &cfg.HyperliquidAPIURL)
	str("BOT_HYPERLIQUID_WS_URL", &cfg.HyperliquidWSURL)
	str("BOT_ALPACA_BASE_URL", &cfg.AlpacaBaseURL)
	str("BOT_ALPACA_FEED", &cfg.AlpacaFeed)
	integer("BOT_WINDOW_SIZE", &cfg.WindowSize)
	num("BOT_UPPER_BAND", &cfg.UpperBand)
	num("BOT_LOWER_BAND", &cfg.LowerBand)
	integer("BOT_PRICE_DECIMALS", &cfg.PriceDecimals)
	duration("BOT_GRACE_PERIOD", &cfg.GracePeriod)
	num("BOT_REPRICE_SLIPPAGE", &cfg.RepriceSlippage)
	boolean("BOT_STRICT_CANCEL", &cfg.StrictCancel)
	str("BOT_TICK_POLICY", &cfg.TickPolicy)
	str("BOT_SIZE_POLICY", &cfg.SizePolicy)
	num("BOT_FIXED_SIZE", &cfg.FixedSize)
	num("BOT_LOT_SIZE", &cfg.LotSize)
	num("BOT_MIN_QUOTE_BALANCE", &cfg.MinQuoteBalance)
	num("BOT_MIN_BASE_BALANCE", &cfg.MinBaseBalance)
	boolean("BOT_KILL_SWITCH", &cfg.KillSwitch)
	num("BOT_PAPER_BASE_BALANCE", &cfg.PaperBaseBalance)
	num("BOT_PAPER_QUOTE_BALANCE", &cfg.PaperQuoteBalance)
	duration("BOT_RECONCILE_INTERVAL", &cfg.ReconcileInterval)
	str("BOT_DECISIONS_PATH", &cfg.DecisionsPath)
	str("BOT_STATUS_ADDR", &cfg.StatusAddr)
	str("BOT_LOG_LEVEL", &cfg.LogLevel)
	str("BOT_LOG_FILE", &cfg.LogFile)
	boolean("BOT_LOG_COMPRESS", &cfg.LogCompress)
	return errors.Join(errs...)
}

func validate(cfg Config) error {
	if cfg.Venue != VenueHyperliquid && cfg.Venue != VenueAlpaca {
		return fmt.Errorf("invalid venue: %s", cfg.Venue)
	}
	if cfg.Mode != ModeLive && cfg.Mode != ModePaper {
		return fmt.Errorf("invalid mode: %s", cfg.Mode)
	}
	if base, quote := cfg.Assets(); base == "" || quote == "" {
		return fmt.Errorf("symbol must be BASE/QUOTE, got %q", cfg.Symbol)
	}
	if cfg.WindowSize <= 0 {
		return fmt.Errorf("window-size must be > 0")
	}
	if !(cfg.UpperBand > 1 && cfg.LowerBand < 1 && cfg.LowerBand > 0) {
		return fmt.Errorf("bands must satisfy upper-band > 1 > lower-band > 0, got %v / %v", cfg.UpperBand, cfg.LowerBand)
	}
	if cfg.PriceDecimals < 0 || cfg.PriceDecimals > 8 {
		return fmt.Errorf("price-decimals must be between 0 and 8")
	}
	if cfg.GracePeriod <= 0 {
		return fmt.Errorf("grace-period must be > 0")
	}
	if cfg.RepriceSlippage <= 0 || cfg.RepriceSlippage >= 1 {
		return fmt.Errorf("reprice-slippage must be in (0, 1)")
	}
	if cfg.TickPolicy != "drop" && cfg.TickPolicy != "buffer" {
		return fmt.Errorf("invalid tick-policy: %s", cfg.TickPolicy)
	}
	switch cfg.SizePolicy {
	case "balance":
		if cfg.LotSize <= 0 {
			return fmt.Errorf("lot-size must be > 0")
		}
	case "fixed":
		if cfg.FixedSize <= 0 {
			return fmt.Errorf("fixed-size must be > 0 with the fixed size policy")
		}
	default:
		return fmt.Errorf("invalid size-policy: %s", cfg.SizePolicy)
	}
	if cfg.MinQuoteBalance < 0 || cfg.MinBaseBalance < 0 {
		return fmt.Errorf("balance floors must be >= 0")
	}
	if cfg.PaperBaseBalance < 0 || cfg.PaperQuoteBalance < 0 {
		return fmt.Errorf("paper balances must be >= 0")
	}
	if cfg.ReconcileInterval <= 0 {
		return fmt.Errorf("reconcile-interval must be > 0")
	}
	if cfg.Venue == VenueAlpaca && (cfg.APIKey == "" || cfg.APISecret == "") {
		return fmt.Errorf("APCA_API_KEY_ID and APCA_API_SECRET_KEY are required for the alpaca venue")
	}
	if cfg.Venue == VenueHyperliquid && cfg.Mode == ModeLive && cfg.PrivateKey == "" {
		return fmt.Errorf("HL_PRIVATE_KEY is required in live mode")
	}
	return nil
}
