// Package config loads runtime configuration from the environment and
// an optional YAML overlay, the same way the teacher's internal/config
// package does for Polymarket settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// SigType mirrors the CLOB wallet signature kinds from spec §6.
type SigType int

const (
	SigTypeEOA     SigType = 0
	SigTypeMagic   SigType = 1
	SigTypeBrowser SigType = 2
)

// BucketConfig is the tunable risk profile for one RiskBucket lane.
type BucketConfig struct {
	BankrollCapUSD  decimal.Decimal `yaml:"bankroll_cap_usd"`
	KellyFraction   decimal.Decimal `yaml:"kelly_fraction"`
	HardCapUSD      decimal.Decimal `yaml:"hard_cap_usd"`
	DailyLossCapPct decimal.Decimal `yaml:"daily_loss_cap_pct"`
	MaxTrades       int             `yaml:"max_trades"`
	MaxStreak       int             `yaml:"max_streak"`
	CooldownMins    int             `yaml:"cooldown_mins"`
}

// Config is the process-wide configuration, loaded once at startup and
// passed by reference into each lane.
type Config struct {
	Debug bool

	// Wallet / signing (spec §6 — fatal on missing or malformed)
	PolyPrivateKey string
	PolyFunder     string
	PolySigType    SigType

	// CLI-equivalent settings
	Bankroll         decimal.Decimal
	Cycles           int
	EnableArb        bool
	ArbOnly          bool
	EnableLateWindow bool
	Enable5m         bool
	EnableMM         bool
	EnableHedge      bool
	EnableDashboard  bool
	SyncLiveBankroll bool

	// Oracle / CLOB endpoints
	OracleWSURL   string
	SecondaryURLs []string
	CLOBBaseURL   string
	StaleMs       int64

	// Scheduler timing
	EntryLead15m   time.Duration
	EntryLead5m    time.Duration
	StrategyDelay  time.Duration
	EntryWindow15m time.Duration
	EntryWindow5m  time.Duration

	// Signal thresholds
	MinConfidence float64
	DeadZonePct   float64
	MinVolPct     float64
	MaxVolPct     float64

	// Arb scanner
	ArbPollSecs       time.Duration
	ArbThreshold      decimal.Decimal
	ArbMinEdgePct     decimal.Decimal
	ArbSizeUSD        decimal.Decimal
	ArbMaxDailyBudget decimal.Decimal

	// Late window
	LateWindowMinDriftPct float64
	LateWindowMaxEntry    decimal.Decimal

	// Persistence / dashboard
	DataDir       string
	DashboardPort int

	// Per-bucket risk profiles, keyed by bucket name (15m, 5m, late_window, arb, mm)
	Buckets map[string]BucketConfig
}

// Load reads configuration from the environment, then overlays a YAML
// file named by TRADEBOT_CONFIG (if set) for per-bucket risk tuning.
func Load() (*Config, error) {
	cfg := &Config{
		Debug: getEnvBool("DEBUG", false),

		PolyPrivateKey: os.Getenv("POLY_PRIVATE_KEY"),
		PolyFunder:     os.Getenv("POLY_FUNDER"),

		Bankroll:         getEnvDecimal("BANKROLL", decimal.NewFromFloat(500)),
		Cycles:           getEnvInt("CYCLES", 0),
		EnableArb:        getEnvBool("ARB", false),
		ArbOnly:          getEnvBool("ARB_ONLY", false),
		EnableLateWindow: getEnvBool("LATE_WINDOW", false),
		Enable5m:         getEnvBool("FIVE_MIN", false),
		EnableMM:         getEnvBool("MM", false),
		EnableHedge:      getEnvBool("HEDGE", false),
		EnableDashboard:  getEnvBool("DASHBOARD", false),
		SyncLiveBankroll: getEnvBool("SYNC_LIVE_BANKROLL", false),

		OracleWSURL: getEnv("ORACLE_WS_URL", "wss://oracle.example.com/ws"),
		SecondaryURLs: []string{
			getEnv("SECONDARY_SOURCE_1", "https://api.binance.com/api/v3/ticker/price?symbol=BTCUSDT"),
			getEnv("SECONDARY_SOURCE_2", "https://api.coinbase.com/v2/prices/BTC-USD/spot"),
		},
		CLOBBaseURL: getEnv("POLYMARKET_CLOB_URL", "https://clob.polymarket.com"),
		StaleMs:     int64(getEnvInt("STALE_MS", 30000)),

		EntryLead15m:   getEnvDuration("ENTRY_LEAD_15M", 60*time.Second),
		EntryLead5m:    getEnvDuration("ENTRY_LEAD_5M", 55*time.Second),
		StrategyDelay:  getEnvDuration("STRATEGY_DELAY", 45*time.Second),
		EntryWindow15m: getEnvDuration("ENTRY_WINDOW_15M", 30*time.Second),
		EntryWindow5m:  getEnvDuration("ENTRY_WINDOW_5M", 20*time.Second),

		MinConfidence: getEnvFloat("MIN_CONFIDENCE", 0.60),
		DeadZonePct:   getEnvFloat("DEAD_ZONE_PCT", 0.04),
		MinVolPct:     getEnvFloat("MIN_VOL_PCT", 0.03),
		MaxVolPct:     getEnvFloat("MAX_VOL_PCT", 3.0),

		ArbPollSecs:       getEnvDuration("ARB_POLL_SECS", 8*time.Second),
		ArbThreshold:      getEnvDecimal("ARB_THRESHOLD", decimal.NewFromFloat(0.98)),
		ArbMinEdgePct:     getEnvDecimal("ARB_MIN_EDGE_PCT", decimal.NewFromFloat(0.01)),
		ArbSizeUSD:        getEnvDecimal("ARB_SIZE_USD", decimal.NewFromFloat(5)),
		ArbMaxDailyBudget: getEnvDecimal("ARB_MAX_DAILY_BUDGET", decimal.NewFromFloat(200)),

		LateWindowMinDriftPct: getEnvFloat("LATE_WINDOW_MIN_DRIFT_PCT", 0.08),
		LateWindowMaxEntry:    getEnvDecimal("LATE_WINDOW_MAX_ENTRY", decimal.NewFromFloat(0.80)),

		DataDir:       getEnv("DATA_DIR", "data"),
		DashboardPort: getEnvInt("DASHBOARD_PORT", 8765),

		Buckets: DefaultBuckets(),
	}

	sigType := getEnvInt("POLY_SIG_TYPE", -1)
	if sigType < 0 || sigType > 2 {
		return nil, fmt.Errorf("POLY_SIG_TYPE must be 0, 1, or 2, got %d", sigType)
	}
	cfg.PolySigType = SigType(sigType)

	if cfg.PolyPrivateKey == "" {
		return nil, fmt.Errorf("POLY_PRIVATE_KEY is required")
	}
	if cfg.PolyFunder == "" {
		return nil, fmt.Errorf("POLY_FUNDER is required")
	}

	if path := os.Getenv("TRADEBOT_CONFIG"); path != "" {
		if err := cfg.overlayYAML(path); err != nil {
			return nil, fmt.Errorf("loading TRADEBOT_CONFIG: %w", err)
		}
	}

	return cfg, nil
}

// DefaultBuckets returns the independent risk profiles for each engine lane.
func DefaultBuckets() map[string]BucketConfig {
	return map[string]BucketConfig{
		"15m": {
			BankrollCapUSD:  decimal.NewFromFloat(500),
			KellyFraction:   decimal.NewFromFloat(0.25),
			HardCapUSD:      decimal.NewFromFloat(25),
			DailyLossCapPct: decimal.NewFromFloat(0.20),
			MaxTrades:       20,
			MaxStreak:       5,
			CooldownMins:    60,
		},
		"5m": {
			BankrollCapUSD:  decimal.NewFromFloat(300),
			KellyFraction:   decimal.NewFromFloat(0.20),
			HardCapUSD:      decimal.NewFromFloat(15),
			DailyLossCapPct: decimal.NewFromFloat(0.20),
			MaxTrades:       40,
			MaxStreak:       5,
			CooldownMins:    45,
		},
		"late_window": {
			BankrollCapUSD:  decimal.NewFromFloat(200),
			KellyFraction:   decimal.NewFromFloat(0.15),
			HardCapUSD:      decimal.NewFromFloat(10),
			DailyLossCapPct: decimal.NewFromFloat(0.15),
			MaxTrades:       30,
			MaxStreak:       4,
			CooldownMins:    30,
		},
		"arb": {
			BankrollCapUSD:  decimal.NewFromFloat(200),
			KellyFraction:   decimal.NewFromFloat(1.0),
			HardCapUSD:      decimal.NewFromFloat(5),
			DailyLossCapPct: decimal.NewFromFloat(0.50),
			MaxTrades:       100,
			MaxStreak:       10,
			CooldownMins:    5,
		},
		"mm": {
			BankrollCapUSD:  decimal.NewFromFloat(150),
			KellyFraction:   decimal.NewFromFloat(0.10),
			HardCapUSD:      decimal.NewFromFloat(8),
			DailyLossCapPct: decimal.NewFromFloat(0.15),
			MaxTrades:       50,
			MaxStreak:       6,
			CooldownMins:    15,
		},
	}
}

// overlayYAML lets ops override per-bucket risk parameters without
// restating every env var; env vars still win for everything else.
func (c *Config) overlayYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var overlay struct {
		Buckets map[string]BucketConfig `yaml:"buckets"`
	}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return err
	}
	for name, bc := range overlay.Buckets {
		c.Buckets[name] = bc
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1" || v == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return defaultValue
}
