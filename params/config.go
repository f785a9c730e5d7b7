package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MockMakerWallet is the placeholder maker identity used when no real
// market-making backend is configured. Quotes are pass-through, so the
// maker leg only needs a stable wallet identifier.
const MockMakerWallet = "0x1111111111111111111111111111111111111111111111111111111111111111"

type Quote struct {
	TTL         time.Duration // how long a quoted order stays fillable
	MakerWallet string        // counterparty identity on the signer leg
}

type Expiry struct {
	// SweepInterval paces the background scan for stale open orders.
	// 1s keeps worst-case overshoot of an order's expiry small relative
	// to the 60s default TTL; lower it via EXPIRY_SWEEP_MS if needed.
	SweepInterval time.Duration
}

type Server struct {
	ListenAddr   string
	CORSOrigins  []string
	WSSendBuffer int // per-subscriber outbound queue length
	LogFile      string
}

type Config struct {
	Quote  Quote
	Expiry Expiry
	Server Server
}

func Default() Config {
	return Config{
		Quote: Quote{
			TTL:         60 * time.Second,
			MakerWallet: MockMakerWallet,
		},
		Expiry: Expiry{
			SweepInterval: time.Second,
		},
		Server: Server{
			ListenAddr:   ":3001",
			CORSOrigins:  []string{"http://localhost:3000", "http://localhost:3001"},
			WSSendBuffer: 256,
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if it exists) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if ttl := os.Getenv("QUOTE_TTL_MS"); ttl != "" {
		if ms, err := strconv.Atoi(ttl); err == nil && ms > 0 {
			cfg.Quote.TTL = time.Duration(ms) * time.Millisecond
		}
	}
	if maker := os.Getenv("MAKER_WALLET"); maker != "" {
		cfg.Quote.MakerWallet = maker
	}
	if sweep := os.Getenv("EXPIRY_SWEEP_MS"); sweep != "" {
		if ms, err := strconv.Atoi(sweep); err == nil && ms > 0 {
			cfg.Expiry.SweepInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		cfg.Server.ListenAddr = addr
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.Server.CORSOrigins = strings.Split(origins, ",")
	}
	if buf := os.Getenv("WS_SEND_BUFFER"); buf != "" {
		if n, err := strconv.Atoi(buf); err == nil && n > 0 {
			cfg.Server.WSSendBuffer = n
		}
	}
	cfg.Server.LogFile = os.Getenv("LOG_FILE")

	return cfg
}
