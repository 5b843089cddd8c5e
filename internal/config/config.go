package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations
// and amounts.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	DBUser       string // database username
	DBPass       string // database password (optional)
	DBHost       string // database host address
	DBPort       string // database port number
	DBName       string // database name
	JWTSecret    string // secret used to sign admin JWTs
	AccessTTLMin int    // access token time-to-live in minutes
	BcryptCost   int    // bcrypt cost for admin password hashing

	// Payment provider selection and credentials.  Provider is either
	// "mercadopago" or "efi"; only the variables of the selected
	// provider are required at startup.
	Provider         string // PAYMENT_PROVIDER
	ChargeAmountCent int    // CHARGE_AMOUNT_CENTS, price of one slot
	ChargeDesc       string // CHARGE_DESCRIPTION shown on the PIX charge

	MPAccessToken   string // Mercado Pago API bearer token
	MPWebhookSecret string // shared secret for x-signature verification

	EfiClientID     string // Efí Bank OAuth client id
	EfiClientSecret string // Efí Bank OAuth client secret
	EfiPixKey       string // PIX key receiving the transfers
	EfiSandbox      bool   // use the Efí homolog environment when true
	EfiCertFile     string // PEM certificate for the Efí mTLS channel
	EfiKeyFile      string // PEM private key for the Efí mTLS channel
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Provider specific
// credentials are validated lazily: only the chosen provider's variables
// are required.
func Load() Config {
	cfg := Config{
		Env:              must("APP_ENV"),  // environment (dev/test/prod)
		Port:             must("APP_PORT"), // port to bind the HTTP server
		DBUser:           must("DB_USER"),  // database user
		DBPass:           os.Getenv("DB_PASS"),
		DBHost:           must("DB_HOST"),
		DBPort:           must("DB_PORT"),
		DBName:           must("DB_NAME"),
		JWTSecret:        must("JWT_SECRET"),
		AccessTTLMin:     mustInt("ACCESS_TOKEN_TTL_MIN"),
		BcryptCost:       mustInt("BCRYPT_COST"),
		Provider:         must("PAYMENT_PROVIDER"),
		ChargeAmountCent: mustInt("CHARGE_AMOUNT_CENTS"),
		ChargeDesc:       must("CHARGE_DESCRIPTION"),
	}
	switch cfg.Provider {
	case "mercadopago":
		cfg.MPAccessToken = must("MP_ACCESS_TOKEN")
		cfg.MPWebhookSecret = must("MP_WEBHOOK_SECRET")
	case "efi":
		cfg.EfiClientID = must("EFI_CLIENT_ID")
		cfg.EfiClientSecret = must("EFI_CLIENT_SECRET")
		cfg.EfiPixKey = must("EFI_PIX_KEY")
		cfg.EfiSandbox = os.Getenv("EFI_SANDBOX") == "true" || os.Getenv("EFI_SANDBOX") == "1"
		cfg.EfiCertFile = os.Getenv("EFI_CERT_FILE")
		cfg.EfiKeyFile = os.Getenv("EFI_KEY_FILE")
	default:
		log.Fatalf("unknown PAYMENT_PROVIDER: %q (want mercadopago or efi)", cfg.Provider)
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
