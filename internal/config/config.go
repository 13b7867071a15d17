package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/drstein77/smartbilling/internal/checkout"
	"github.com/joho/godotenv"
)

type Options struct {
	runAddr       string
	logLevel      string
	dataBaseDSN   string
	catalogFile   string
	demoPIN       string
	verifyLatency time.Duration
	scanDevice    string
	scanDebounce  time.Duration
	rabbitMQURL   string
}

func NewOptions() *Options {
	return new(Options)
}

// ParseFlags handles command line arguments
// and stores their values in the corresponding variables.
func (o *Options) ParseFlags() error {
	loadEnvFile()
	return o.Parse(os.Args[1:])
}

// Parse reads args on top of environment defaults and validates the result.
func (o *Options) Parse(args []string) error {
	fs := flag.NewFlagSet("smartbilling", flag.ContinueOnError)

	fs.StringVar(&o.runAddr, "a", getEnvOrDefault("RUN_ADDRESS", ":8080"), "address and port to run server")
	fs.StringVar(&o.logLevel, "l", getEnvOrDefault("LOG_LEVEL", "info"), "log level")
	fs.StringVar(&o.dataBaseDSN, "d", getEnvOrDefault("DATABASE_URI", ""), "database connection string for the catalog")
	fs.StringVar(&o.catalogFile, "c", getEnvOrDefault("CATALOG_FILE", ""), "catalog .csv, .zip or .tar file")
	fs.StringVar(&o.demoPIN, "p", getEnvOrDefault("DEMO_PIN", checkout.DefaultPIN), "PIN accepted by web portal verification")
	fs.StringVar(&o.scanDevice, "s", getEnvOrDefault("SCAN_DEVICE", ""), "scanner input device, - for stdin")
	fs.StringVar(&o.rabbitMQURL, "r", getEnvOrDefault("RABBITMQ_URL", ""), "RabbitMQ url for checkout events")

	latency, err := durationEnv("VERIFY_LATENCY", checkout.DefaultVerifyLatency)
	if err != nil {
		return err
	}
	debounce, err := durationEnv("SCAN_DEBOUNCE", 0)
	if err != nil {
		return err
	}
	fs.DurationVar(&o.verifyLatency, "v", latency, "simulated PIN verification latency")
	fs.DurationVar(&o.scanDebounce, "b", debounce, "drop repeats of the same code within this window, 0 disables")

	if err := fs.Parse(args); err != nil {
		return err
	}
	return o.Validate()
}

// Validate checks values that would make the terminal unusable.
func (o *Options) Validate() error {
	if err := checkout.ValidatePIN(o.demoPIN); err != nil {
		return fmt.Errorf("invalid demo pin: %w", err)
	}
	if o.verifyLatency < 0 {
		return errors.New("verify latency must not be negative")
	}
	if o.scanDebounce < 0 {
		return errors.New("scan debounce must not be negative")
	}
	return nil
}

func (o *Options) RunAddr() string {
	return o.runAddr
}

func (o *Options) LogLevel() string {
	return o.logLevel
}

func (o *Options) DataBaseDSN() string {
	return o.dataBaseDSN
}

func (o *Options) CatalogFile() string {
	return o.catalogFile
}

func (o *Options) DemoPIN() string {
	return o.demoPIN
}

func (o *Options) VerifyLatency() time.Duration {
	return o.verifyLatency
}

func (o *Options) ScanDevice() string {
	return o.scanDevice
}

func (o *Options) ScanDebounce() time.Duration {
	return o.scanDebounce
}

func (o *Options) RabbitMQURL() string {
	return o.rabbitMQURL
}

// getEnvOrDefault reads an environment variable or returns a default value if the variable is not set or is empty.
func getEnvOrDefault(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func durationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnvOrDefault(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// loadEnvFile loads environment variables from a .env file in the working
// directory, or two levels up when started from cmd/smartbilling.
func loadEnvFile() {
	cwd, err := os.Getwd()
	if err != nil {
		log.Printf("cannot determine working directory: %v", err)
		return
	}
	for _, envPath := range []string{
		filepath.Join(cwd, ".env"),
		filepath.Join(cwd, "..", "..", ".env"),
	} {
		if err := godotenv.Load(envPath); err == nil {
			log.Printf(".env file loaded from %s", envPath)
			return
		}
	}
	log.Printf("No .env file found, proceeding without it")
}
