package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SensorConfig tunes one position sensor unit.
type SensorConfig struct {
	Enabled     bool
	XYStdDev    float64 // horizontal noise floor, m
	ZStdDev     float64 // vertical noise floor, m
	Delay       float64 // fixed measurement delay, seconds (0 = measured)
	MaxStdDev   float64 // reported uncertainty above this rejects the sample, m
	AssumeValid bool    // accept samples that carry no covariance
}

// DelayDuration returns Delay as a time.Duration.
func (s SensorConfig) DelayDuration() time.Duration {
	return time.Duration(s.Delay * float64(time.Second))
}

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker            string
	MQTTClientIDEstimator string
	MQTTClientIDGPS       string
	MQTTClientIDConsole   string
	MQTTClientIDWeb       string
	MQTTClientIDProducer  string

	// Topics
	TopicVision      string
	TopicMocap       string
	TopicGPS         string
	TopicEstimate    string
	TopicInnovations string
	TopicEvents      string

	// GPS
	GPSSerialPort string
	GPSBaudRate   int

	// Estimator timing
	EstimatorInterval int // milliseconds
	HistoryLen        int
	HistoryStep       int // milliseconds
	MaxDelay          int // milliseconds

	// Initial covariance
	InitialPosStdDev float64
	InitialVelStdDev float64

	// Sensors
	Vision SensorConfig
	Mocap  SensorConfig

	// Diagnostics database; empty disables it
	DiagDBPath string

	// Web Server
	WebServerPort int

	// Mock odometry producer
	ProducerInterval int // milliseconds
}

// Default returns a Config with every optional value filled in.
func Default() *Config {
	return &Config{
		MQTTClientIDEstimator: "lpe-estimator",
		MQTTClientIDGPS:       "lpe-gps-producer",
		MQTTClientIDConsole:   "lpe-console-subscriber",
		MQTTClientIDWeb:       "lpe-web-subscriber",
		MQTTClientIDProducer:  "lpe-producer-mock",

		TopicVision:      "lpe/vision",
		TopicMocap:       "lpe/mocap",
		TopicGPS:         "lpe/gps",
		TopicEstimate:    "lpe/estimate",
		TopicInnovations: "lpe/innovations",
		TopicEvents:      "lpe/events",

		GPSBaudRate: 9600,

		EstimatorInterval: 10,
		HistoryLen:        10,
		HistoryStep:       50,
		MaxDelay:          500,

		InitialPosStdDev: 1,
		InitialVelStdDev: 1,

		Vision: SensorConfig{
			Enabled:     true,
			XYStdDev:    0.1,
			ZStdDev:     0.5,
			MaxStdDev:   100,
			AssumeValid: true,
		},
		Mocap: SensorConfig{
			XYStdDev:    0.01,
			ZStdDev:     0.01,
			MaxStdDev:   100,
			AssumeValid: true,
		},

		WebServerPort:    8080,
		ProducerInterval: 50,
	}
}

// Package-level singleton state. globalConfig is only written by
// InitGlobal under configMu; Get takes the read lock.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default and validates the result.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		if err := cfg.setValue(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	if rest, ok := strings.CutPrefix(key, "VISION_"); ok {
		return c.Vision.setValue(key, rest, value)
	}
	if rest, ok := strings.CutPrefix(key, "MOCAP_"); ok {
		return c.Mocap.setValue(key, rest, value)
	}

	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_ESTIMATOR":
		c.MQTTClientIDEstimator = value
	case "MQTT_CLIENT_ID_GPS":
		c.MQTTClientIDGPS = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value

	// Topics
	case "TOPIC_VISION":
		c.TopicVision = value
	case "TOPIC_MOCAP":
		c.TopicMocap = value
	case "TOPIC_GPS":
		c.TopicGPS = value
	case "TOPIC_ESTIMATE":
		c.TopicEstimate = value
	case "TOPIC_INNOVATIONS":
		c.TopicInnovations = value
	case "TOPIC_EVENTS":
		c.TopicEvents = value

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		return parseInt(key, value, &c.GPSBaudRate)

	// Estimator
	case "ESTIMATOR_INTERVAL":
		return parseInt(key, value, &c.EstimatorInterval)
	case "HISTORY_LEN":
		return parseInt(key, value, &c.HistoryLen)
	case "HISTORY_STEP":
		return parseInt(key, value, &c.HistoryStep)
	case "MAX_DELAY":
		return parseInt(key, value, &c.MaxDelay)
	case "INITIAL_POS_STDDEV":
		return parseFloat(key, value, &c.InitialPosStdDev)
	case "INITIAL_VEL_STDDEV":
		return parseFloat(key, value, &c.InitialVelStdDev)

	case "DIAG_DB_PATH":
		c.DiagDBPath = value

	// Web Server
	case "WEB_SERVER_PORT":
		return parseInt(key, value, &c.WebServerPort)

	case "PRODUCER_INTERVAL":
		return parseInt(key, value, &c.ProducerInterval)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func (s *SensorConfig) setValue(key, field, value string) error {
	switch field {
	case "ENABLED":
		return parseBool(key, value, &s.Enabled)
	case "XY_STDDEV":
		return parseFloat(key, value, &s.XYStdDev)
	case "Z_STDDEV":
		return parseFloat(key, value, &s.ZStdDev)
	case "DELAY":
		return parseFloat(key, value, &s.Delay)
	case "MAX_STD_DEV":
		return parseFloat(key, value, &s.MaxStdDev)
	case "ASSUME_VALID":
		return parseBool(key, value, &s.AssumeValid)
	default:
		return fmt.Errorf("unknown config key: %q", key)
	}
}

func parseInt(key, value string, dst *int) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

func parseFloat(key, value string, dst *float64) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

func parseBool(key, value string, dst *bool) error {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

// validate checks that all required fields are set and in range.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.GPSBaudRate <= 0 {
		return fmt.Errorf("GPS_BAUD_RATE must be positive, got %d", c.GPSBaudRate)
	}
	if c.EstimatorInterval <= 0 {
		return fmt.Errorf("ESTIMATOR_INTERVAL must be positive, got %d", c.EstimatorInterval)
	}
	if c.HistoryLen <= 0 {
		return fmt.Errorf("HISTORY_LEN must be positive, got %d", c.HistoryLen)
	}
	if c.HistoryStep <= 0 {
		return fmt.Errorf("HISTORY_STEP must be positive, got %d", c.HistoryStep)
	}
	if c.MaxDelay <= 0 {
		return fmt.Errorf("MAX_DELAY must be positive, got %d", c.MaxDelay)
	}
	if c.InitialPosStdDev < 0 || c.InitialVelStdDev < 0 {
		return fmt.Errorf("INITIAL_POS_STDDEV and INITIAL_VEL_STDDEV must not be negative")
	}
	if err := c.Vision.validate("VISION"); err != nil {
		return err
	}
	if err := c.Mocap.validate("MOCAP"); err != nil {
		return err
	}
	if c.WebServerPort <= 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", c.WebServerPort)
	}
	if c.ProducerInterval <= 0 {
		return fmt.Errorf("PRODUCER_INTERVAL must be positive, got %d", c.ProducerInterval)
	}
	return nil
}

func (s SensorConfig) validate(prefix string) error {
	if s.XYStdDev < 0 || s.ZStdDev < 0 {
		return fmt.Errorf("%s_XY_STDDEV and %s_Z_STDDEV must not be negative", prefix, prefix)
	}
	if s.Delay < 0 {
		return fmt.Errorf("%s_DELAY must not be negative, got %g", prefix, s.Delay)
	}
	if s.MaxStdDev <= 0 {
		return fmt.Errorf("%s_MAX_STD_DEV must be positive, got %g", prefix, s.MaxStdDev)
	}
	return nil
}

// EstimatorTick returns ESTIMATOR_INTERVAL as a duration.
func (c *Config) EstimatorTick() time.Duration {
	return time.Duration(c.EstimatorInterval) * time.Millisecond
}

// HistoryStepDuration returns HISTORY_STEP as a duration.
func (c *Config) HistoryStepDuration() time.Duration {
	return time.Duration(c.HistoryStep) * time.Millisecond
}

// MaxDelayDuration returns MAX_DELAY as a duration.
func (c *Config) MaxDelayDuration() time.Duration {
	return time.Duration(c.MaxDelay) * time.Millisecond
}

// InitGlobal initializes the global configuration from file.
// Only the first call loads; later calls are no-ops.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance, or nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
