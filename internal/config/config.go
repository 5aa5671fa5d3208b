package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"cloudpico-bthome/internal/bthome"
	"cloudpico-bthome/internal/sensor"
)

const (
	AdvModeLegacy   = "legacy"
	AdvModeExtended = "extended"

	SensorDriverBME280 = "bme280"
	SensorDriverStatic = "static"

	BLEBackendHCI = "hci"
	BLEBackendLog = "log"

	defaultStaticReadings = "temperature=22.5,humidity=55,pressure=1013.25,iaq=50,co2=612,voc=1"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	SensorDriver   string
	BME280Address  uint16
	I2CBus         string
	SensorChannels []sensor.Channel
	StaticReadings map[sensor.Channel]sensor.Sample

	UpdateInterval time.Duration
	AdvMode        string
	AdvMaxPayload  int
	AdvInterval    time.Duration
	AdvDwell       time.Duration

	BLEEnabled bool
	BLEAdapter string
	BLEBackend string
	LocalName  string
	PacketID   bool

	ScanLocalName string

	MQTTEnabled     bool
	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	DeviceStationID string
}

func LoadFromEnv() (Config, error) {
	appEnv := env("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(env("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	sensorDriver := strings.ToLower(env("SENSOR_DRIVER", SensorDriverBME280))
	switch sensorDriver {
	case SensorDriverBME280, SensorDriverStatic:
	default:
		return Config{}, fmt.Errorf("invalid SENSOR_DRIVER %q (allowed: bme280, static)", sensorDriver)
	}

	bme280AddressStr := env("BME280_ADDRESS", "0x76")
	bme280Address, err := strconv.ParseUint(bme280AddressStr, 0, 16)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BME280_ADDRESS %q: %w", bme280AddressStr, err)
	}

	channelsStr := env("SENSOR_CHANNELS", "temperature,humidity,pressure")
	channels, err := sensor.ParseChannels(channelsStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SENSOR_CHANNELS %q: %w", channelsStr, err)
	}

	readingsStr := env("STATIC_READINGS", defaultStaticReadings)
	readings, err := sensor.ParseReadings(readingsStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid STATIC_READINGS %q: %w", readingsStr, err)
	}

	updateInterval, err := positiveDuration("UPDATE_INTERVAL", "3s")
	if err != nil {
		return Config{}, err
	}

	advMode := strings.ToLower(env("ADV_MODE", AdvModeLegacy))
	defaultMax := bthome.LegacyMaxPayload
	switch advMode {
	case AdvModeLegacy:
	case AdvModeExtended:
		defaultMax = bthome.ExtendedMaxPayload
	default:
		return Config{}, fmt.Errorf("invalid ADV_MODE %q (allowed: legacy, extended)", advMode)
	}

	advMaxStr := env("ADV_MAX_PAYLOAD", strconv.Itoa(defaultMax))
	advMax, err := strconv.Atoi(advMaxStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid ADV_MAX_PAYLOAD %q: %w", advMaxStr, err)
	}
	if advMax <= 0 || advMax > defaultMax {
		return Config{}, fmt.Errorf("ADV_MAX_PAYLOAD must be in 1..%d for %s advertising, got %d", defaultMax, advMode, advMax)
	}

	advInterval, err := positiveDuration("ADV_INTERVAL", "1s")
	if err != nil {
		return Config{}, err
	}
	advDwell, err := positiveDuration("ADV_DWELL", "1.6s")
	if err != nil {
		return Config{}, err
	}

	bleEnabled, err := boolEnv("BLE_ENABLED", true)
	if err != nil {
		return Config{}, err
	}

	bleBackend := strings.ToLower(env("BLE_BACKEND", BLEBackendHCI))
	switch bleBackend {
	case BLEBackendHCI, BLEBackendLog:
	default:
		return Config{}, fmt.Errorf("invalid BLE_BACKEND %q (allowed: hci, log)", bleBackend)
	}

	packetID, err := boolEnv("BTHOME_PACKET_ID", false)
	if err != nil {
		return Config{}, err
	}

	mqttEnabled, err := boolEnv("MQTT_ENABLED", false)
	if err != nil {
		return Config{}, err
	}

	mqttPortStr := env("MQTT_PORT", "1883")
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}

	return Config{
		AppEnv:          appEnv,
		LogLevel:        level,
		SensorDriver:    sensorDriver,
		BME280Address:   uint16(bme280Address),
		I2CBus:          strings.TrimSpace(os.Getenv("I2C_BUS")),
		SensorChannels:  channels,
		StaticReadings:  readings,
		UpdateInterval:  updateInterval,
		AdvMode:         advMode,
		AdvMaxPayload:   advMax,
		AdvInterval:     advInterval,
		AdvDwell:        advDwell,
		BLEEnabled:      bleEnabled,
		BLEAdapter:      env("BLE_ADAPTER", "hci0"),
		BLEBackend:      bleBackend,
		LocalName:       env("LOCAL_NAME", "DIY-sensor"),
		PacketID:        packetID,
		ScanLocalName:   strings.TrimSpace(os.Getenv("SCAN_LOCAL_NAME")),
		MQTTEnabled:     mqttEnabled,
		MQTTBroker:      env("MQTT_BROKER", "localhost"),
		MQTTPort:        mqttPort,
		MQTTClientID:    env("MQTT_CLIENT_ID", "cloudpico-bthome"),
		DeviceStationID: env("DEVICE_STATION_ID", "home"),
	}, nil
}

// PayloadBudget is the number of service data bytes one advertisement can
// carry after the flags, the local name and the AD header.
func (c Config) PayloadBudget() int {
	return bthome.ServiceDataBudget(c.AdvMaxPayload, c.LocalName)
}

// AdapterIndex returns N for a "hciN" adapter name.
func (c Config) AdapterIndex() (int, error) {
	n, ok := strings.CutPrefix(c.BLEAdapter, "hci")
	if !ok {
		return 0, fmt.Errorf("invalid BLE_ADAPTER %q (want hciN)", c.BLEAdapter)
	}
	id, err := strconv.Atoi(n)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid BLE_ADAPTER %q (want hciN)", c.BLEAdapter)
	}
	return id, nil
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func positiveDuration(key, def string) (time.Duration, error) {
	s := env(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, d)
	}
	return d, nil
}

func boolEnv(key string, def bool) (bool, error) {
	s := env(key, strconv.FormatBool(def))
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return v, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
