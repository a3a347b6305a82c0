package config

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"time"
)

const (
	// MaxClientMessageSize bounds a single inbound websocket frame. Armored
	// ciphertext blobs stay well under this in practice.
	MaxClientMessageSize = 256 * 1024

	defaultConfigFile = "config.json"
)

// Version is set at build time via -ldflags.
var Version = "development"

var (
	// ConfigFile overrides the default config file location.
	ConfigFile string
	// Debug enables debug level logging regardless of LogLevel.
	Debug bool
)

// Configuration is the set of runtime parameters. Defaults are applied first;
// a JSON config file, if present, is merged on top.
type Configuration struct {
	HttpWsPort         uint16  `json:"HttpWsPort"`
	WebServicePort     uint16  `json:"WebServicePort"`
	PingIntervalSec    uint32  `json:"PingIntervalSec"`
	PongTimeoutSec     uint32  `json:"PongTimeoutSec"`
	IDReuseCooldownSec uint32  `json:"IDReuseCooldownSec"`
	WsIPRateLimit      float64 `json:"WsIPRateLimit"`
	WsIPRateBurst      uint32  `json:"WsIPRateBurst"`
	LogLevel           string  `json:"LogLevel"`
}

var defaultParameters = Configuration{
	HttpWsPort:         8765,
	WebServicePort:     8766,
	PingIntervalSec:    8,
	PongTimeoutSec:     10, // should be greater than PingIntervalSec
	IDReuseCooldownSec: 600,
	WsIPRateLimit:      64,
	WsIPRateBurst:      128,
	LogLevel:           "info",
}

var Parameters = &Configuration{}

func init() {
	*Parameters = defaultParameters
}

// Init loads the config file, if any, on top of the defaults.
func Init() error {
	*Parameters = defaultParameters

	file, err := OpenConfigFile()
	if err != nil {
		if os.IsNotExist(err) && ConfigFile == "" {
			return nil
		}
		return err
	}

	err = json.Unmarshal(file, Parameters)
	if err != nil {
		return fmt.Errorf("parse config file error: %v", err)
	}

	return Parameters.verify()
}

func (config *Configuration) verify() error {
	if config.PongTimeoutSec <= config.PingIntervalSec {
		return fmt.Errorf("PongTimeoutSec (%d) should be greater than PingIntervalSec (%d)", config.PongTimeoutSec, config.PingIntervalSec)
	}
	return nil
}

func (config *Configuration) PingInterval() time.Duration {
	return time.Duration(config.PingIntervalSec) * time.Second
}

func (config *Configuration) PongTimeout() time.Duration {
	return time.Duration(config.PongTimeoutSec) * time.Second
}

func (config *Configuration) IDReuseCooldown() time.Duration {
	return time.Duration(config.IDReuseCooldownSec) * time.Second
}

func GetConfigFile() string {
	configFile := ConfigFile
	if configFile == "" {
		configFile = defaultConfigFile
	}
	return configFile
}

func OpenConfigFile() ([]byte, error) {
	return ioutil.ReadFile(GetConfigFile())
}
