package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Mode selects the concurrency-control protocol a partition runs.
type Mode string

const (
	// ModeRcc runs the dependency-graph commit protocol.
	ModeRcc Mode = "rcc"
	// Mode2PL runs the latch based two phase locking baseline.
	Mode2PL Mode = "2pl"
)

func (m *Mode) UnmarshalText(text []byte) error {
	switch Mode(text) {
	case ModeRcc, Mode2PL:
		*m = Mode(text)
		return nil
	}
	return errors.Errorf("unknown mode %q", string(text))
}

// Peer is one partition of the cluster and the address serving it.
type Peer struct {
	Partition uint32 `toml:"partition"`
	Addr      string `toml:"addr"`
}

type Config struct {
	StoreAddr  string `toml:"store-addr"`
	StatusAddr string `toml:"status-addr"`

	PartitionID uint32 `toml:"partition-id"`
	// Every partition of the cluster, including this one.
	Peers []Peer `toml:"peers"`
	Mode  Mode   `toml:"mode"`

	// Directory to store the data in. "mem" keeps everything in memory.
	DBPath string `toml:"db-path"`

	// EpochDuration is the watchdog period. Vertices blocked longer than this trigger an inquiry broadcast.
	EpochDuration Duration `toml:"epoch-duration"`
	// FridgeTimeout is how long a waitlist entry may be blocked before it is moved to the fridge.
	FridgeTimeout Duration `toml:"fridge-timeout"`
	// InquireTimeout is the minimum gap between two inquiries about the same transaction.
	InquireTimeout Duration `toml:"inquire-timeout"`
	// InquireRate limits outgoing inquiries per peer, per second.
	InquireRate float64 `toml:"inquire-rate"`
	// MaxCycleLength aborts every member of an SCC larger than this. 0 disables the check.
	MaxCycleLength int `toml:"max-cycle-length"`

	Log log.Config `toml:"log"`

	logger   *zap.Logger
	logProps *log.ZapProperties
}

func (c *Config) Validate() error {
	if c.EpochDuration.Duration <= 0 {
		return fmt.Errorf("epoch duration must greater than 0")
	}
	if c.FridgeTimeout.Duration <= 0 || c.InquireTimeout.Duration <= 0 {
		return fmt.Errorf("fridge and inquire timeout must greater than 0")
	}
	if c.InquireRate <= 0 {
		return fmt.Errorf("inquire rate must greater than 0")
	}
	if c.MaxCycleLength < 0 {
		return fmt.Errorf("max cycle length must not be negative")
	}
	if c.Mode != ModeRcc && c.Mode != Mode2PL {
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	seen := make(map[uint32]bool, len(c.Peers))
	for _, p := range c.Peers {
		if seen[p.Partition] {
			return fmt.Errorf("partition %d listed twice in peers", p.Partition)
		}
		seen[p.Partition] = true
	}
	if len(c.Peers) > 0 && !seen[c.PartitionID] {
		return fmt.Errorf("partition %d is not in peers", c.PartitionID)
	}
	if c.EpochDuration.Duration < c.FridgeTimeout.Duration {
		log.Warn("epoch duration is shorter than fridge timeout, the fridge will be thawed before it is used",
			zap.Duration("epoch", c.EpochDuration.Duration), zap.Duration("fridge", c.FridgeTimeout.Duration))
	}
	return nil
}

// PeerAddrs returns the address of every other partition.
func (c *Config) PeerAddrs() map[uint32]string {
	addrs := make(map[uint32]string, len(c.Peers))
	for _, p := range c.Peers {
		if p.Partition != c.PartitionID {
			addrs[p.Partition] = p.Addr
		}
	}
	return addrs
}

// LoadConfig decodes a toml file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	conf := NewDefaultConfig()
	if _, err := toml.DecodeFile(path, conf); err != nil {
		return nil, errors.Annotatef(err, "load config %s", path)
	}
	return conf, nil
}

// SetupLogger setup the logger.
func (c *Config) SetupLogger() error {
	lg, p, err := log.InitLogger(&c.Log, zap.AddStacktrace(zapcore.FatalLevel))
	if err != nil {
		return err
	}
	c.logger = lg
	c.logProps = p
	return nil
}

// GetZapLogger gets the created zap logger.
func (c *Config) GetZapLogger() *zap.Logger {
	return c.logger
}

// GetZapLogProperties gets properties of the zap logger.
func (c *Config) GetZapLogProperties() *log.ZapProperties {
	return c.logProps
}

func getLogLevel() (logLevel string) {
	logLevel = "info"
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		logLevel = l
	}
	return
}

func NewDefaultConfig() *Config {
	return &Config{
		StoreAddr:      "127.0.0.1:20160",
		StatusAddr:     "127.0.0.1:20180",
		Mode:           ModeRcc,
		DBPath:         "/tmp/rcckv",
		EpochDuration:  NewDuration(time.Second),
		FridgeTimeout:  NewDuration(200 * time.Millisecond),
		InquireTimeout: NewDuration(100 * time.Millisecond),
		InquireRate:    1000,
		Log:            log.Config{Level: getLogLevel()},
	}
}

func NewTestConfig() *Config {
	dir, err := ioutil.TempDir("", "rcckv")
	if err != nil {
		panic(err)
	}
	return &Config{
		StoreAddr:      "127.0.0.1:0",
		Mode:           ModeRcc,
		DBPath:         dir,
		EpochDuration:  NewDuration(50 * time.Millisecond),
		FridgeTimeout:  NewDuration(20 * time.Millisecond),
		InquireTimeout: NewDuration(10 * time.Millisecond),
		InquireRate:    10000,
		Log:            log.Config{Level: getLogLevel()},
	}
}
