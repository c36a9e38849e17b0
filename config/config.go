package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v2"
)

// Optimization levels. Levels at or above OptLevelMemory pick backends by
// memory estimates, lower levels use static dimension rules.
const (
	OptLevelStatic  = 0
	OptLevelMemory  = 1
	OptLevelDefault = 2
)

const (
	PlatformHybrid     = "hybrid"
	PlatformSingleNode = "singlenode"
	PlatformSpark      = "spark"
)

// ByteSize accepts either a plain number of bytes or a humanized string such
// as "2GB" or "512 MiB".
type ByteSize uint64

func (self *ByteSize) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	v, err := ParseByteSize(raw)
	if err != nil {
		return err
	}
	*self = v
	return nil
}

func (self ByteSize) MarshalYAML() (interface{}, error) {
	return humanize.IBytes(uint64(self)), nil
}

func (self ByteSize) String() string {
	return humanize.IBytes(uint64(self))
}

func (self ByteSize) Float() float64 {
	return float64(self)
}

func ParseByteSize(raw interface{}) (ByteSize, error) {
	if s, ok := raw.(string); ok {
		v, err := humanize.ParseBytes(strings.TrimSpace(s))
		if err != nil {
			return 0, errors.Wrapf(err, "invalid byte size %q", s)
		}
		return ByteSize(v), nil
	}
	v, err := cast.ToUint64E(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid byte size %v", raw)
	}
	return ByteSize(v), nil
}

type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
	// rotation of the log file, in megabytes
	MaxSize    int `yaml:"max_size"`
	MaxBackups int `yaml:"max_backups"`
}

type Config struct {
	OptLevel              int      `yaml:"optlevel"`
	Platform              string   `yaml:"platform"`
	LocalMemoryBudget     ByteSize `yaml:"local_memory_budget"`
	ReservedLocalMemory   ByteSize `yaml:"reserved_local_memory"`
	BroadcastMemoryBudget ByteSize `yaml:"broadcast_memory_budget"`
	BlockSize             int      `yaml:"blocksize"`
	DimsThreshold         int64    `yaml:"dims_threshold"`
	NumThreads            int      `yaml:"num_threads"`
	DynamicRecompile      bool     `yaml:"dynamic_recompile"`
	ForceDistRmEmpty      bool     `yaml:"force_dist_rmempty"`
	CacheDir              string   `yaml:"cache_dir"`
	Log                   Log      `yaml:"log"`
}

func Default() *Config {
	return &Config{
		OptLevel:              OptLevelDefault,
		Platform:              PlatformHybrid,
		LocalMemoryBudget:     2 * humanize.GiByte,
		ReservedLocalMemory:   0,
		BroadcastMemoryBudget: 512 * humanize.MiByte,
		BlockSize:             1000,
		DimsThreshold:         2000,
		NumThreads:            1,
		DynamicRecompile:      true,
		Log: Log{
			Level:      "info",
			MaxSize:    64,
			MaxBackups: 3,
		},
	}
}

// Parse overlays the YAML document on top of the defaults.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load config %s", path)
	}
	return Parse(data)
}

func (self *Config) Validate() error {
	switch self.Platform {
	case PlatformHybrid, PlatformSingleNode, PlatformSpark:
		break
	default:
		return errors.Newf("unknown platform %q", self.Platform)
	}
	if self.OptLevel < 0 {
		return errors.Newf("invalid optlevel %d", self.OptLevel)
	}
	if self.LocalMemoryBudget == 0 {
		return errors.New("local_memory_budget must be positive")
	}
	if self.BroadcastMemoryBudget == 0 {
		return errors.New("broadcast_memory_budget must be positive")
	}
	if self.ReservedLocalMemory >= self.LocalMemoryBudget {
		return errors.Newf("reserved_local_memory %s exceeds local_memory_budget %s",
			self.ReservedLocalMemory, self.LocalMemoryBudget)
	}
	if self.BlockSize <= 0 {
		return errors.Newf("invalid blocksize %d", self.BlockSize)
	}
	if self.DimsThreshold <= 0 {
		return errors.Newf("invalid dims_threshold %d", self.DimsThreshold)
	}
	if self.NumThreads <= 0 {
		return errors.Newf("invalid num_threads %d", self.NumThreads)
	}
	return nil
}

func (self *Config) IsMemoryBasedOptLevel() bool {
	return self.OptLevel >= OptLevelMemory
}

func (self *Config) Clone() *Config {
	c := *self
	return &c
}

func (self *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(self)
}

// Fingerprint captures every field that influences a compiled program. Two
// configurations with the same fingerprint produce identical programs.
func (self *Config) Fingerprint() string {
	return fmt.Sprintf("opt=%d;platform=%s;local=%d;reserved=%d;bc=%d;blen=%d;dims=%d;k=%d;recompile=%t;rmempty=%t",
		self.OptLevel,
		self.Platform,
		uint64(self.LocalMemoryBudget),
		uint64(self.ReservedLocalMemory),
		uint64(self.BroadcastMemoryBudget),
		self.BlockSize,
		self.DimsThreshold,
		self.NumThreads,
		self.DynamicRecompile,
		self.ForceDistRmEmpty,
	)
}
