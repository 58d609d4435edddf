// Package config loads the tracker's INI configuration.
//
//	[server]
//	address = 0.0.0.0:6969
//	workers = 128
//
//	[db]
//	target = file:rtracker.sqlite3
//	thread_pool_size = 10
//	prune_interval = 31m
//	peer_ttl = 31m
//
//	[log]
//	debug = false
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rudransh-shrivastava/rtracker/internal/db"
	"gopkg.in/ini.v1"
)

const (
	DefaultAddress       = "127.0.0.1:6969"
	DefaultPoolSize      = 10
	DefaultWorkers       = 128
	DefaultPruneInterval = 31 * time.Minute
	DefaultPeerTTL       = 1860 * time.Second
)

type Config struct {
	ListenAddress string        `mapstructure:"address"`
	Workers       int           `mapstructure:"workers"`
	StorageTarget string        `mapstructure:"target"`
	PoolSize      int           `mapstructure:"thread_pool_size"`
	PruneInterval time.Duration `mapstructure:"prune_interval"`
	PeerTTL       time.Duration `mapstructure:"peer_ttl"`
	Debug         bool          `mapstructure:"debug"`
}

func Default() Config {
	return Config{
		ListenAddress: DefaultAddress,
		Workers:       DefaultWorkers,
		StorageTarget: db.DefaultTarget,
		PoolSize:      DefaultPoolSize,
		PruneInterval: DefaultPruneInterval,
		PeerTTL:       DefaultPeerTTL,
	}
}

// SearchPaths are tried in order when no config file is given.
func SearchPaths() []string {
	paths := []string{"./rtracker.ini"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "rtracker.ini"))
	}
	return append(paths, "/etc/rtracker.ini")
}

// Load reads path, or the first existing file from SearchPaths when path is
// empty. With no file at all the defaults are returned. The second return
// value is the file actually read, empty when none was.
func Load(path string) (Config, string, error) {
	if path == "" {
		for _, p := range SearchPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path == "" {
		return Default(), "", nil
	}

	f, err := ini.Load(path)
	if err != nil {
		return Config{}, "", fmt.Errorf("reading %s: %w", path, err)
	}

	cfg, err := fromINI(f)
	if err != nil {
		return Config{}, "", fmt.Errorf("decoding %s: %w", path, err)
	}
	return cfg, path, cfg.Validate()
}

// Parse decodes INI text. It is Load without the filesystem.
func Parse(data []byte) (Config, error) {
	f, err := ini.Load(data)
	if err != nil {
		return Config{}, err
	}
	cfg, err := fromINI(f)
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// fromINI flattens the known sections into one map and decodes it over the
// defaults, so a key missing from the file keeps its default.
func fromINI(f *ini.File) (Config, error) {
	raw := make(map[string]any)
	for _, section := range []string{"server", "db", "log"} {
		if !f.HasSection(section) {
			continue
		}
		for _, key := range f.Section(section).Keys() {
			raw[key.Name()] = key.Value()
		}
	}

	cfg := Default()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if _, err := netip.ParseAddrPort(c.ListenAddress); err != nil {
		errs = append(errs, fmt.Errorf("address: %w", err))
	}
	if c.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("thread_pool_size must be positive, got %d", c.PoolSize))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.StorageTarget == "" {
		errs = append(errs, errors.New("target must not be empty"))
	}
	if c.PruneInterval <= 0 {
		errs = append(errs, fmt.Errorf("prune_interval must be positive, got %s", c.PruneInterval))
	}
	if c.PeerTTL <= 0 {
		errs = append(errs, fmt.Errorf("peer_ttl must be positive, got %s", c.PeerTTL))
	}
	return errors.Join(errs...)
}
