package config

import (
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Store publishes the current configuration document. Readers call Load once
// per iteration and keep the returned pointer for the whole iteration, so a
// concurrent Replace is never observed half-applied.
type Store struct {
	cur atomic.Pointer[Config]
}

// NewStore returns a Store holding cfg.
//
// Precondition: cfg must be non-nil and valid.
func NewStore(cfg *Config) *Store {
	s := &Store{}
	s.cur.Store(cfg)
	return s
}

// Load returns the current document. The result must not be mutated.
func (s *Store) Load() *Config {
	return s.cur.Load()
}

// Replace validates cfg and publishes it as the whole new document.
func (s *Store) Replace(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.cur.Store(cfg)
	return nil
}

// Watch reloads the file at path whenever it changes and replaces the stored
// document. An invalid edit keeps the previous document and is reported to
// onError; successful reloads are reported to onReload. Both callbacks may be
// nil.
//
// Viper's watcher goroutine lives for the remainder of the process.
func (s *Store) Watch(path string, onReload func(*Config), onError func(error)) error {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := LoadFromViper(v)
		if err == nil {
			err = s.Replace(cfg)
		}
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		if onReload != nil {
			onReload(cfg)
		}
	})
	v.WatchConfig()
	return nil
}

// Reload re-reads path once and replaces the stored document.
func (s *Store) Reload(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return cfg, s.Replace(cfg)
}
