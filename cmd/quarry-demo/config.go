package main

import (
	"fmt"

	"github.com/ridge/quarry/codec"
	"github.com/spf13/pflag"
	"golang.org/x/exp/slices"
)

var backends = []string{"memory", "sqlite", "postgres", "bolt"}

type config struct {
	backend   string
	dsn       string
	codec     string
	cacheSize int
	metrics   bool
	listen    string
}

func (c *config) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.backend, "backend", "memory", "storage backend: memory, sqlite, postgres or bolt")
	fs.StringVar(&c.dsn, "dsn", "", "database DSN for postgres, file path for sqlite and bolt")
	fs.StringVar(&c.codec, "codec", codec.Default.Name(), fmt.Sprintf("document codec, one of %v", codec.Names()))
	fs.IntVar(&c.cacheSize, "cache-size", 0, "cache up to this many records by id (0 disables the cache)")
	fs.BoolVar(&c.metrics, "metrics", false, "print store metrics after the run")
	fs.StringVar(&c.listen, "listen", "", "serve the store over HTTP on this address after the run (host:port or unix:/path)")
}

func (c config) validate() error {
	if !slices.Contains(backends, c.backend) {
		return fmt.Errorf("unknown backend %q, expected one of %v", c.backend, backends)
	}
	if _, err := codec.ByName(c.codec); err != nil {
		return err
	}
	if c.cacheSize < 0 {
		return fmt.Errorf("invalid --cache-size %d", c.cacheSize)
	}
	switch c.backend {
	case "postgres", "bolt":
		if c.dsn == "" {
			return fmt.Errorf("--dsn is required for backend %s", c.backend)
		}
	}
	return nil
}
