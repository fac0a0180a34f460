package main

import (
	"msgqueue/internal/util"
	"time"
)

// Options are interpreted by github.com/jessevdk/go-flags. Flags left unset
// keep the value from the config file.
type Options struct {
	Config         string        `short:"f" long:"config" description:"config file (.toml, .yaml)"`
	LogLevel       string        `long:"log-level" description:"log level: debug, info, warn, error, none"`
	LogFile        string        `long:"log-file" description:"log file path, reopened on SIGHUP (default stderr)"`
	SqlDriver      string        `long:"sql-driver" description:"sql store driver: sqlite3, mysql, postgres"`
	SqlDSN         string        `long:"sql-dsn" description:"sql store data source name"`
	StatusInterval time.Duration `long:"status-interval" description:"log a status line every interval (0 disables)"`
	Once           bool          `long:"once" description:"run the demo exchange and exit"`
	Version        bool          `short:"v" long:"version" description:"display version information and exit"`
}

// overlay applies the flags that were set on top of cfg.
func (o *Options) overlay(cfg util.Configuration) util.Configuration {
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.LogFile != "" {
		cfg.LogFile = o.LogFile
	}
	if o.SqlDriver != "" {
		cfg.Sql.Driver = o.SqlDriver
	}
	if o.SqlDSN != "" {
		cfg.Sql.DSN = o.SqlDSN
	}
	if o.StatusInterval != 0 {
		cfg.StatusInterval = o.StatusInterval
	}
	return cfg
}

func (o *Options) configuration() (util.Configuration, error) {
	cfg := util.DefaultConfiguration()
	if o.Config != "" {
		var err error
		if cfg, err = util.LoadConfiguration(o.Config); err != nil {
			return cfg, err
		}
	}
	return o.overlay(cfg), nil
}
