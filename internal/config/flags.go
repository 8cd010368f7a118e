package config

import (
	"flag"

	"github.com/dmitrijs2005/ucenter-gateway/internal/flagx"
)

// parseFlags overlays the flags owned by this package:
//
//	-m string   backend mode ("remote" or "local")
//	-u string   UCenter base URL
//	-i string   application id
//	-k string   application secret
//	-d string   PostgreSQL DSN
//	-b bool     store identifier bindings in the database
//	-a string   HTTP listen address
//	-s string   session signing secret
//	-l string   log level
//
// Anything else on the command line is ignored. Parse errors panic.
func parseFlags(config *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-m", "-u", "-i", "-k", "-d", "-b", "-a", "-s", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.StringVar(&config.Mode, "m", config.Mode, "backend mode: remote or local")
	fs.StringVar(&config.BaseURL, "u", config.BaseURL, "UCenter base URL")
	fs.StringVar(&config.AppID, "i", config.AppID, "application id")
	fs.StringVar(&config.AppSecret, "k", config.AppSecret, "application secret")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.BoolVar(&config.BindingsEnabled, "b", config.BindingsEnabled, "enable identifier bindings")
	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "HTTP listen address")
	fs.StringVar(&config.SessionSecret, "s", config.SessionSecret, "session signing secret")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
