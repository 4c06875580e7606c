package main

// GlobalFlags holds the persistent flags shared by every subcommand.
type GlobalFlags struct {
	ConfigPath string // path to spiderctl.toml, doubles as the project root marker
}

// LogsFlags holds flags for the logs subcommand.
type LogsFlags struct {
	Lines int
}

// ServeFlags holds flags for the serve subcommand.
type ServeFlags struct {
	Listen string
}
