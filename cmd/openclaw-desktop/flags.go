package main

import "time"

// GlobalFlags holds persistent flags shared by every subcommand.
type GlobalFlags struct {
	ConfigPath string
	LogLevel   string
	// API connection; empty APIUrl runs commands in-process
	APIUrl     string
	APITimeout time.Duration
}

// LogsFlags holds flags for the logs command
type LogsFlags struct {
	Lines  int
	Errors bool
	Clear  bool
	Follow bool
}

// HistoryFlags holds flags for the history command
type HistoryFlags struct {
	Limit int
}

// ServeFlags holds flags for the serve command
type ServeFlags struct {
	Listen    string
	BasePath  string
	Metrics   bool
	AutoStart bool
}
