package logger

import (
	"os"
	"runtime"
	"strconv"
)

// Config selects the log format and destination plus the static fields
// stamped on every line.
type Config struct {
	Level    Level
	Format   string // json, text, console
	Output   string // stdout, stderr, file
	FilePath string
	Rotation Rotation
	Fields   map[string]string
}

// Rotation sizes the rolling file used when Output is "file".
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

var DefaultRotation = Rotation{MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 28, Compress: true}

// Instance names the running process in every log line.
type Instance struct {
	Service     string
	Environment string
	Version     string
	Node        string // hostname when empty
}

func (i Instance) Fields() map[string]string {
	node := i.Node
	if node == "" {
		node, _ = os.Hostname()
	}

	fields := map[string]string{
		"service":    i.Service,
		"node":       node,
		"pid":        strconv.Itoa(os.Getpid()),
		"go_version": runtime.Version(),
	}
	if i.Environment != "" {
		fields["environment"] = i.Environment
	}
	if i.Version != "" {
		fields["version"] = i.Version
	}
	return fields
}

// NewConfig returns console output at info level. Extra fields cannot
// override the instance identity.
func NewConfig(inst Instance, extra map[string]string) *Config {
	fields := inst.Fields()
	for k, v := range extra {
		if _, taken := fields[k]; !taken {
			fields[k] = v
		}
	}

	return &Config{
		Level:    LevelInfo,
		Format:   "console",
		Output:   "stdout",
		Rotation: DefaultRotation,
		Fields:   fields,
	}
}
