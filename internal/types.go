package internal

import "github.com/sensiblebit/revcheck/internal/crlstore"

// Config holds the runtime configuration of a scan.
type Config struct {
	InputPath string
	Passwords []string
	Store     *crlstore.MemStore
	Limits    ArchiveLimits
}
