package types

import (
	"errors"

	"github.com/google/uuid"
)

// Config holds parameters for Store.Attach.
type Config struct {
	// DataDir is the directory holding the store's database file.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// StoreName names the database file (without extension). Defaults to
	// "careledger".
	StoreName string `json:"store_name" yaml:"store_name"`

	// ProcessID is this store instance's synchronization identity. Leave
	// empty to generate one on first attach and persist it with the data.
	ProcessID string `json:"process_id" yaml:"process_id"`

	// LogLevel selects the logging verbosity: debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level"`
}

// Config validation errors.
var (
	ErrDataDirEmpty     = errors.New("data dir must not be empty")
	ErrProcessIDInvalid = errors.New("process id must be a valid UUID")
)

// Validate checks that the Config is well-formed. It returns a sentinel
// error from this package on failure.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return ErrDataDirEmpty
	}
	if c.ProcessID != "" {
		if _, err := uuid.Parse(c.ProcessID); err != nil {
			return ErrProcessIDInvalid
		}
	}
	return nil
}
