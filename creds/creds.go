// Package creds materializes an opaque credential string to a local file so
// that a spawned console program can read it at startup. The credential is
// provisioned out-of-band (typically via an environment variable on the host)
// and written verbatim; no structure is imposed on it.
package creds

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// DefaultPath is where the credential file is written unless configured otherwise.
const DefaultPath = "creds.json"

// Materializer writes a credential blob to a fixed path. The write overwrites
// any previous content, so materializing the same value twice is idempotent.
type Materializer struct {
	Log *zap.SugaredLogger

	// Path is the file to write. Defaults to DefaultPath if empty.
	Path string

	// Value is the raw credential blob. If empty, Materialize is a no-op
	// beyond logging a warning.
	Value string
}

// Materialize writes the credential value to the configured path.
// A missing value is not an error; the console program decides whether it can
// run without credentials.
func (m *Materializer) Materialize() error {
	path := m.Path
	if path == "" {
		path = DefaultPath
	}
	if m.Value == "" {
		m.Log.Warnf("no credential value provided, skipping write to %s", path)
		return nil
	}
	if err := os.WriteFile(path, []byte(m.Value), 0o600); err != nil {
		return fmt.Errorf("writing credential file %s: %w", path, err)
	}
	m.Log.Debugf("wrote %d credential bytes to %s", len(m.Value), path)
	return nil
}
