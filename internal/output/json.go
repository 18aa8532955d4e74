package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmagro/eth-fee-profiler/internal/fees"
)

// Mode tags every payload this tool emits.
const Mode = "zk_fee_profile"

// timestampLayout renders the UTC generation time inside the payload.
const timestampLayout = "2006-01-02 15:04:05"

// Envelope wraps a profile for downstream consumers. Fields are declared in
// alphabetical key order; the payload contract sorts all object keys.
type Envelope struct {
	Data           *fees.Profile `json:"data"`
	GeneratedAtUTC string        `json:"generatedAtUtc"`
	Mode           string        `json:"mode"`
}

// NewEnvelope stamps a profile with the generation time and payload mode.
func NewEnvelope(profile *fees.Profile, at time.Time) Envelope {
	return Envelope{
		Data:           profile,
		GeneratedAtUTC: at.UTC().Format(timestampLayout),
		Mode:           Mode,
	}
}

// CompactJSON renders the envelope on a single line without spaces.
func CompactJSON(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// PrettyJSON renders the envelope indented for human eyes.
func PrettyJSON(env Envelope) ([]byte, error) {
	return json.MarshalIndent(env, "", "  ")
}

// WriteFile saves a rendered payload, creating parent directories as needed.
func WriteFile(path string, payload []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
