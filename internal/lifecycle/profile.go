package lifecycle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/libertycall/ivr-gateway/internal/logging"
)

// ClientProfile is the per-client override set loaded on call init (§3):
// audio directory, flow/keyword/template JSON overrides, and operator
// routing. Missing profiles fall back to a minimal default rather than
// failing the call, matching the Python original's try/except around
// `load_client_profile`.
type ClientProfile struct {
	ClientID         string                 `json:"client_id"`
	ClientName       string                 `json:"client_name"`
	AudioDir         string                 `json:"audio_dir"`
	Flow             map[string]interface{} `json:"flow,omitempty"`
	Keywords         map[string]interface{} `json:"keywords,omitempty"`
	Templates        map[string]interface{} `json:"templates,omitempty"`
	TransferNumber   string                 `json:"transfer_number"`
	CallerIDOverride string                 `json:"caller_id_override"`
	SaveCalls        bool                   `json:"save_calls"`
}

// DefaultProfile returns the minimal fallback profile used when no
// per-client config file exists, matching the Python's inline default
// dict (`base_dir`/`log_dir`/`config.client_name=Default`/`rules={}`).
func DefaultProfile(clientID, profileDir string) ClientProfile {
	return ClientProfile{
		ClientID:   clientID,
		ClientName: "Default",
		AudioDir:   filepath.Join(profileDir, clientID, "audio"),
		SaveCalls:  true,
	}
}

// ProfileLoader reads per-client profile JSON files from profileDir,
// falling back to DefaultProfile on any read/parse error.
type ProfileLoader struct {
	profileDir string
	log        logging.Logger
}

// NewProfileLoader builds a loader rooted at profileDir (one
// "<client_id>.json" file per client).
func NewProfileLoader(profileDir string, log logging.Logger) *ProfileLoader {
	if log == nil {
		log = logging.NewNop()
	}
	return &ProfileLoader{profileDir: profileDir, log: log}
}

// Load reads the profile for clientID, substituting DefaultProfile if the
// file is missing or malformed — the call must always proceed, even with
// default settings (§4.10: "Load ClientProfile; if missing, substitute a
// minimal default").
func (l *ProfileLoader) Load(clientID string) ClientProfile {
	path := filepath.Join(l.profileDir, fmt.Sprintf("%s.json", clientID))
	data, err := os.ReadFile(path)
	if err != nil {
		l.log.Warnw("client_profile_missing", "client_id", clientID, "path", path, "error", err)
		return DefaultProfile(clientID, l.profileDir)
	}

	var p ClientProfile
	if err := json.Unmarshal(data, &p); err != nil {
		l.log.Errorw("client_profile_parse_failed", "client_id", clientID, "path", path, "error", err)
		return DefaultProfile(clientID, l.profileDir)
	}
	if p.ClientID == "" {
		p.ClientID = clientID
	}
	if p.AudioDir == "" {
		p.AudioDir = filepath.Join(l.profileDir, clientID, "audio")
	}
	return p
}
