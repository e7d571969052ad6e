// Package lifecycle implements the Call Lifecycle Manager: client_id
// resolution from caller/destination/SIP-header hints, the process-wide
// CallRegistry of active sessions, and the init/transfer/hangup entry
// points the init channel (internal/transport/initserver) drives.
package lifecycle

import (
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/libertycall/ivr-gateway/internal/logging"
)

// ClientMapping is the on-disk client_mapping.json shape: prefix/exact
// lookup tables keyed by source, plus a system-wide default.
type ClientMapping struct {
	Mappings struct {
		ByCallerNumber      map[string]string `json:"by_caller_number"`
		ByDestinationNumber map[string]string `json:"by_destination_number"`
		BySIPHeader         map[string]string `json:"by_sip_header"`
	} `json:"mappings"`
	DefaultClientID string `json:"default_client_id"`
}

func defaultMapping() ClientMapping {
	m := ClientMapping{DefaultClientID: "000"}
	m.Mappings.ByCallerNumber = map[string]string{}
	m.Mappings.ByDestinationNumber = map[string]string{}
	m.Mappings.BySIPHeader = map[string]string{}
	return m
}

// ClientMapper resolves client_id from call-init hints, caching the
// mapping file in memory keyed by mtime — reload only happens when the
// file on disk is newer than what's cached, matching client_mapper.py's
// `_mapping_cache`/`_mtime` behavior.
type ClientMapper struct {
	path string
	log  logging.Logger

	mu      sync.Mutex
	cached  ClientMapping
	mtime   int64
	loaded  bool
}

// NewClientMapper builds a mapper reading from path (client_mapping.json).
func NewClientMapper(path string, log logging.Logger) *ClientMapper {
	if log == nil {
		log = logging.NewNop()
	}
	return &ClientMapper{path: path, log: log}
}

func (m *ClientMapper) load() ClientMapping {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, err := os.Stat(m.path)
	if err != nil {
		if !m.loaded {
			m.log.Warnw("client_mapping_missing", "path", m.path)
			m.cached = defaultMapping()
			m.loaded = true
		}
		return m.cached
	}

	mtime := info.ModTime().UnixNano()
	if m.loaded && mtime <= m.mtime {
		return m.cached
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		m.log.Warnw("client_mapping_read_failed", "path", m.path, "error", err)
		if !m.loaded {
			m.cached = defaultMapping()
			m.loaded = true
		}
		return m.cached
	}

	var parsed ClientMapping
	if err := json.Unmarshal(data, &parsed); err != nil {
		m.log.Warnw("client_mapping_parse_failed", "path", m.path, "error", err)
		if !m.loaded {
			m.cached = defaultMapping()
			m.loaded = true
		}
		return m.cached
	}
	if parsed.DefaultClientID == "" {
		parsed.DefaultClientID = "000"
	}
	m.cached = parsed
	m.mtime = mtime
	m.loaded = true
	m.log.Debugw("client_mapping_loaded", "path", m.path)
	return m.cached
}

// Resolve implements the priority ladder from §4.10/client_mapper.py:
// explicit override > SIP header > destination number > caller number >
// fallback > mapping file's default_client_id.
func (m *ClientMapper) Resolve(override, callerNumber, destinationNumber string, sipHeaders map[string]string, fallback string) string {
	if override != "" {
		return override
	}
	mapping := m.load()

	if len(sipHeaders) > 0 {
		for header := range mapping.Mappings.BySIPHeader {
			if v, ok := sipHeaders[header]; ok {
				return v
			}
		}
	}
	if destinationNumber != "" {
		if id, ok := mapping.Mappings.ByDestinationNumber[destinationNumber]; ok {
			return id
		}
		for prefix, id := range mapping.Mappings.ByDestinationNumber {
			if strings.HasPrefix(destinationNumber, prefix) {
				return id
			}
		}
	}
	if callerNumber != "" {
		for prefix, id := range mapping.Mappings.ByCallerNumber {
			if strings.HasPrefix(callerNumber, prefix) {
				return id
			}
		}
	}
	if fallback != "" {
		return fallback
	}
	return mapping.DefaultClientID
}
