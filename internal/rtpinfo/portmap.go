// Package rtpinfo implements the RTP UDP transport's PortMap by scanning
// the softswitch's own RTP info files (/tmp/rtp_info_*.txt), the same
// source call_uuid_manager.py/_find_rtp_info_by_port use to resolve a
// channel UUID from a bare RTP port when no faster path is available.
//
// Each file is key=value text containing at least a "uuid=" line and
// "local=IP:PORT"/"remote=IP:PORT" lines; a file is relevant to a port if
// ":PORT" appears anywhere in its content, matching the original's
// substring check rather than a strict local/remote field parse.
package rtpinfo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/libertycall/ivr-gateway/internal/logging"
)

// Resolver maps a binding that RTP frames arrive on (UDP source port) back
// to the call_id owning the channel UUID the softswitch burned into its
// rtp_info file for that call.
type Resolver struct {
	glob       string
	log        logging.Logger
	uuidToCall func(uuid string) (string, bool)

	mu    sync.Mutex
	cache map[int]string // port -> uuid, refreshed on miss
}

// NewResolver builds a Resolver scanning glob (default
// "/tmp/rtp_info_*.txt") on every cache miss. uuidToCall translates a
// channel UUID to the call_id the lifecycle registry knows it by.
func NewResolver(glob string, uuidToCall func(uuid string) (string, bool), log logging.Logger) *Resolver {
	if glob == "" {
		glob = "/tmp/rtp_info_*.txt"
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Resolver{glob: glob, uuidToCall: uuidToCall, log: log, cache: make(map[int]string)}
}

// CallIDForPort implements rtpserver.PortMap.
func (r *Resolver) CallIDForPort(port int) (string, bool) {
	r.mu.Lock()
	uuid, ok := r.cache[port]
	r.mu.Unlock()
	if ok {
		return r.uuidToCall(uuid)
	}

	uuid, ok = r.findByPort(port)
	if !ok {
		return "", false
	}
	r.mu.Lock()
	r.cache[port] = uuid
	r.mu.Unlock()
	return r.uuidToCall(uuid)
}

// Forget drops any cached port->uuid binding for the given channel uuid,
// so a reused local port doesn't resolve to a dead call.
func (r *Resolver) Forget(uuid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for port, u := range r.cache {
		if u == uuid {
			delete(r.cache, port)
		}
	}
}

func (r *Resolver) findByPort(port int) (string, bool) {
	files, err := filepath.Glob(r.glob)
	if err != nil {
		r.log.Warnw("rtp_info_glob_failed", "glob", r.glob, "error", err)
		return "", false
	}

	needle := fmt.Sprintf(":%d", port)
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		content := string(data)
		if !strings.Contains(content, needle) {
			continue
		}
		for _, line := range strings.Split(content, "\n") {
			if uuid, ok := strings.CutPrefix(line, "uuid="); ok {
				return strings.TrimSpace(uuid), true
			}
		}
	}
	r.log.Debugw("rtp_info_not_found", "port", port, "files_searched", len(files))
	return "", false
}
