// Package rtc builds the ICE configuration handed to clients at
// registration. Media never flows through this server.
package rtc

import (
	"fmt"
	"strings"

	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
)

const DefaultSTUN = "stun:stun.l.google.com:19302"

// ICEServers parses entries of the form "url" or "url|username|credential".
func ICEServers(entries []string) ([]webrtc.ICEServer, error) {
	if len(entries) == 0 {
		entries = []string{DefaultSTUN}
	}
	out := make([]webrtc.ICEServer, 0, len(entries))
	for _, e := range entries {
		parts := strings.Split(strings.TrimSpace(e), "|")
		if _, err := stun.ParseURI(parts[0]); err != nil {
			return nil, fmt.Errorf("ice server %q: %w", parts[0], err)
		}
		srv := webrtc.ICEServer{URLs: []string{parts[0]}}
		switch len(parts) {
		case 1:
		case 3:
			srv.Username = parts[1]
			srv.Credential = parts[2]
		default:
			return nil, fmt.Errorf("ice server %q: want url or url|username|credential", e)
		}
		out = append(out, srv)
	}
	return out, nil
}
