package lifecycle

import (
	"strings"

	"github.com/emiago/sipgo/sip"
)

// extractSIPUser pulls the user part out of a header value that carries a
// full SIP URI (e.g. a P-Asserted-Identity or From header forwarded
// verbatim by the softswitch: "<sip:09011112222@host;user=phone>"),
// falling back to the raw value unchanged when it isn't a SIP URI at all
// (plain caller-id strings are far more common in practice).
func extractSIPUser(headerValue string) string {
	raw := strings.Trim(headerValue, "<> ")
	if !strings.HasPrefix(raw, "sip:") && !strings.HasPrefix(raw, "sips:") {
		return headerValue
	}

	var uri sip.Uri
	if err := sip.ParseUri(raw, &uri); err != nil {
		return headerValue
	}
	if uri.User == "" {
		return headerValue
	}
	return uri.User
}
