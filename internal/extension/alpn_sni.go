package extension

import "github.com/go-hitls/tlscore/internal/collab"

// NegotiateALPN implements spec.md §4.4's ALPN rule: invoke the
// configured callback with the client's offered protocol list. OK
// copies the chosen protocol into the response; NOACK proceeds without
// ALPN; anything else sends the fatal no_application_protocol alert.
func NegotiateALPN(p *Policy, offered []string) (chosen string, err error) {
	if p.ALPNCallback == nil || len(offered) == 0 {
		return "", nil
	}
	chosen, result := p.ALPNCallback(offered)
	switch result {
	case ALPNOK:
		return chosen, nil
	case ALPNNoAck:
		return "", nil
	default:
		return "", errf(collab.AlertNoApplicationProtocol, "alpn callback rejected client offer")
	}
}

// NegotiateSNI implements spec.md §4.4's SNI rule: invoke the
// configured callback with the client's server_name. NOACK continues
// the handshake with sniOK=false (the caller tracks that on the
// connection); a fatal result sends unrecognized_name.
func NegotiateSNI(p *Policy, serverName string) (sniOK bool, err error) {
	if p.SNICallback == nil || serverName == "" {
		return false, nil
	}
	switch p.SNICallback(serverName) {
	case SNIOK:
		return true, nil
	case SNINoAck:
		return false, nil
	default:
		return false, errf(collab.AlertUnrecognizedName, "sni callback rejected server_name %q", serverName)
	}
}
