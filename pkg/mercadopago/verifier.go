package mercadopago

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	signatureHeader = "x-signature"
	requestIDHeader = "x-request-id"
	dataIDParam     = "data.id"
)

// Verifier checks webhook notification signatures. Stateless; must run
// before any state mutation.
type Verifier struct {
	secret string
}

// NewVerifier builds a verifier around the shared webhook secret.
func NewVerifier(secret string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errWebhookSecretRequired
	}
	return &Verifier{secret: secret}, nil
}

// Verify reports whether the request carries a valid provider signature.
// The signature header has the form "ts=<unix>,v1=<hex hmac>"; the digest is
// HMAC-SHA256 over the manifest "id:<dataId>;request-id:<requestId>;ts:<ts>;".
// Any missing or unparsable component rejects the notification.
func (v *Verifier) Verify(header http.Header, query url.Values) bool {
	if v == nil {
		return false
	}

	signature := strings.TrimSpace(header.Get(signatureHeader))
	requestID := strings.TrimSpace(header.Get(requestIDHeader))
	dataID := strings.TrimSpace(query.Get(dataIDParam))
	if signature == "" || requestID == "" || dataID == "" {
		return false
	}

	ts, hash, ok := parseSignature(signature)
	if !ok {
		return false
	}

	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", dataID, requestID, ts)
	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write([]byte(manifest))
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(hash))
}

func parseSignature(signature string) (ts, hash string, ok bool) {
	for _, part := range strings.Split(signature, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			ts = strings.TrimSpace(value)
		case "v1":
			hash = strings.TrimSpace(value)
		}
	}
	if ts == "" || hash == "" {
		return "", "", false
	}
	return ts, hash, true
}
