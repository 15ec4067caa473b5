package mercadopago

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedRequest(t *testing.T, secret, dataID, requestID, ts string) (http.Header, url.Values) {
	t.Helper()

	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", dataID, requestID, ts)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	digest := hex.EncodeToString(mac.Sum(nil))

	header := http.Header{}
	header.Set("x-signature", fmt.Sprintf("ts=%s,v1=%s", ts, digest))
	header.Set("x-request-id", requestID)

	query := url.Values{}
	query.Set("data.id", dataID)
	return header, query
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	v, err := NewVerifier("s3cret")
	require.NoError(t, err)

	header, query := signedRequest(t, "s3cret", "123", "abc", "1690000000")
	assert.True(t, v.Verify(header, query))
}

func TestVerifyRejectsTamperedComponents(t *testing.T) {
	v, err := NewVerifier("s3cret")
	require.NoError(t, err)

	t.Run("flipped ts", func(t *testing.T) {
		header, query := signedRequest(t, "s3cret", "123", "abc", "1690000000")
		digest := header.Get("x-signature")
		header.Set("x-signature", "ts=1690000001,"+digest[len("ts=1690000000,"):])
		assert.False(t, v.Verify(header, query))
	})

	t.Run("flipped request id", func(t *testing.T) {
		header, query := signedRequest(t, "s3cret", "123", "abc", "1690000000")
		header.Set("x-request-id", "abd")
		assert.False(t, v.Verify(header, query))
	})

	t.Run("flipped data id", func(t *testing.T) {
		header, query := signedRequest(t, "s3cret", "123", "abc", "1690000000")
		query.Set("data.id", "124")
		assert.False(t, v.Verify(header, query))
	})

	t.Run("wrong secret", func(t *testing.T) {
		header, query := signedRequest(t, "other", "123", "abc", "1690000000")
		assert.False(t, v.Verify(header, query))
	})
}

func TestVerifyRejectsMissingFields(t *testing.T) {
	v, err := NewVerifier("s3cret")
	require.NoError(t, err)

	header, query := signedRequest(t, "s3cret", "123", "abc", "1690000000")

	t.Run("missing signature", func(t *testing.T) {
		h := header.Clone()
		h.Del("x-signature")
		assert.False(t, v.Verify(h, query))
	})

	t.Run("missing request id", func(t *testing.T) {
		h := header.Clone()
		h.Del("x-request-id")
		assert.False(t, v.Verify(h, query))
	})

	t.Run("missing data id", func(t *testing.T) {
		assert.False(t, v.Verify(header, url.Values{}))
	})

	t.Run("unparsable signature", func(t *testing.T) {
		h := header.Clone()
		h.Set("x-signature", "v2=deadbeef")
		assert.False(t, v.Verify(h, query))
	})
}
