package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// signatureVersion is the only signing scheme the platform currently emits.
const signatureVersion = "v0"

// maxSignatureAge rejects replayed requests.
const maxSignatureAge = 5 * time.Minute

// VerifySignature checks the request signature header against an HMAC-SHA256
// of "v0:<timestamp>:<body>" keyed with the signing secret, using a
// constant-time comparison. now is injectable for tests.
func VerifySignature(signingSecret, timestamp, signature string, body []byte, now time.Time) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid request timestamp: %w", err)
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > maxSignatureAge || age < -maxSignatureAge {
		return fmt.Errorf("request timestamp outside allowed window")
	}

	mac := hmac.New(sha256.New, []byte(signingSecret))
	fmt.Fprintf(mac, "%s:%s:", signatureVersion, timestamp)
	mac.Write(body)
	expected := signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))

	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return fmt.Errorf("request signature mismatch")
	}
	return nil
}
