package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

// Headers carrying the provider signature and its unix timestamp.
const (
	SignatureHeader = "X-Video-Signature"
	TimestampHeader = "X-Video-Request-Timestamp"

	signatureVersion = "v0"
)

// Verifier checks HMAC-SHA256 signatures on incoming provider callbacks.
// The signed message is "v0:<timestamp>:<body>" and the header value is "v0=<hex digest>".
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier constructs a verifier. Timestamps further than tolerance from
// the current time are rejected.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &Verifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

// Sign returns the header value for body sent at ts.
func (v *Verifier) Sign(ts time.Time, body []byte) string {
	return signatureVersion + "=" + v.digest(strconv.FormatInt(ts.Unix(), 10), body)
}

// Verify validates signature and timestamp header values against body.
func (v *Verifier) Verify(signature, timestamp string, body []byte) error {
	if len(v.secret) == 0 {
		return appErrors.Clone(appErrors.ErrInternal, "webhook secret missing")
	}
	signature = strings.TrimSpace(signature)
	timestamp = strings.TrimSpace(timestamp)
	if signature == "" || timestamp == "" {
		return appErrors.Clone(appErrors.ErrInvalidSignature, "signature headers missing")
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return appErrors.Clone(appErrors.ErrInvalidSignature, "invalid signature timestamp")
	}
	skew := v.now().Sub(time.Unix(unix, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.tolerance {
		return appErrors.Clone(appErrors.ErrInvalidSignature, fmt.Sprintf("signature timestamp outside %s tolerance", v.tolerance))
	}

	provided, ok := strings.CutPrefix(signature, signatureVersion+"=")
	if !ok {
		return appErrors.Clone(appErrors.ErrInvalidSignature, "unsupported signature version")
	}
	expected := v.digest(timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(provided))) {
		return appErrors.Clone(appErrors.ErrInvalidSignature, "signature mismatch")
	}
	return nil
}

func (v *Verifier) digest(timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	_, _ = mac.Write([]byte(signatureVersion + ":" + timestamp + ":"))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
