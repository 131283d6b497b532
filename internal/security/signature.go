package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries the webhook signature.
//
// Format: t=<unix seconds>,v1=<hex hmac-sha256 of "<t>.<body>">
const SignatureHeader = "X-CaliSeed-Signature"

// DefaultSignatureTolerance is how far a signature timestamp may drift from
// the verifier's clock.
const DefaultSignatureTolerance = 5 * time.Minute

var (
	ErrSignatureMalformed = errors.New("signature: malformed header")
	ErrSignatureMismatch  = errors.New("signature: mismatch")
	ErrSignatureExpired   = errors.New("signature: timestamp outside tolerance")
)

// Sign returns the SignatureHeader value for body signed with secret at now.
func Sign(body []byte, secret string, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("signature: empty secret")
	}
	ts := strconv.FormatInt(now.Unix(), 10)
	return "t=" + ts + ",v1=" + computeHMAC(ts, body, secret), nil
}

// Verify checks header against body. Timestamps further than tolerance from
// now are rejected; a zero tolerance disables the check.
func Verify(body []byte, header, secret string, now time.Time, tolerance time.Duration) error {
	var ts, sig string
	for segment := range strings.SplitSeq(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(segment), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts = value
		case "v1":
			sig = value
		}
	}
	if ts == "" || sig == "" {
		return ErrSignatureMalformed
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrSignatureMalformed
	}

	if tolerance > 0 {
		drift := now.Sub(time.Unix(unix, 0))
		if drift < 0 {
			drift = -drift
		}
		if drift > tolerance {
			return ErrSignatureExpired
		}
	}

	if !hmac.Equal([]byte(sig), []byte(computeHMAC(ts, body, secret))) {
		return ErrSignatureMismatch
	}
	return nil
}

func computeHMAC(ts string, body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
