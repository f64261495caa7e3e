package reconcile

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrBadSignature covers every verification failure: bad header shape,
// mismatched digest, or an impossible timestamp. The caller gets no more
// detail than that.
var ErrBadSignature = errors.New("notification signature verification failed")

// SignatureHeader carries the processor signature over the raw request body,
// in the form "t=<unix seconds>,v1=<hex hmac-sha256>". The digest is computed
// over "<t>.<body>" so the timestamp cannot be swapped out under a replay.
const SignatureHeader = "X-Payment-Signature"

func VerifySignature(payload []byte, header, secret string, now time.Time, skew time.Duration) error {
	if secret == "" {
		return fmt.Errorf("webhook secret is not configured")
	}

	ts, digest, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	if skew > 0 {
		issued := time.Unix(ts, 0)
		if issued.Before(now.Add(-skew)) || issued.After(now.Add(skew)) {
			return ErrBadSignature
		}
	}

	expected := computeSignature(payload, secret, ts)
	if !hmac.Equal([]byte(expected), []byte(digest)) {
		return ErrBadSignature
	}

	return nil
}

// Sign produces a header value accepted by VerifySignature. Used by tests and
// by the dev notifier tooling.
func Sign(payload []byte, secret string, now time.Time) string {
	ts := now.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, computeSignature(payload, secret, ts))
}

func parseSignatureHeader(header string) (int64, string, error) {
	var (
		ts     int64
		digest string
	)

	for _, part := range strings.Split(strings.TrimSpace(header), ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, "", ErrBadSignature
			}
			ts = parsed
		case "v1":
			digest = value
		}
	}

	if ts <= 0 || digest == "" {
		return 0, "", ErrBadSignature
	}

	return ts, digest, nil
}

func computeSignature(payload []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
