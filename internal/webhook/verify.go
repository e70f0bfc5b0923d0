package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureTolerance bounds how old a webhook signature timestamp may be,
// preventing replay of captured deliveries.
const SignatureTolerance = 300 * time.Second

var (
	ErrInvalidSignatureFormat = errors.New("invalid signature format")
	ErrTimestampOutOfRange    = errors.New("timestamp outside tolerance window")
	ErrSignatureMismatch      = errors.New("signature mismatch")
)

// Verifier checks billing webhook signatures. The provider signs
// `timestamp.body` with HMAC-SHA256 and sends a "t=<ts>,v1=<hex>" header.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier creates a verifier for the given webhook secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

// Verify validates the signature header against the raw request body.
func (v *Verifier) Verify(body []byte, header string) error {
	var tsPart, sigPart string
	for _, elem := range strings.Split(header, ",") {
		switch {
		case strings.HasPrefix(elem, "t="):
			tsPart = strings.TrimPrefix(elem, "t=")
		case strings.HasPrefix(elem, "v1="):
			sigPart = strings.TrimPrefix(elem, "v1=")
		}
	}
	if tsPart == "" || sigPart == "" {
		return ErrInvalidSignatureFormat
	}

	timestamp, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrInvalidSignatureFormat)
	}

	age := v.now().Unix() - timestamp
	if age < 0 {
		age = -age
	}
	if time.Duration(age)*time.Second > SignatureTolerance {
		return ErrTimestampOutOfRange
	}

	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if subtle.ConstantTimeCompare([]byte(expected), []byte(sigPart)) != 1 {
		return ErrSignatureMismatch
	}
	return nil
}
