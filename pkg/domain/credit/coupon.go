package credit

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"strings"
)

// ValidCouponCodes maps coupon codes to their entitlements. Codes that
// bypass payment grant a scan credit without a checkout session.
var ValidCouponCodes = map[string]struct{ BypassPayment bool }{
	"DEVTEST": {BypassPayment: true},
}

// CodeValidForBypass reports whether the code grants a free credit.
func CodeValidForBypass(code string) bool {
	entry, ok := ValidCouponCodes[code]
	return ok && entry.BypassPayment
}

type couponPayload struct {
	Code string `json:"code"`
}

// SignCouponToken signs a coupon code into a payload.signature token.
// Returns empty when no secret is configured.
func SignCouponToken(secret, code string) string {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ""
	}
	payload, _ := json.Marshal(couponPayload{Code: code})
	payloadB64 := base64.RawURLEncoding.EncodeToString(payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payloadB64))
	return payloadB64 + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyCouponToken checks the token's signature and that the embedded
// code is a known payment-bypass coupon. Returns the code on success.
func VerifyCouponToken(secret, token string) (string, bool) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", false
	}
	payloadB64, sigB64, found := strings.Cut(token, ".")
	if !found {
		return "", false
	}
	sig, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil {
		return "", false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payloadB64))
	expected := mac.Sum(nil)
	if len(sig) != len(expected) || subtle.ConstantTimeCompare(sig, expected) != 1 {
		return "", false
	}
	payloadRaw, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return "", false
	}
	var payload couponPayload
	if err := json.Unmarshal(payloadRaw, &payload); err != nil {
		return "", false
	}
	if payload.Code == "" || !CodeValidForBypass(payload.Code) {
		return "", false
	}
	return payload.Code, true
}
