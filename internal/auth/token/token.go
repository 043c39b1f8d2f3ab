// Package token decodes the claims carried in a bearer token's payload segment.
//
// Decoding never verifies a signature: the client only reads identity hints
// (user id, display names) the server embedded in a token it issued.
package token

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned for any token whose claims cannot be read.
var ErrMalformed = errors.New("malformed token")

// UIDClaim holds the numeric user id.
const UIDClaim = "uid"

// nameClaims are consulted in order when deriving a username.
var nameClaims = []string{"username", "unique_name", "name", "sub"}

// Claims is the decoded payload of a token.
// After Decode, a present "uid" claim is always an int64.
type Claims map[string]interface{}

var parser = jwt.NewParser(jwt.WithPaddingAllowed())

// toURLAlphabet lets payloads encoded with the standard base64 alphabet decode too.
var toURLAlphabet = strings.NewReplacer("+", "-", "/", "_")

// Decode reads the claims from the middle segment of a three-part token.
// Every failure wraps ErrMalformed; a token with an empty payload object
// decodes successfully to empty claims.
func Decode(raw string) (Claims, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformed, len(parts))
	}

	payload, err := parser.DecodeSegment(toURLAlphabet.Replace(parts[1]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !utf8.Valid(payload) {
		return nil, fmt.Errorf("%w: payload is not valid UTF-8", ErrMalformed)
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var claims Claims
	if err := dec.Decode(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if claims == nil {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrMalformed)
	}

	if v, ok := claims[UIDClaim]; ok && Truthy(v) {
		if uid, ok := ParseInt(v); ok {
			claims[UIDClaim] = uid
		} else {
			// non-numeric uid: the id is treated as unknown
			delete(claims, UIDClaim)
		}
	}
	return claims, nil
}

// UID returns the coerced user id. A zero id counts as absent.
func (c Claims) UID() (int64, bool) {
	uid, ok := c[UIDClaim].(int64)
	if !ok || uid == 0 {
		return 0, false
	}
	return uid, true
}

// NameHint returns the first non-empty of username, unique_name, name, sub.
func (c Claims) NameHint() string {
	for _, key := range nameClaims {
		if s := String(c[key]); s != "" {
			return s
		}
	}
	return ""
}

// ParseInt coerces v to an integer the way a lenient base-10 parser does:
// numbers are truncated, strings are read up to the first non-digit after
// optional whitespace and sign. It reports false when no digits were found.
func ParseInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		// exponent or fractional literal: use its value, not its text
		f, err := n.Float64()
		if err != nil || f >= math.MaxInt64 || f <= math.MinInt64 {
			return 0, false
		}
		return int64(f), true
	case string:
		return parseLeadingInt(n)
	default:
		return 0, false
	}
}

func parseLeadingInt(s string) (int64, bool) {
	s = strings.TrimLeft(s, " \t\n\r\v\f")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// String renders a claim or record value as text. Strings pass through,
// numbers use their shortest form, everything else is "".
func String(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case int64:
		return strconv.FormatInt(s, 10)
	case int:
		return strconv.Itoa(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

// Truthy reports whether v counts as set: not nil, false, zero, or "".
func Truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int64:
		return x != 0
	case int:
		return x != 0
	case float64:
		return x != 0 && !math.IsNaN(x)
	case json.Number:
		f, err := x.Float64()
		return err != nil || f != 0
	default:
		return true
	}
}
