package session

import (
	"encoding/json"
	"strings"

	"postdesk/internal/auth/token"
)

// User is the authenticated user's record as the server sent it, plus any
// fields filled in from the token. The login endpoint may spell the id and
// username fields either "id"/"username" or "Id"/"Username"; Normalize makes
// both spellings present, and the accessors below accept either.
type User map[string]interface{}

// Email returns the record's email, or "".
func (u User) Email() string {
	return token.String(u["email"])
}

// ID returns the numeric id from "id", falling back to "Id".
func (u User) ID() (int64, bool) {
	for _, key := range []string{"id", "Id"} {
		if v, ok := u[key]; ok && token.Truthy(v) {
			if id, ok := token.ParseInt(v); ok {
				return id, true
			}
		}
	}
	return 0, false
}

// Username returns "username", falling back to "Username".
func (u User) Username() string {
	if s := token.String(u["username"]); s != "" {
		return s
	}
	return token.String(u["Username"])
}

// DisplayName is the best human label the record offers.
func (u User) DisplayName() string {
	if s := u.Username(); s != "" {
		return s
	}
	if s := token.String(u["name"]); s != "" {
		return s
	}
	return u.Email()
}

// hasName reports whether the record carries a username or a display name.
func (u User) hasName() bool {
	return token.Truthy(u["username"]) || token.Truthy(u["name"])
}

// Normalize mirrors id/Id and username/Username onto each other. When one
// spelling is set and the other is not, the set value is copied (ids are
// coerced to integers). Two differing values are left as they are.
func (u User) Normalize() {
	switch {
	case token.Truthy(u["Id"]) && !token.Truthy(u["id"]):
		if id, ok := token.ParseInt(u["Id"]); ok {
			u["id"] = id
		}
	case token.Truthy(u["id"]) && !token.Truthy(u["Id"]):
		if id, ok := token.ParseInt(u["id"]); ok {
			u["Id"] = id
		}
	}

	switch {
	case token.Truthy(u["Username"]) && !token.Truthy(u["username"]):
		u["username"] = u["Username"]
	case token.Truthy(u["username"]) && !token.Truthy(u["Username"]):
		u["Username"] = u["username"]
	}
}

// Clone returns a deep copy so snapshots never alias manager state.
func (u User) Clone() User {
	if u == nil {
		return nil
	}
	return User(cloneMap(u))
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		return cloneMap(x)
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// fillUsername derives a missing username from the claims' name hints, then
// from the local part of fallbackEmail.
func (u User) fillUsername(claims token.Claims, fallbackEmail string) {
	if token.Truthy(u["username"]) {
		return
	}
	name := claims.NameHint()
	if name == "" {
		name = localPart(fallbackEmail)
	}
	if name != "" {
		u["username"] = name
	}
}

func localPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

func decodeUser(raw string) (User, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var u User
	if err := dec.Decode(&u); err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errNotObject
	}
	return u, nil
}
