package punwave

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrParse indicates a profile payload could not be decoded.
var ErrParse = errors.New("punwave: invalid profile payload")

// Profile is the normalized Punwave user profile.
type Profile struct {
	// Provider is always "punwave" for fetched profiles.
	Provider string `json:"provider"`

	// ID is the user's Punwave ID.
	ID string `json:"id"`

	// Username is the user's Punwave handle.
	Username string `json:"username,omitempty"`

	// DisplayName is the user's full name.
	DisplayName string `json:"displayName,omitempty"`

	Name Name `json:"name"`

	// Emails holds the email address granted by the user, if any.
	Emails []Email `json:"emails,omitempty"`

	// Raw is the response body the profile was parsed from.
	Raw string `json:"_raw,omitempty"`

	// JSON is the decoded response body.
	JSON map[string]any `json:"_json,omitempty"`
}

// Name holds the structured parts of a user's name.
type Name struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// Email is a single email address entry.
type Email struct {
	Value string `json:"value"`
}

// Payload is the profile document returned by the Punwave users endpoint.
// Older accounts carry their names in a nested profile object.
type Payload struct {
	ID        ID             `json:"id"`
	Username  string         `json:"username"`
	Name      string         `json:"name"`
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
	Email     string         `json:"email"`
	Profile   *NestedProfile `json:"profile"`
}

// NestedProfile is the legacy nested name block.
type NestedProfile struct {
	Name      string `json:"name"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// ID is a user identifier that Punwave may encode as a JSON string or number.
type ID string

// UnmarshalJSON accepts any scalar identifier. Objects and arrays yield an
// empty ID.
func (id *ID) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	*id = ID(scalarString(v))
	return nil
}

// Parse normalizes a Punwave profile payload. src is either JSON text
// (string, []byte, json.RawMessage) or an already decoded payload
// (map[string]any, Payload, *Payload). The returned profile does not have
// Provider, Raw or JSON set.
//
// Fields are read best-effort: a field of an unexpected type is treated as
// absent.
func Parse(src any) (*Profile, error) {
	payload, err := decodePayload(src)
	if err != nil {
		return nil, err
	}
	return normalize(payload), nil
}

func decodePayload(src any) (*Payload, error) {
	var data []byte
	switch v := src.(type) {
	case *Payload:
		if v == nil {
			return nil, fmt.Errorf("%w: nil payload", ErrParse)
		}
		return v, nil
	case Payload:
		return &v, nil
	case map[string]any:
		if v == nil {
			return nil, fmt.Errorf("%w: nil payload", ErrParse)
		}
		return payloadFromMap(v), nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrParse, src)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrParse)
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON object, got %T", ErrParse, doc)
	}
	return payloadFromMap(obj), nil
}

func payloadFromMap(m map[string]any) *Payload {
	p := &Payload{
		ID:        ID(scalarString(m["id"])),
		Username:  stringField(m, "username"),
		Name:      stringField(m, "name"),
		FirstName: stringField(m, "firstName"),
		LastName:  stringField(m, "lastName"),
		Email:     stringField(m, "email"),
	}

	if nested, ok := m["profile"].(map[string]any); ok {
		p.Profile = &NestedProfile{
			Name:      stringField(nested, "name"),
			FirstName: stringField(nested, "firstName"),
			LastName:  stringField(nested, "lastName"),
		}
	}

	return p
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// scalarString renders a decoded JSON scalar as a string.
func scalarString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case map[string]any, []any:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func normalize(p *Payload) *Profile {
	var nested NestedProfile
	if p.Profile != nil {
		nested = *p.Profile
	}

	profile := &Profile{
		ID:          string(p.ID),
		Username:    p.Username,
		DisplayName: firstNonEmpty(p.Name, nested.Name),
		Name: Name{
			FirstName: firstNonEmpty(p.FirstName, nested.FirstName),
			LastName:  firstNonEmpty(p.LastName, nested.LastName),
		},
	}

	if p.Email != "" {
		profile.Emails = []Email{{Value: p.Email}}
	}

	return profile
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
