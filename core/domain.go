package core

import (
	"fmt"
	"strings"
)

const (
	ChannelHandshake   = "/meta/handshake"
	ChannelConnect     = "/meta/connect"
	ChannelSubscribe   = "/meta/subscribe"
	ChannelUnsubscribe = "/meta/unsubscribe"
	ChannelDisconnect  = "/meta/disconnect"
)

// Message is a single JSON object exchanged with the streaming endpoint.
type Message map[string]any

func (m Message) Channel() string {
	return readString(m["channel"])
}

// Subscription returns the channel a /meta/subscribe message targets.
func (m Message) Subscription() string {
	return readString(m["subscription"])
}

func (m Message) Data() map[string]any {
	data, _ := m["data"].(map[string]any)
	return data
}

// Ext returns the message extension object, creating it when create is true.
func (m Message) Ext(create bool) map[string]any {
	if m == nil {
		return nil
	}
	if ext, ok := m["ext"].(map[string]any); ok {
		return ext
	}
	if !create {
		return nil
	}
	ext := map[string]any{}
	m["ext"] = ext
	return ext
}

func (m Message) Clone() Message {
	if m == nil {
		return nil
	}
	out := make(Message, len(m))
	for key, value := range m {
		if nested, ok := value.(map[string]any); ok {
			out[key] = copyAnyMap(nested)
			continue
		}
		out[key] = value
	}
	return out
}

// ReplayOption is a symbolic replay id understood by the server.
type ReplayOption int64

const (
	ReplayNewEvents ReplayOption = -1
	ReplayAllEvents ReplayOption = -2
)

func (o ReplayOption) Valid() bool {
	return o == ReplayNewEvents || o == ReplayAllEvents
}

func (o ReplayOption) String() string {
	switch o {
	case ReplayNewEvents:
		return "NEW_EVENTS"
	case ReplayAllEvents:
		return "ALL_EVENTS"
	default:
		return fmt.Sprintf("ReplayOption(%d)", int64(o))
	}
}

// ParseReplayOption accepts the symbolic names and their numeric values.
func ParseReplayOption(value string) (ReplayOption, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "NEW_EVENTS", "NEW", "-1":
		return ReplayNewEvents, nil
	case "ALL_EVENTS", "ALL", "-2":
		return ReplayAllEvents, nil
	default:
		return 0, fmt.Errorf("core: invalid replay option %q", value)
	}
}

// ReplayMarker records the creation date and replay id of the last consumed
// message of a subscription.
type ReplayMarker struct {
	Date     string `json:"date"`
	ReplayID int64  `json:"replay_id"`
}

func (m ReplayMarker) IsZero() bool {
	return strings.TrimSpace(m.Date) == "" && m.ReplayID == 0
}

// Credential is the result of a successful token exchange. The zero value
// means unauthenticated.
type Credential struct {
	TokenType   string `json:"token_type"`
	AccessToken string `json:"access_token"`
	InstanceURL string `json:"instance_url"`
	IdentityURL string `json:"id"`
	Signature   string `json:"signature"`
	IssuedAt    string `json:"issued_at"`
}

func (c Credential) Authorized() bool {
	return strings.TrimSpace(c.TokenType) != "" && strings.TrimSpace(c.AccessToken) != ""
}

func (c Credential) AuthorizationHeader() string {
	return c.TokenType + " " + c.AccessToken
}

// StoragePolicy decides when the replay marker of a received message is
// stored.
type StoragePolicy string

const (
	StoragePolicyAutomatic StoragePolicy = "automatic"
	StoragePolicyManual    StoragePolicy = "manual"
)

func (p StoragePolicy) Valid() bool {
	return p == StoragePolicyAutomatic || p == StoragePolicyManual
}

func ParseStoragePolicy(value string) (StoragePolicy, error) {
	policy := StoragePolicy(strings.ToLower(strings.TrimSpace(value)))
	if policy == "" {
		return StoragePolicyAutomatic, nil
	}
	if !policy.Valid() {
		return "", fmt.Errorf("core: invalid storage policy %q", value)
	}
	return policy, nil
}

func readString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	default:
		return ""
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		if nested, ok := value.(map[string]any); ok {
			out[key] = copyAnyMap(nested)
			continue
		}
		out[key] = value
	}
	return out
}
