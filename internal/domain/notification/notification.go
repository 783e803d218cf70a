package notification

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Type defines the notification types carried on the stream
type Type string

const (
	TypeConnectionAck Type = "connected"
	TypeHeartbeat     Type = "ping"
	TypeHazardEvent   Type = "hazard_event"
	TypeTest          Type = "test"
)

// Source identifies which producer created a hazard event
type Source string

const (
	SourceCitizenReport Source = "citizen_report"
	SourceRoadControl   Source = "road_control"
)

var (
	ErrNil         = errors.New("notification cannot be nil")
	ErrUnknownType = errors.New("unknown notification type")
	ErrReservedKey = errors.New("payload cannot override the type field")
)

// Notification is the unit of dissemination. It is serialized as a single
// flat JSON object: the type plus every payload field at the top level.
type Notification struct {
	Type    Type
	Payload map[string]any
}

// MarshalJSON flattens the payload next to the type field.
func (n Notification) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.Payload)+1)
	for k, v := range n.Payload {
		out[k] = v
	}
	out["type"] = n.Type
	return json.Marshal(out)
}

// UnmarshalJSON splits the type field back out of the flat object.
func (n *Notification) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	t, _ := raw["type"].(string)
	delete(raw, "type")

	n.Type = Type(t)
	n.Payload = raw
	return nil
}

// Text returns a payload field as a string, or "" when absent.
func (n Notification) Text(key string) string {
	if v, ok := n.Payload[key].(string); ok {
		return v
	}
	return ""
}

// Validate checks a notification before it is serialized for fan-out
func Validate(n *Notification) error {
	if n == nil {
		return ErrNil
	}
	if !IsValidType(string(n.Type)) {
		return fmt.Errorf("%w: %q", ErrUnknownType, n.Type)
	}
	if _, exists := n.Payload["type"]; exists {
		return ErrReservedKey
	}
	return nil
}

// IsValidType checks if a wire type is one this stream carries
func IsValidType(t string) bool {
	switch Type(t) {
	case TypeConnectionAck, TypeHeartbeat, TypeHazardEvent, TypeTest:
		return true
	default:
		return false
	}
}

// Encode serializes a validated notification once for every recipient.
func Encode(n *Notification) ([]byte, error) {
	if err := Validate(n); err != nil {
		return nil, err
	}
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification: %w", err)
	}
	return data, nil
}

// Decode parses one frame body back into a notification.
func Decode(data []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("failed to decode notification: %w", err)
	}
	return &n, nil
}

// ConnectionAck is the first frame a new stream receives
func ConnectionAck(connectionID string) *Notification {
	return &Notification{
		Type: TypeConnectionAck,
		Payload: map[string]any{
			"clientId": connectionID,
			"message":  "stream connection established",
		},
	}
}

// Heartbeat carries no payload.
func Heartbeat() *Notification {
	return &Notification{Type: TypeHeartbeat}
}

// Test creates a diagnostics notification
func Test(message string, at time.Time) *Notification {
	return &Notification{
		Type: TypeTest,
		Payload: map[string]any{
			"message":   message,
			"timestamp": at.Format(time.RFC3339),
		},
	}
}

// HazardEvent describes a newly stored hazard record
type HazardEvent struct {
	Source   Source
	Message  string
	RecordID int64
	Address  string
	Detail   string
	Lat      float64
	Lon      float64
	At       time.Time
}

// Notification converts the event into its wire form.
func (e HazardEvent) Notification() *Notification {
	return &Notification{
		Type: TypeHazardEvent,
		Payload: map[string]any{
			"source":    string(e.Source),
			"message":   e.Message,
			"recordId":  e.RecordID,
			"addr":      e.Address,
			"detail":    e.Detail,
			"lat":       e.Lat,
			"lon":       e.Lon,
			"timestamp": e.At.Format(time.RFC3339),
		},
	}
}
