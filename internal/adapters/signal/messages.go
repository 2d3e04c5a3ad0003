package signal

import (
	"encoding/json"

	"github.com/dkeye/Nearby/internal/domain"
)

// Wire message types. Every frame is a JSON object with a "type" field.
const (
	TypeUserLocation   = "user_location"
	TypeGetNearbyUsers = "get_nearby_users"
	TypeNearbyUsers    = "nearby_users"
	TypeChatMessage    = "chat_message"
	TypePing           = "ping"
	TypePong           = "pong"
	TypeSuperseded     = "superseded"
	TypeError          = "error"
)

const (
	errPersistenceFailed = "persistence_failed"
	errRateLimited       = "rate_limited"
)

type envelope struct {
	Type string `json:"type"`
}

type locationPayload struct {
	Type     string           `json:"type"`
	Username string           `json:"username"`
	Location *domain.Location `json:"location"`
}

type chatPayload struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
}

type nearbyResponse struct {
	Type  string              `json:"type"`
	Users []domain.PublicUser `json:"users"`
}

type chatBroadcast struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
}

type supersededNotice struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

type errorResponse struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
