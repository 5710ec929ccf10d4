package deviceapi

import "devicegate/cmd/internal/device/session"

// Wire timestamps are Unix seconds throughout; clients treat them as opaque
// ordering keys.

type registerRequest struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
}

type registerResponse struct {
	Status string `json:"status"`
	Action string `json:"action"`
}

// limitReachedResponse is the alternate success-path payload: the caller gets
// the full ordered list of active sessions to offer a revocation choice.
type limitReachedResponse struct {
	Status   string          `json:"status"`
	Sessions []activeSession `json:"sessions"`
}

type activeSession struct {
	ID         int64  `json:"id"`
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
	CreatedAt  int64  `json:"created_at"`
}

type forceLogoutRequest struct {
	LogoutSessionID *int64 `json:"logout_session_id"`
}

type forceLogoutResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type listSessionsResponse struct {
	Status   string       `json:"status"`
	Sessions []sessionDTO `json:"sessions"`
}

type sessionDTO struct {
	ID         int64  `json:"id"`
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
	CreatedAt  int64  `json:"created_at"`
	LastSeen   int64  `json:"last_seen"`
	Revoked    bool   `json:"revoked"`
}

type privateResponse struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

func toActiveSession(r session.Row) activeSession {
	return activeSession{
		ID:         r.ID,
		DeviceID:   r.DeviceID,
		DeviceName: r.DeviceName,
		CreatedAt:  r.CreatedAt.Unix(),
	}
}

func toSessionDTO(r session.Row) sessionDTO {
	return sessionDTO{
		ID:         r.ID,
		DeviceID:   r.DeviceID,
		DeviceName: r.DeviceName,
		CreatedAt:  r.CreatedAt.Unix(),
		LastSeen:   r.LastSeen.Unix(),
		Revoked:    r.Revoked,
	}
}
