package model

import "time"

// Device is a user-registered smart-home device exposed to the Yandex skill.
// ADBHost/ADBPort are set only for Android targets reachable over the
// network debug bridge.
type Device struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	YandexType string    `json:"yandex_type"`
	ADBHost    *string   `json:"adb_host,omitempty"`
	ADBPort    *int      `json:"adb_port,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Binding maps one capability instance of a device to an executable action.
// ActionConfig is opaque here; its shape is declared by the executor
// registered for ActionType and checked at invoke time.
type Binding struct {
	ID           string         `json:"id"`
	DeviceID     string         `json:"device_id"`
	Capability   string         `json:"capability"`
	ActionType   string         `json:"action_type"`
	ActionConfig map[string]any `json:"action_config"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// UserToken holds the upstream OAuth tokens for the linked Yandex account.
// AccessToken and RefreshToken are stored sealed; AccessTokenHash is the
// SHA-256 of the plaintext access token and is the bearer lookup key.
type UserToken struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Provider        string     `json:"provider"`
	AccessToken     string     `json:"-"`
	AccessTokenHash string     `json:"-"`
	RefreshToken    *string    `json:"-"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ActionResult is the uniform outcome of one action execution. Executors
// never return errors past their boundary; failures land here.
type ActionResult struct {
	OK     bool   `json:"ok"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// InvocationEnvelope is published to the device state topic and broadcast to
// websocket subscribers after every binding invocation.
type InvocationEnvelope struct {
	BindingID  string       `json:"bindingId"`
	Capability string       `json:"capability"`
	Result     ActionResult `json:"result"`
}
