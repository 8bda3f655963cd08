package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/badkiko/y2m/internal/model"
)

const TypeStation = "station"

var stationCommands = []string{"sendText", "setVolume", "play", "stop", "next", "prev", "rewind"}

// StationExecutor proxies a voice-station command as an HTTP POST to the
// external relay service.
type StationExecutor struct {
	relayURL string
	client   *http.Client
}

func NewStationExecutor(relayURL string, timeout time.Duration) *StationExecutor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StationExecutor{
		relayURL: strings.TrimSuffix(relayURL, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

func (e *StationExecutor) Type() string { return TypeStation }

func (e *StationExecutor) ConfigSchema() Schema {
	return Schema{Fields: []Field{
		{Key: "oauthToken", Label: "OAuth token", Kind: ParamString, Required: true},
		{Key: "deviceId", Label: "Station device id", Kind: ParamString, Required: true},
		{Key: "command", Label: "Command", Kind: ParamEnum, Required: true, Options: stationCommands},
		{Key: "text", Label: "Text to speak", Kind: ParamString},
		{Key: "volume", Label: "Volume 0..1", Kind: ParamNumber},
		{Key: "position", Label: "Rewind position, seconds", Kind: ParamInteger},
	}}
}

func (e *StationExecutor) Execute(ctx context.Context, payload map[string]any) model.ActionResult {
	token, _ := payload["oauthToken"].(string)
	deviceID, _ := payload["deviceId"].(string)
	command, _ := payload["command"].(string)
	if token == "" || deviceID == "" || command == "" {
		return failure("missing required parameters: oauthToken, deviceId, command")
	}

	body := map[string]any{
		"oauthToken": token,
		"deviceId":   deviceID,
		"command":    command,
	}
	switch command {
	case "sendText":
		text, _ := payload["text"].(string)
		body["text"] = text
	case "setVolume":
		volume, ok := payload["volume"].(float64)
		if !ok {
			volume = 0.5
		}
		body["volume"] = volume
	case "rewind":
		body["position"] = intParam(payload, "position", 0)
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return failure(err.Error())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.relayURL, bytes.NewReader(encoded))
	if err != nil {
		return failure(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return failure(relayErrorMessage(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return success(fmt.Sprintf("station command %q executed", command))
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return failure(fmt.Sprintf("station relay error: %d - %s", resp.StatusCode, strings.TrimSpace(string(detail))))
}

// relayErrorMessage keeps connection-refused and timeout failures legible
// instead of surfacing raw transport errors.
func relayErrorMessage(err error) string {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return "station relay unavailable"
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return "station relay request timeout"
	}
	return err.Error()
}
