package mqtt

import (
	"strings"
	"testing"
)

func TestTopics(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"event", Topics{}.Event("access.purchased"), "sensorgrid/event/access.purchased"},
		{"device event", Topics{}.DeviceEvent("dev-a1b2c3", "device.updated"), "sensorgrid/device/dev-a1b2c3/event/device.updated"},
		{"all events", Topics{}.AllEvents(), "sensorgrid/event/+"},
		{"all device events", Topics{}.AllDeviceEvents("dev-a1b2c3"), "sensorgrid/device/dev-a1b2c3/event/+"},
		{"system status", Topics{}.SystemStatus(), "sensorgrid/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestStatusPayloads(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		status  string
	}{
		{"online", buildOnlinePayload("sensorgrid-core"), "online"},
		{"offline", buildOfflinePayload("sensorgrid-core"), "offline"},
		{"lwt", buildLWTPayload("sensorgrid-core"), "offline_unexpected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(tt.payload)
			if !strings.Contains(got, `"status":"`+tt.status+`"`) {
				t.Errorf("payload %s missing status %q", got, tt.status)
			}
			if !strings.Contains(got, `"client_id":"sensorgrid-core"`) {
				t.Errorf("payload %s missing client_id", got)
			}
		})
	}
}
