package mqtt

import (
	"testing"
	"time"
)

func TestTopicsMatch(t *testing.T) {
	tests := []struct {
		filter string
		topic  string
		want   bool
	}{
		{"uav/v1/command/dr-001", "uav/v1/command/dr-001", true},
		{"uav/v1/command/+", "uav/v1/command/dr-001", true},
		{"uav/v1/command/+", "uav/v1/command/dr-001/extra", false},
		{"uav/v1/#", "uav/v1/command/ack/dr-001", true},
		{"uav/v1/telemetry/+", "uav/v1/online/dr-001", false},
		{"uav/v1/+/dr-001", "uav/v1/online/dr-001", true},
		{"uav/v1/command/dr-001", "uav/v1/command/dr-002", false},
		{"#", "anything/at/all", true},
	}

	for _, tt := range tests {
		if got := topicsMatch(tt.filter, tt.topic); got != tt.want {
			t.Errorf("topicsMatch(%q, %q) = %v, want %v", tt.filter, tt.topic, got, tt.want)
		}
	}
}

func TestTopicFilterSharedSubscription(t *testing.T) {
	if got := topicFilter("$share/ground/uav/v1/command/+"); got != "uav/v1/command/+" {
		t.Errorf("shared filter stripped to %q", got)
	}
	if got := topicFilter("uav/v1/command/+"); got != "uav/v1/command/+" {
		t.Errorf("plain filter mangled to %q", got)
	}
}

func TestClientConfigDefaults(t *testing.T) {
	cfg := &ClientConfig{BrokerURL: "tcp://localhost:1883"}
	setDefaultConfig(cfg)

	if cfg.ConnectTimeout != 5*time.Second {
		t.Errorf("default connect timeout = %v", cfg.ConnectTimeout)
	}
	if cfg.KeepAlive != 60 {
		t.Errorf("default keep alive = %d", cfg.KeepAlive)
	}
}

func TestClientConfigValidate(t *testing.T) {
	if err := (&ClientConfig{}).Validate(); err == nil {
		t.Error("empty broker url accepted")
	}
	if err := (&ClientConfig{BrokerURL: "tcp://broker:1883"}).Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestNewClientRequiresConfig(t *testing.T) {
	if _, err := NewClient(nil); err == nil {
		t.Error("nil config accepted")
	}
}
