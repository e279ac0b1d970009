package topic

import (
	"fmt"
	"testing"
)

func TestBuilder(t *testing.T) {
	b := NewBuilder("uav/v1")

	tests := []struct {
		got  string
		want string
	}{
		{b.Command("d1"), "uav/v1/command/d1"},
		{b.CommandAck("d1"), "uav/v1/command/ack/d1"},
		{b.Telemetry("d1"), "uav/v1/telemetry/d1"},
		{b.Online("d1"), "uav/v1/online/d1"},
		{b.Register("d1"), "uav/v1/register/d1"},
		{b.Build("custom", "d1"), "uav/v1/custom/d1"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func ExampleBuilder_Command() {
	b := NewBuilder("uav/v1")
	fmt.Println(b.Command("drone-7"))
	// Output: uav/v1/command/drone-7
}
