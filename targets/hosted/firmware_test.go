package hosted

import (
	"context"
	"net"
	"testing"
	"time"

	"gouptime/core"
	"gouptime/protocol"
)

// startFirmware runs a hosted firmware on one end of a pipe and returns a
// host transport on the other. The firmware is stopped at test cleanup.
func startFirmware(t *testing.T) (*Firmware, *protocol.HostTransport) {
	t.Helper()
	hostEnd, mcuEnd := net.Pipe()
	fw := New(mcuEnd)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fw.Run(ctx) }()

	host := protocol.NewHostTransport(hostEnd)
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run returned %v after cancel", err)
		}
		host.Close()
	})
	return fw, host
}

func query(t *testing.T, host *protocol.HostTransport, command string) []uint32 {
	t.Helper()
	cmd, ok := core.GetGlobalRegistry().GetCommandByName(command)
	if !ok {
		t.Fatalf("Command %s not registered", command)
	}

	host.DrainResponses()
	if err := host.SendCommandWithTimeout(cmd.ID, nil, time.Second); err != nil {
		t.Fatalf("%s: %v", command, err)
	}
	resp, err := host.ReceiveResponse(time.Second)
	if err != nil {
		t.Fatalf("%s: %v", command, err)
	}

	payload := resp.Payload
	protocol.DecodeVLQUint(&payload) // response ID
	var values []uint32
	for len(payload) > 0 {
		v, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			t.Fatalf("%s: bad response: %v", command, err)
		}
		values = append(values, v)
	}
	return values
}

func TestFirmwareClockRuns(t *testing.T) {
	_, host := startFirmware(t)

	first := query(t, host, "get_millis")[0]
	time.Sleep(50 * time.Millisecond)
	second := query(t, host, "get_millis")[0]

	if second-first < 30 {
		t.Errorf("Expected roughly 50 ms to pass, got %d ms", second-first)
	}
}

func TestFirmwareSuspendResume(t *testing.T) {
	_, host := startFirmware(t)
	time.Sleep(20 * time.Millisecond)

	st := query(t, host, "uptime_suspend")
	if st[0] != uint32(core.StateSuspended) {
		t.Fatalf("Expected suspended state, got %v", st)
	}
	frozen := query(t, host, "get_clock")[0]
	time.Sleep(30 * time.Millisecond)
	if now := query(t, host, "get_clock")[0]; now != frozen {
		t.Errorf("Expected clock frozen at %d, got %d", frozen, now)
	}

	query(t, host, "uptime_resume")
	time.Sleep(30 * time.Millisecond)
	if now := query(t, host, "get_clock")[0]; now <= frozen {
		t.Errorf("Expected clock to continue from %d, got %d", frozen, now)
	}
}

func TestFirmwareReset(t *testing.T) {
	_, host := startFirmware(t)
	time.Sleep(60 * time.Millisecond)

	st := query(t, host, "uptime_reset")
	if st[0] != uint32(core.StateRunning) {
		t.Errorf("Expected running after reset, got %v", st)
	}
	if st[1] > 5 {
		t.Errorf("Expected millis near 0 after reset, got %d", st[1])
	}
}

func TestFirmwareHeartbeat(t *testing.T) {
	fw, _ := startFirmware(t)

	deadline := time.Now().Add(3 * HeartbeatMillis * time.Millisecond)
	for fw.Heartbeats() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Heartbeat alarm never fired")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
