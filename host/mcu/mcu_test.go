package mcu

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"gouptime/host/serial"
	"gouptime/targets/hosted"
)

// connectSim connects an MCU client to a hosted firmware over a pipe
func connectSim(t *testing.T) *MCU {
	t.Helper()
	hostEnd, mcuEnd := net.Pipe()
	fw := hosted.New(mcuEnd)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		fw.Run(ctx)
	}()

	m := NewMCU()
	m.ConnectPort(serial.NopFlush(hostEnd))
	t.Cleanup(func() {
		cancel()
		<-done
		m.Close()
	})

	if err := m.RetrieveDictionary(); err != nil {
		t.Fatalf("RetrieveDictionary failed: %v", err)
	}
	return m
}

func TestRetrieveDictionary(t *testing.T) {
	m := connectSim(t)

	dict := m.GetDictionary()
	if dict == nil {
		t.Fatal("Dictionary not loaded")
	}
	if dict.Version != "gouptime-0.1.0" {
		t.Errorf("Expected version gouptime-0.1.0, got %s", dict.Version)
	}
	if dict.Config["MCU"] != "hosted-sim" {
		t.Errorf("Expected MCU hosted-sim, got %q", dict.Config["MCU"])
	}
	if dict.Config["CLOCK_FREQ"] != "1000000" {
		t.Errorf("Expected CLOCK_FREQ 1000000, got %q", dict.Config["CLOCK_FREQ"])
	}

	if m.commands["identify"].id != identifyID {
		t.Errorf("Expected identify ID %d, got %d", identifyID, m.commands["identify"].id)
	}
	state, ok := m.responses["state"]
	if !ok || len(state.fields) != 2 || state.fields[0] != "state=%c" {
		t.Errorf("Unexpected state response entry: %+v", state)
	}
}

func TestQueries(t *testing.T) {
	m := connectSim(t)
	time.Sleep(30 * time.Millisecond)

	ms, err := m.GetMillis()
	if err != nil {
		t.Fatalf("GetMillis failed: %v", err)
	}
	if ms < 10 {
		t.Errorf("Expected clock running, got %d ms", ms)
	}

	clock, err := m.GetClock()
	if err != nil {
		t.Fatalf("GetClock failed: %v", err)
	}
	uptime, err := m.GetUptime()
	if err != nil {
		t.Fatalf("GetUptime failed: %v", err)
	}
	if uptime < uint64(clock) {
		t.Errorf("Expected uptime %d >= earlier clock %d", uptime, clock)
	}

	st, err := m.GetState()
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if st.StateName() != "running" {
		t.Errorf("Expected running, got %s", st.StateName())
	}
}

func TestLifecycleCommands(t *testing.T) {
	m := connectSim(t)
	time.Sleep(20 * time.Millisecond)

	st, err := m.Suspend()
	if err != nil {
		t.Fatalf("Suspend failed: %v", err)
	}
	if st.StateName() != "suspended" {
		t.Errorf("Expected suspended, got %s", st.StateName())
	}

	frozen, _ := m.GetUptime()
	time.Sleep(20 * time.Millisecond)
	if now, _ := m.GetUptime(); now != frozen {
		t.Errorf("Expected uptime frozen at %d, got %d", frozen, now)
	}

	// Reset keeps the clock suspended
	st, err = m.ResetClock()
	if err != nil {
		t.Fatalf("ResetClock failed: %v", err)
	}
	if st.StateName() != "suspended" || st.Millis != 0 {
		t.Errorf("Expected suspended at 0 ms, got %s at %d", st.StateName(), st.Millis)
	}

	st, err = m.Resume()
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if st.StateName() != "running" {
		t.Errorf("Expected running, got %s", st.StateName())
	}
}

func TestUnknownNames(t *testing.T) {
	m := connectSim(t)

	if _, err := m.Query("no_such_command", "state"); err == nil {
		t.Error("Expected error for unknown command")
	}
	if _, err := m.Query("get_state", "no_such_response"); err == nil {
		t.Error("Expected error for unknown response")
	}
}

func TestNotConnected(t *testing.T) {
	m := NewMCU()
	if err := m.RetrieveDictionary(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	if err := m.SendCommand("get_clock", nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
}

func TestStateName(t *testing.T) {
	if (StateReport{State: 1}).StateName() != "running" {
		t.Error("Expected state 1 to be running")
	}
	if (StateReport{State: 7}).StateName() != "unknown" {
		t.Error("Expected unknown for out of range state")
	}
}

func TestInflateStoredBlock(t *testing.T) {
	data, err := inflate([]byte{0x78, 0x9C, 0x01, 0x02, 0x00, 0xFD, 0xFF, 'h', 'i', 0x01, 0x3B, 0x00, 0xD2})
	if err != nil {
		t.Fatalf("inflate failed: %v", err)
	}
	if string(data) != "hi" {
		t.Errorf("Expected 'hi', got %q", data)
	}
}
