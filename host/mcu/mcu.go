// Package mcu is the host-side client for the uptime firmware.
package mcu

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gouptime/host/serial"
	"gouptime/protocol"
)

// Bootstrap message IDs, fixed before the dictionary is known
const (
	identifyResponseID = 0
	identifyID         = 1
)

var ErrNotConnected = errors.New("not connected to MCU")

// MCU is a connection to an uptime firmware instance
type MCU struct {
	transport *protocol.HostTransport
	port      serial.Port

	dictionary     *Dictionary
	dictionaryData []byte

	commands  map[string]message
	responses map[string]message
	byID      map[int]message

	connected bool

	// Timeout bounds every command ACK and response wait
	Timeout time.Duration
}

// Dictionary is the parsed MCU data dictionary
type Dictionary struct {
	Version   string            `json:"version"`
	Config    map[string]string `json:"config"`
	Commands  map[string]int    `json:"commands"`
	Responses map[string]int    `json:"responses"`
}

// message is one dictionary entry split into name and argument fields
type message struct {
	id     int
	name   string
	fields []string
}

// StateReport is the decoded "state" response
type StateReport struct {
	State  uint8
	Millis uint32
}

var stateNames = []string{"uninitialized", "running", "suspended"}

// StateName returns the firmware's name for the lifecycle state
func (s StateReport) StateName() string {
	if int(s.State) < len(stateNames) {
		return stateNames[s.State]
	}
	return "unknown"
}

// NewMCU creates a new MCU instance (not yet connected)
func NewMCU() *MCU {
	return &MCU{Timeout: time.Second}
}

// Connect connects to an MCU via serial device
func (m *MCU) Connect(device string) error {
	return m.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig connects to an MCU with a custom serial config
func (m *MCU) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}
	m.ConnectPort(port)
	return nil
}

// ConnectPort uses an already open port
func (m *MCU) ConnectPort(port serial.Port) {
	m.port = port
	m.transport = protocol.NewHostTransport(port)
	m.connected = true
}

// Close closes the connection to the MCU
func (m *MCU) Close() error {
	m.connected = false
	if m.transport != nil {
		return m.transport.Close()
	}
	return nil
}

// IsConnected returns whether the MCU is connected
func (m *MCU) IsConnected() bool {
	return m.connected
}

// RetrieveDictionary downloads and parses the dictionary in identify chunks
func (m *MCU) RetrieveDictionary() error {
	if !m.connected {
		return ErrNotConnected
	}

	var dictBuffer bytes.Buffer
	offset := uint32(0)
	const chunkSize = 40

	for {
		chunk, err := m.sendIdentify(offset, chunkSize)
		if err != nil {
			return fmt.Errorf("failed to retrieve dictionary chunk at offset %d: %w", offset, err)
		}
		dictBuffer.Write(chunk)
		offset += uint32(len(chunk))

		if len(chunk) < chunkSize {
			break
		}
	}

	data, err := inflate(dictBuffer.Bytes())
	if err != nil {
		return fmt.Errorf("failed to decompress dictionary: %w", err)
	}
	m.dictionaryData = data
	if err := m.parseDictionary(); err != nil {
		return fmt.Errorf("failed to parse dictionary: %w", err)
	}
	return nil
}

// inflate decodes the zlib-wrapped dictionary
func inflate(compressed []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// sendIdentify requests one dictionary chunk
func (m *MCU) sendIdentify(offset uint32, count uint8) ([]byte, error) {
	m.transport.DrainResponses()
	err := m.transport.SendCommandWithTimeout(identifyID, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQUint(output, uint32(count))
	}, m.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to send identify: %w", err)
	}

	payload, err := m.awaitResponse(identifyResponseID)
	if err != nil {
		return nil, err
	}

	respOffset, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response offset: %w", err)
	}
	if respOffset != offset {
		return nil, fmt.Errorf("offset mismatch: expected %d, got %d", offset, respOffset)
	}

	data, err := protocol.DecodeVLQBytes(&payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response data: %w", err)
	}
	return data, nil
}

// awaitResponse returns the payload (after the ID) of the next response with
// the given ID, skipping unrelated ones
func (m *MCU) awaitResponse(id int) ([]byte, error) {
	deadline := time.Now().Add(m.Timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("no response %d within %v", id, m.Timeout)
		}
		resp, err := m.transport.ReceiveResponse(remaining)
		if err != nil {
			return nil, err
		}

		payload := resp.Payload
		respID, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode response ID: %w", err)
		}
		if int(respID) == id {
			return payload, nil
		}
	}
}

func parseEntries(entries map[string]int, byID map[int]message) map[string]message {
	out := make(map[string]message, len(entries))
	for format, id := range entries {
		parts := strings.Fields(format)
		if len(parts) == 0 {
			continue
		}
		msg := message{id: id, name: parts[0], fields: parts[1:]}
		out[msg.name] = msg
		byID[id] = msg
	}
	return out
}

// parseDictionary parses the dictionary JSON and indexes it by name
func (m *MCU) parseDictionary() error {
	dict := &Dictionary{}
	if err := json.Unmarshal(m.dictionaryData, dict); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	m.dictionary = dict
	m.byID = make(map[int]message)
	m.commands = parseEntries(dict.Commands, m.byID)
	m.responses = parseEntries(dict.Responses, m.byID)
	return nil
}

// GetDictionary returns the parsed dictionary
func (m *MCU) GetDictionary() *Dictionary {
	return m.dictionary
}

// GetDictionaryRaw returns the raw dictionary data
func (m *MCU) GetDictionaryRaw() []byte {
	return m.dictionaryData
}

// SendCommand sends a dictionary command by name and waits for its ACK
func (m *MCU) SendCommand(name string, args func(output protocol.OutputBuffer)) error {
	if !m.connected {
		return ErrNotConnected
	}
	if m.dictionary == nil {
		return errors.New("dictionary not loaded")
	}

	cmd, ok := m.commands[name]
	if !ok {
		return fmt.Errorf("unknown command: %s", name)
	}
	return m.transport.SendCommandWithTimeout(uint16(cmd.id), args, m.Timeout)
}

// Query sends an argument-less command and decodes the named response's
// integer fields in dictionary order
func (m *MCU) Query(command, response string) ([]uint32, error) {
	resp, ok := m.responses[response]
	if !ok {
		return nil, fmt.Errorf("unknown response: %s", response)
	}

	m.transport.DrainResponses()
	if err := m.SendCommand(command, nil); err != nil {
		return nil, fmt.Errorf("%s: %w", command, err)
	}

	payload, err := m.awaitResponse(resp.id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", command, err)
	}

	values := make([]uint32, len(resp.fields))
	for i, field := range resp.fields {
		v, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return nil, fmt.Errorf("%s: field %s: %w", response, field, err)
		}
		values[i] = v
	}
	return values, nil
}

// GetUptime returns the MCU's 64-bit microsecond uptime
func (m *MCU) GetUptime() (uint64, error) {
	v, err := m.Query("get_uptime", "uptime")
	if err != nil {
		return 0, err
	}
	return uint64(v[0])<<32 | uint64(v[1]), nil
}

// GetClock returns the MCU's wrapping 32-bit microsecond clock
func (m *MCU) GetClock() (uint32, error) {
	v, err := m.Query("get_clock", "clock")
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// GetMillis returns the MCU's millisecond counter
func (m *MCU) GetMillis() (uint32, error) {
	v, err := m.Query("get_millis", "millis")
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

func (m *MCU) stateQuery(command string) (StateReport, error) {
	v, err := m.Query(command, "state")
	if err != nil {
		return StateReport{}, err
	}
	return StateReport{State: uint8(v[0]), Millis: v[1]}, nil
}

// GetState returns the MCU clock's lifecycle state
func (m *MCU) GetState() (StateReport, error) {
	return m.stateQuery("get_state")
}

// ResetClock zeroes the MCU's uptime
func (m *MCU) ResetClock() (StateReport, error) {
	return m.stateQuery("uptime_reset")
}

// Suspend freezes the MCU's uptime
func (m *MCU) Suspend() (StateReport, error) {
	return m.stateQuery("uptime_suspend")
}

// Resume continues the MCU's uptime
func (m *MCU) Resume() (StateReport, error) {
	return m.stateQuery("uptime_resume")
}

// PrintDictionary prints a summary of the dictionary
func (m *MCU) PrintDictionary() {
	if m.dictionary == nil {
		fmt.Println("No dictionary loaded")
		return
	}

	fmt.Println("\n=== MCU Dictionary ===")
	fmt.Printf("Version: %s\n", m.dictionary.Version)

	fmt.Println("\nConfig:")
	for k, v := range m.dictionary.Config {
		fmt.Printf("  %s = %s\n", k, v)
	}

	fmt.Printf("\nMessages (%d):\n", len(m.byID))
	for id := 0; id < len(m.byID)+1; id++ {
		if msg, ok := m.byID[id]; ok {
			fmt.Printf("  [%d] %s %s\n", id, msg.name, strings.Join(msg.fields, " "))
		}
	}
	fmt.Println("======================")
}
