package core

import (
	"bytes"
	"sync"

	"gouptime/tinycompress"
)

// Constant represents a firmware constant exposed to the host
type Constant struct {
	Name  string
	Value interface{}
}

// Dictionary is the JSON data dictionary the host retrieves with identify.
// It lists firmware constants and the ID of every command and response.
type Dictionary struct {
	mu         sync.RWMutex
	constants  map[string]*Constant
	commandReg *CommandRegistry
	version    string
	cached     []byte // JSON
	compressed []byte // zlib stream of cached, served by identify
}

var globalDictionary = NewDictionary(globalRegistry)

// NewDictionary creates a new dictionary over a command registry
func NewDictionary(cmdReg *CommandRegistry) *Dictionary {
	return &Dictionary{
		constants:  make(map[string]*Constant),
		commandReg: cmdReg,
		version:    "gouptime-0.1.0",
	}
}

// RegisterConstant registers a constant in the global dictionary
func RegisterConstant(name string, value interface{}) {
	globalDictionary.AddConstant(name, value)
}

// AddConstant adds a constant and invalidates the cached dictionary
func (d *Dictionary) AddConstant(name string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = &Constant{Name: name, Value: value}
	d.cached = nil
	d.compressed = nil
}

// SetVersion sets the firmware version string
func (d *Dictionary) SetVersion(version string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = version
	d.cached = nil
	d.compressed = nil
}

// BuildDictionary builds and caches the dictionary. Call it after every
// command has been registered; later registrations need another call.
func (d *Dictionary) BuildDictionary() {
	commands, responses := d.commandReg.CommandsAndResponses()

	d.mu.Lock()
	defer d.mu.Unlock()
	jsonData := d.buildJSONLocked(commands, responses)

	var buf bytes.Buffer
	w := tinycompress.NewWriter(&buf, len(jsonData))
	w.Write(jsonData)
	if err := w.Close(); err != nil {
		DebugPrintln("[DICT] compression failed: " + err.Error())
		return
	}

	d.cached = jsonData
	d.compressed = buf.Bytes()
	DebugPrintln("[DICT] " + itoa(len(jsonData)) + " bytes, " + itoa(len(d.compressed)) + " compressed")
}

// Generate returns the dictionary, building it on first use
func (d *Dictionary) Generate() []byte {
	d.mu.RLock()
	cached := d.cached
	d.mu.RUnlock()
	if cached != nil {
		return cached
	}
	d.BuildDictionary()

	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cached
}

// Compressed returns the zlib-wrapped dictionary, building it on first use
func (d *Dictionary) Compressed() []byte {
	d.Generate()

	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.compressed
}

// sortStrings is an insertion sort; the dictionary holds a handful of entries
func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// appendIDMap writes a {"format":id,...} object ordered by ID
func appendIDMap(result []byte, entries map[string]int) []byte {
	byID := make(map[int]string, len(entries))
	maxID := -1
	for format, id := range entries {
		byID[id] = format
		if id > maxID {
			maxID = id
		}
	}

	result = append(result, '{')
	first := true
	for id := 0; id <= maxID; id++ {
		format, ok := byID[id]
		if !ok {
			continue
		}
		if !first {
			result = append(result, ',')
		}
		result = append(result, '"')
		result = append(result, format...)
		result = append(result, `":`...)
		result = append(result, itoa(id)...)
		first = false
	}
	return append(result, '}')
}

// buildJSONLocked builds the JSON by hand to keep encoding/json out of the
// firmware image. Caller must hold the write lock.
func (d *Dictionary) buildJSONLocked(commands, responses map[string]int) []byte {
	result := make([]byte, 0, 512)

	result = append(result, `{"version":"`...)
	result = append(result, d.version...)
	result = append(result, `","config":{`...)

	names := make([]string, 0, len(d.constants))
	for name := range d.constants {
		names = append(names, name)
	}
	sortStrings(names)
	for i, name := range names {
		if i > 0 {
			result = append(result, ',')
		}
		result = append(result, '"')
		result = append(result, name...)
		result = append(result, `":"`...)
		result = append(result, valueToString(d.constants[name].Value)...)
		result = append(result, '"')
	}

	result = append(result, `},"commands":`...)
	result = appendIDMap(result, commands)
	result = append(result, `,"responses":`...)
	result = appendIDMap(result, responses)
	return append(result, '}')
}

// GetChunk returns a copy of up to count bytes of the compressed dictionary
// at offset
func (d *Dictionary) GetChunk(offset uint32, count uint8) []byte {
	data := d.Compressed()
	if offset >= uint32(len(data)) {
		return []byte{}
	}

	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}

	// Copy so the transport never aliases the cached dictionary
	chunk := make([]byte, end-offset)
	copy(chunk, data[offset:end])
	return chunk
}

// GetGlobalDictionary returns the global dictionary instance
func GetGlobalDictionary() *Dictionary {
	return globalDictionary
}
