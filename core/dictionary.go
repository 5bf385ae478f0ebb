package core

import "sync"

// Constant is one firmware constant advertised through identify.
type Constant struct {
	Name  string
	Value interface{}
}

// Enumeration maps symbolic names to their index, so hosts can address
// registers and engines by name instead of magic numbers.
type Enumeration struct {
	Name   string
	Values []string
}

// Dictionary is the identify payload: version strings, constants, the
// command and response tables, and enumerations, serialized as JSON. A
// host fetches it in chunks at connect time and drives the device from
// what it declares.
//
// The JSON is assembled by hand with byte appends; core stays free of fmt
// and encoding/json so the package builds under TinyGo.
type Dictionary struct {
	mu           sync.RWMutex
	constants    map[string]*Constant
	enumerations map[string]*Enumeration
	registry     *CommandRegistry
	version      string
	buildInfo    string
	cached       []byte
}

// NewDictionary creates a dictionary over the given registry.
func NewDictionary(registry *CommandRegistry) *Dictionary {
	return &Dictionary{
		constants:    make(map[string]*Constant),
		enumerations: make(map[string]*Enumeration),
		registry:     registry,
		version:      "softspi-0.1.0",
		buildInfo:    "go",
	}
}

// SetVersion overrides the firmware version string.
func (d *Dictionary) SetVersion(version string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = version
	d.cached = nil
}

// SetBuildInfo overrides the build identification string.
func (d *Dictionary) SetBuildInfo(info string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buildInfo = info
	d.cached = nil
}

// AddConstant adds or replaces a constant.
func (d *Dictionary) AddConstant(name string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = &Constant{Name: name, Value: value}
	d.cached = nil
}

// AddEnumeration adds or replaces an enumeration. The values slice is
// copied; TinyGo's collector has reclaimed caller-owned slices out from
// under long-lived references before.
func (d *Dictionary) AddEnumeration(name string, values []string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	valuesCopy := make([]string, len(values))
	copy(valuesCopy, values)

	d.enumerations[name] = &Enumeration{Name: name, Values: valuesCopy}
	d.cached = nil
}

// Bytes returns the serialized dictionary, building and caching it on
// first use. Any mutation invalidates the cache.
func (d *Dictionary) Bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cached == nil {
		d.cached = d.buildLocked()
	}
	return d.cached
}

// Chunk returns a copy of up to count dictionary bytes starting at
// offset. Past the end it returns an empty slice; the host reads until it
// sees one.
func (d *Dictionary) Chunk(offset uint32, count uint8) []byte {
	data := d.Bytes()

	if offset >= uint32(len(data)) {
		return []byte{}
	}

	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}

	chunk := make([]byte, end-offset)
	copy(chunk, data[offset:end])
	return chunk
}

// buildLocked serializes the dictionary. Caller holds d.mu; the registry
// lock nests inside it and never the other way around.
func (d *Dictionary) buildLocked() []byte {
	commands, responses := d.registry.CommandsAndResponses()

	out := make([]byte, 0, 1024)
	out = append(out, `{"version":"`...)
	out = append(out, d.version...)
	out = append(out, `","build_versions":"`...)
	out = append(out, d.buildInfo...)
	out = append(out, `","config":{`...)

	names := make([]string, 0, len(d.constants))
	for name := range d.constants {
		names = append(names, name)
	}
	sortStrings(names)

	for i, name := range names {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '"')
		out = append(out, name...)
		out = append(out, `":"`...)
		out = append(out, valueToString(d.constants[name].Value)...)
		out = append(out, '"')
	}

	out = append(out, `},"commands":{`...)
	out = appendTable(out, commands)
	out = append(out, `},"responses":{`...)
	out = appendTable(out, responses)
	out = append(out, '}')

	if len(d.enumerations) > 0 {
		out = append(out, `,"enumerations":{`...)

		enumNames := make([]string, 0, len(d.enumerations))
		for name := range d.enumerations {
			enumNames = append(enumNames, name)
		}
		sortStrings(enumNames)

		for i, name := range enumNames {
			if i > 0 {
				out = append(out, ',')
			}
			out = append(out, '"')
			out = append(out, name...)
			out = append(out, `":{`...)

			first := true
			for idx, value := range d.enumerations[name].Values {
				if value == "" {
					continue
				}
				if !first {
					out = append(out, ',')
				}
				out = append(out, '"')
				out = append(out, value...)
				out = append(out, `":`...)
				out = append(out, itoa(idx)...)
				first = false
			}
			out = append(out, '}')
		}
		out = append(out, '}')
	}

	return append(out, '}')
}

// appendTable emits a name-to-ID map as JSON members, ordered by ID.
func appendTable(out []byte, table map[string]int) []byte {
	byID := make(map[int]string, len(table))
	ids := make([]int, 0, len(table))
	for format, id := range table {
		byID[id] = format
		ids = append(ids, id)
	}
	sortInts(ids)

	for i, id := range ids {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '"')
		out = append(out, byID[id]...)
		out = append(out, `":`...)
		out = append(out, itoa(id)...)
	}
	return out
}

// Insertion sorts; the tables are a handful of entries and keeping the
// sort package out of core keeps TinyGo binaries lean.
func sortStrings(a []string) {
	for i := 1; i < len(a); i++ {
		for j := i; j > 0 && a[j] < a[j-1]; j-- {
			a[j], a[j-1] = a[j-1], a[j]
		}
	}
}

func sortInts(a []int) {
	for i := 1; i < len(a); i++ {
		for j := i; j > 0 && a[j] < a[j-1]; j-- {
			a[j], a[j-1] = a[j-1], a[j]
		}
	}
}
