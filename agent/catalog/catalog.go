package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	appointmentx "github.com/tanpawarit/voice-appointment-agent/agent/appointment"
)

//go:embed template/slots.yaml
var defaultRaw []byte

var (
	ErrEmptyCatalog  = errors.New("slot catalog is empty")
	ErrDuplicateSlot = errors.New("duplicate slot in catalog")
)

type file struct {
	Slots []appointmentx.Slot `yaml:"slots"`
}

// Default returns the embedded catalog.
func Default() []appointmentx.Slot {
	slots, err := Parse(defaultRaw)
	if err != nil {
		panic(fmt.Sprintf("embedded slot catalog: %v", err))
	}
	return slots
}

// Load reads a YAML catalog from path, or the embedded one when path is blank.
func Load(path string) ([]appointmentx.Slot, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read slot catalog: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a catalog and canonicalizes every slot's date and time.
func Parse(raw []byte) ([]appointmentx.Slot, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode slot catalog: %w", err)
	}
	if len(f.Slots) == 0 {
		return nil, ErrEmptyCatalog
	}

	seen := make(map[appointmentx.SlotKey]struct{}, len(f.Slots))
	out := make([]appointmentx.Slot, 0, len(f.Slots))
	for i, s := range f.Slots {
		key, err := appointmentx.ParseKey(s.Date, s.Time)
		if err != nil {
			return nil, fmt.Errorf("slot #%d: %w", i+1, err)
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSlot, key)
		}
		seen[key] = struct{}{}

		id := strings.TrimSpace(s.SlotID)
		if id == "" {
			id = fmt.Sprintf("slot_%d", i+1)
		}
		out = append(out, appointmentx.Slot{SlotID: id, Date: key.Date, Time: key.Time})
	}
	return out, nil
}
