// Package templates renders flex bubble documents for sensor readings.
//
// A Template holds an immutable base document. Render copies the base and
// writes slot values into the copy, so concurrent renders never share
// mutable state.
package templates

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/buger/jsonparser"
	"github.com/mbocsi/homelink/proto"
)

// Slot names addressable in the reading templates.
const (
	SlotCO     = "co"
	SlotGasLPG = "gas_lpg"
	SlotSmoke  = "smoke"
	SlotHero   = "hero"
	SlotFooter = "footer"
)

// maxValueWidth caps the characters of a reading shown in a bubble.
const maxValueWidth = 12

var ErrUnknownSlot = errors.New("unknown template slot")

//go:embed status.json alert.json
var builtin embed.FS

type Template struct {
	name  string
	base  []byte
	slots map[string][]string
}

// New validates doc and checks every slot path resolves in it.
func New(name string, doc []byte, slots map[string][]string) (*Template, error) {
	if !json.Valid(doc) {
		return nil, fmt.Errorf("template %s: invalid JSON", name)
	}
	for slot, path := range slots {
		if _, _, _, err := jsonparser.Get(doc, path...); err != nil {
			return nil, fmt.Errorf("template %s: slot %s: %w", name, slot, err)
		}
	}
	return &Template{name: name, base: bytes.Clone(doc), slots: slots}, nil
}

func (t *Template) Name() string {
	return t.name
}

func (t *Template) Has(slot string) bool {
	_, ok := t.slots[slot]
	return ok
}

// Render returns a fresh document with values written into their slots.
func (t *Template) Render(values map[string]string) (json.RawMessage, error) {
	slots := make([]string, 0, len(values))
	for slot := range values {
		if _, ok := t.slots[slot]; !ok {
			return nil, fmt.Errorf("%w: %s in %s", ErrUnknownSlot, slot, t.name)
		}
		slots = append(slots, slot)
	}
	sort.Strings(slots)

	out := bytes.Clone(t.base)
	for _, slot := range slots {
		encoded, err := encodeString(values[slot])
		if err != nil {
			return nil, err
		}
		out, err = jsonparser.Set(out, encoded, t.slots[slot]...)
		if err != nil {
			return nil, fmt.Errorf("template %s: slot %s: %w", t.name, slot, err)
		}
	}
	return out, nil
}

// RenderReading fills the reading slots, the hero image and, when the
// template has one and the reading carries it, the footer link.
func (t *Template) RenderReading(r proto.Reading) (json.RawMessage, error) {
	values := map[string]string{
		SlotCO:     PPM(r.CO),
		SlotGasLPG: PPM(r.GasLPG),
		SlotSmoke:  PPM(r.Smoke),
		SlotHero:   r.Link,
	}
	if r.AnalysisLink != "" && t.Has(SlotFooter) {
		values[SlotFooter] = r.AnalysisLink
	}
	return t.Render(values)
}

// PPM formats a raw reading for display, e.g. "400 ppm".
func PPM(raw string) string {
	runes := []rune(raw)
	if len(runes) > maxValueWidth {
		runes = runes[:maxValueWidth]
	}
	return string(runes) + " ppm"
}

// ReadingSlots returns the slot paths of the bundled bubble layout.
func ReadingSlots(withFooter bool) map[string][]string {
	slots := map[string][]string{
		SlotCO:     readingPath(0),
		SlotGasLPG: readingPath(1),
		SlotSmoke:  readingPath(2),
		SlotHero:   {"hero", "url"},
	}
	if withFooter {
		slots[SlotFooter] = []string{"footer", "contents", "[0]", "action", "uri"}
	}
	return slots
}

// LoadStatus loads the status bubble from path, or the bundled one when
// path is empty.
func LoadStatus(path string) (*Template, error) {
	return load("status", path, "status.json", ReadingSlots(true))
}

// LoadAlert loads the fire alert bubble from path, or the bundled one when
// path is empty.
func LoadAlert(path string) (*Template, error) {
	return load("alert", path, "alert.json", ReadingSlots(false))
}

func load(name, path, embedded string, slots map[string][]string) (*Template, error) {
	var (
		doc []byte
		err error
	)
	if path != "" {
		doc, err = os.ReadFile(path)
	} else {
		doc, err = builtin.ReadFile(embedded)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s template: %w", name, err)
	}
	return New(name, doc, slots)
}

func readingPath(i int) []string {
	return []string{"body", "contents", "[1]", "contents", fmt.Sprintf("[%d]", i), "contents", "[1]", "text"}
}

func encodeString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
