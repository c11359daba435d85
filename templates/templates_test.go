package templates

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/buger/jsonparser"
	"github.com/mbocsi/homelink/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slotText(t *testing.T, doc []byte, path ...string) string {
	t.Helper()
	v, err := jsonparser.GetString(doc, path...)
	require.NoError(t, err)
	return v
}

func TestPPM(t *testing.T) {
	assert.Equal(t, "400 ppm", PPM("400"))
	assert.Equal(t, " ppm", PPM(""))
	assert.Equal(t, "123456789012 ppm", PPM("1234567890123456"))
	assert.Equal(t, "0.1234567890 ppm", PPM("0.1234567890"))
}

func TestBuiltinTemplatesLoad(t *testing.T) {
	status, err := LoadStatus("")
	require.NoError(t, err)
	assert.Equal(t, "status", status.Name())
	assert.True(t, status.Has(SlotFooter))

	alert, err := LoadAlert("")
	require.NoError(t, err)
	assert.False(t, alert.Has(SlotFooter))
	assert.True(t, alert.Has(SlotHero))
}

func TestRenderReading(t *testing.T) {
	status, err := LoadStatus("")
	require.NoError(t, err)

	doc, err := status.RenderReading(proto.Reading{
		CO:           "400",
		GasLPG:       "12.5",
		Smoke:        "3",
		Link:         "https://img.example/a.jpg?x=1&y=2",
		AnalysisLink: "https://analysis.example/r/1",
	})
	require.NoError(t, err)
	require.True(t, json.Valid(doc))

	assert.Equal(t, "400 ppm", slotText(t, doc, readingPath(0)...))
	assert.Equal(t, "12.5 ppm", slotText(t, doc, readingPath(1)...))
	assert.Equal(t, "3 ppm", slotText(t, doc, readingPath(2)...))
	assert.Equal(t, "https://img.example/a.jpg?x=1&y=2", slotText(t, doc, "hero", "url"))
	assert.Equal(t, "https://analysis.example/r/1", slotText(t, doc, "footer", "contents", "[0]", "action", "uri"))

	// labels are untouched
	assert.Equal(t, "一氧化碳", slotText(t, doc, "body", "contents", "[1]", "contents", "[0]", "contents", "[0]", "text"))
}

func TestRenderReading_FooterKeepsDefault(t *testing.T) {
	status, err := LoadStatus("")
	require.NoError(t, err)

	doc, err := status.RenderReading(proto.Reading{CO: "1", GasLPG: "2", Smoke: "3", Link: "https://img"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/analysis", slotText(t, doc, "footer", "contents", "[0]", "action", "uri"))
}

func TestRenderReading_AlertIgnoresAnalysisLink(t *testing.T) {
	alert, err := LoadAlert("")
	require.NoError(t, err)

	doc, err := alert.RenderReading(proto.Reading{CO: "1", GasLPG: "2", Smoke: "3", Link: "https://img", AnalysisLink: "https://a"})
	require.NoError(t, err)
	_, _, _, err = jsonparser.Get(doc, "footer")
	assert.ErrorIs(t, err, jsonparser.KeyPathNotFoundError)
}

func TestRender_UnknownSlot(t *testing.T) {
	alert, err := LoadAlert("")
	require.NoError(t, err)

	_, err = alert.Render(map[string]string{SlotFooter: "https://a"})
	assert.ErrorIs(t, err, ErrUnknownSlot)
}

func TestRender_DoesNotMutateBase(t *testing.T) {
	status, err := LoadStatus("")
	require.NoError(t, err)

	_, err = status.Render(map[string]string{SlotCO: "999 ppm", SlotHero: "https://first"})
	require.NoError(t, err)

	doc, err := status.Render(map[string]string{SlotSmoke: "1 ppm"})
	require.NoError(t, err)
	assert.Equal(t, "- ppm", slotText(t, doc, readingPath(0)...))
	assert.Equal(t, "https://via.placeholder.com/1040x676.png?text=home", slotText(t, doc, "hero", "url"))
}

func TestRender_EscapesValues(t *testing.T) {
	status, err := LoadStatus("")
	require.NoError(t, err)

	doc, err := status.Render(map[string]string{SlotCO: `a "quoted" \ value`})
	require.NoError(t, err)
	require.True(t, json.Valid(doc))
	assert.Equal(t, `a "quoted" \ value`, slotText(t, doc, readingPath(0)...))
}

func TestRender_Concurrent(t *testing.T) {
	status, err := LoadStatus("")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			want := fmt.Sprintf("%d", i)
			doc, err := status.RenderReading(proto.Reading{CO: want, GasLPG: want, Smoke: want, Link: "https://img/" + want})
			if err != nil {
				errs <- err
				return
			}
			got, err := jsonparser.GetString(doc, readingPath(0)...)
			if err != nil {
				errs <- err
				return
			}
			if got != PPM(want) {
				errs <- fmt.Errorf("render %d got %q", i, got)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestLoadFromFile(t *testing.T) {
	doc := `{"type":"bubble","hero":{"url":"x"},"body":{"contents":[{},{"contents":[
		{"contents":[{},{"text":""}]},
		{"contents":[{},{"text":""}]},
		{"contents":[{},{"text":""}]}]}]}}`
	path := filepath.Join(t.TempDir(), "alert.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	alert, err := LoadAlert(path)
	require.NoError(t, err)

	out, err := alert.RenderReading(proto.Reading{CO: "7", GasLPG: "8", Smoke: "9", Link: "https://img"})
	require.NoError(t, err)
	assert.Equal(t, "9 ppm", slotText(t, out, readingPath(2)...))
}

func TestLoadFromFile_MissingSlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"bubble"}`), 0o600))

	_, err := LoadStatus(path)
	assert.Error(t, err)
}

func TestNew_InvalidJSON(t *testing.T) {
	_, err := New("broken", []byte(`{`), nil)
	assert.Error(t, err)
}
