package out

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ggonzalez94/ord-wallet/internal/config"
	"github.com/ggonzalez94/ord-wallet/internal/model"
)

func TestRenderJSONSelectResultsOnly(t *testing.T) {
	env := model.Envelope{
		Version: "v1",
		Success: true,
		Data:    []model.CardinalEntry{{Output: "aa:0", Amount: 1000}},
		Meta:    model.EnvelopeMeta{Timestamp: time.Now()},
	}
	settings := config.Settings{OutputMode: "json", SelectFields: []string{"output"}, ResultsOnly: true}
	var buf bytes.Buffer
	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var out []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if diff := cmp.Diff([]map[string]any{{"output": "aa:0"}}, out); diff != "" {
		t.Fatalf("unexpected projection (-want +got):\n%s", diff)
	}
}

func TestRenderSelectDottedPath(t *testing.T) {
	env := model.Envelope{
		Success: true,
		Data: model.Action{
			ActionID: "a1",
			Details:  map[string]any{"inputs": []string{"aa:0"}, "sats": 5},
		},
	}
	settings := config.Settings{OutputMode: "json", SelectFields: []string{"action_id", "details.inputs"}, ResultsOnly: true}
	var buf bytes.Buffer
	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	want := map[string]any{"action_id": "a1", "details.inputs": []any{"aa:0"}}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("unexpected projection (-want +got):\n%s", diff)
	}
}

func TestRenderPlain(t *testing.T) {
	env := model.Envelope{
		Version: "v1",
		Success: true,
		Data:    []model.OutputEntry{{Output: "aa:0", Amount: 42, Inscriptions: []string{"aai0"}}},
		Meta:    model.EnvelopeMeta{Timestamp: time.Now()},
	}
	settings := config.Settings{OutputMode: "plain", ResultsOnly: true}
	var buf bytes.Buffer
	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != `amount=42 inscriptions=["aai0"] output=aa:0` {
		t.Fatalf("unexpected plain output: %s", got)
	}
}

func TestRenderPlainBareStrings(t *testing.T) {
	env := model.Envelope{Success: true, Data: []string{"bc1pone", "bc1ptwo"}}
	var buf bytes.Buffer
	if err := Render(&buf, env, config.Settings{OutputMode: "plain", ResultsOnly: true}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if buf.String() != "bc1pone\nbc1ptwo\n" {
		t.Fatalf("unexpected plain output: %q", buf.String())
	}
}
