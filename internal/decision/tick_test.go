package decision

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/ledwatch/internal/ledstate"
)

func TestElapsed(t *testing.T) {
	assert.Equal(t, 150*time.Second, Elapsed(5, 30*time.Second))
	assert.Equal(t, time.Duration(0), Elapsed(0, 30*time.Second))
}

func TestTick_JSONUsesWireNames(t *testing.T) {
	tick := Tick{
		Index:          3,
		Classification: ledstate.NoLedDetected(),
		State:          State{ConsecutiveNoLed: 3, TotalTicks: 3},
		Verdict:        NoLedDetected,
	}

	data, err := json.Marshal(tick)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "no_led_detected", raw["verdict"])
	assert.Equal(t, "no_led", raw["classification"].(map[string]any)["kind"])

	var back Tick
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, NoLedDetected, back.Verdict)
	assert.Equal(t, ledstate.NoLed, back.Classification.Kind)
	assert.Equal(t, 3, back.State.ConsecutiveNoLed)
}
