package streaming

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/trcimport/pkg/core"
)

func TestEnvelope_CarriesAnimation(t *testing.T) {
	anim := core.Animation{
		EntityID: 3,
		Marker:   "Toe",
		Curves:   []core.Curve{{Channel: core.ChannelHideRender, Keyframes: []core.Keyframe{{Time: 0, Value: 1}}}},
		Samples:  []core.Sample{core.MissingSample()},
	}
	raw, err := json.Marshal(anim)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Samples", "per-frame samples stay local")

	data, err := json.Marshal(Envelope{Type: TypeAnimation, Payload: raw})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, TypeAnimation, env.Type)

	var got core.Animation
	require.NoError(t, json.Unmarshal(env.Payload, &got))
	assert.Equal(t, uint(3), got.EntityID)
	assert.Equal(t, core.ChannelHideRender, got.Curves[0].Channel)
}

func TestAckMessage_Decode(t *testing.T) {
	var ack AckMessage
	require.NoError(t, json.Unmarshal([]byte(`{"type":"ack","for":"end_import"}`), &ack))
	assert.Equal(t, TypeAck, ack.Type)
	assert.Equal(t, TypeEndImport, ack.For)
}
