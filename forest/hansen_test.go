package forest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/wgdzlh/forestloss/earthengine"
	"github.com/wgdzlh/forestloss/log"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func functionNames(n *earthengine.ValueNode, into map[string]int) {
	if n == nil {
		return
	}
	if f := n.FunctionInvocationValue; f != nil {
		into[f.FunctionName]++
		for _, arg := range f.Arguments {
			functionNames(&arg, into)
		}
	}
	if d := n.DictionaryValue; d != nil {
		for _, v := range d.Values {
			functionNames(&v, into)
		}
	}
	if a := n.ArrayValue; a != nil {
		for _, v := range a.Values {
			functionNames(v, into)
		}
	}
}

func TestComputeForestStats(t *testing.T) {
	eng := &fakeEngine{result: `{"area2000": 123.456, "loss": 45.678}`}
	h := NewHansenClient(eng, Params{})

	stats, err := h.ComputeForestStats(context.Background(), square)
	require.NoError(t, err)
	assert.Equal(t, 123.456, stats.Area2000KHa)
	assert.Equal(t, 45.678, stats.LossAreaKHa)
	assert.InDelta(t, 37.398, stats.LossPercentage, 1e-3)

	require.Len(t, eng.computed, 1)
	root := eng.computed[0]
	require.NotNil(t, root.DictionaryValue)
	assert.Contains(t, root.DictionaryValue.Values, "area2000")
	assert.Contains(t, root.DictionaryValue.Values, "loss")

	names := map[string]int{}
	functionNames(root, names)
	assert.Equal(t, 2, names["Image.reduceRegion"])
	assert.Equal(t, 2, names["Reducer.sum"])
	assert.Equal(t, 2, names["Image.pixelArea"])
	assert.Equal(t, 2, names["Number.divide"])
	assert.Equal(t, 1, names["Image.gte"])
	assert.Equal(t, 1, names["Image.selfMask"])
	assert.Zero(t, names["Image.and"], "gain and loss mask must not be computed")

	raw, err := json.Marshal(root)
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, `"constantValue":"UMD/hansen/global_forest_change_2023_v1_11"`)
	assert.Contains(t, body, `"maxPixels":{"constantValue":1000000000}`)
	assert.Contains(t, body, `"scale":{"constantValue":30}`)
	assert.Contains(t, body, `"right":{"constantValue":10000000}`)
	assert.Contains(t, body, `"constantValue":["treecover2000"]`)
	assert.Contains(t, body, `"functionName":"GeometryConstructors.Polygon"`)
}

func TestComputeForestStatsCustomParams(t *testing.T) {
	eng := &fakeEngine{result: `{"area2000": 1, "loss": 0}`}
	h := NewHansenClient(eng, Params{Dataset: "UMD/hansen/global_forest_change_2022_v1_10", Scale: 60, TreeCoverMin: 50})
	_, err := h.ComputeForestStats(context.Background(), orb.MultiPolygon{square})
	require.NoError(t, err)

	raw, err := json.Marshal(eng.computed[0])
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, "global_forest_change_2022_v1_10")
	assert.Contains(t, body, `"scale":{"constantValue":60}`)
	assert.Contains(t, body, `"value":{"constantValue":50}`)
	assert.Contains(t, body, "GeometryConstructors.MultiPolygon")
}

func TestComputeForestStatsNullResult(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	defer log.Replace(zap.New(core))()

	eng := &fakeEngine{result: `{"area2000": null, "loss": null}`}
	stats, err := NewHansenClient(eng, DefaultParams()).ComputeForestStats(context.Background(), square)
	require.NoError(t, err)
	assert.Zero(t, stats.Area2000KHa)
	assert.Zero(t, stats.LossPercentage)
	assert.Equal(t, 1, logs.Len())
}

func TestComputeForestStatsErrors(t *testing.T) {
	_, err := NewHansenClient(&fakeEngine{}, DefaultParams()).ComputeForestStats(context.Background(), orb.Point{1, 2})
	assert.ErrorIs(t, err, ErrUnsupportedGeometry)

	remote := &earthengine.APIError{HTTPStatus: 400, Status: "INVALID_ARGUMENT", Message: "too many pixels"}
	_, err = NewHansenClient(&fakeEngine{computeErr: remote}, DefaultParams()).ComputeForestStats(context.Background(), square)
	var apiErr *earthengine.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "too many pixels", apiErr.Message)
}

func TestForestOverlays(t *testing.T) {
	eng := &fakeEngine{}
	layers, err := NewHansenClient(eng, DefaultParams()).ForestOverlays(context.Background(), square)
	require.NoError(t, err)
	require.Len(t, layers, 3)

	assert.Equal(t, []string{"Forest Cover", "Loss", "Gain"}, []string{layers[0].Name, layers[1].Name, layers[2].Name})
	for i, l := range layers {
		assert.True(t, l.Overlay)
		assert.True(t, l.Control)
		assert.Equal(t, "Google Earth Engine", l.Attribution)
		assert.Contains(t, l.URL, "projects/test/maps/m")
		assert.Contains(t, l.URL, "{z}/{x}/{y}")
		assert.Equal(t, "Image.updateMask", eng.maps[i].Node.FunctionInvocationValue.FunctionName)
	}

	assert.Equal(t, []string{"000000", "00FF00"}, eng.vis[0].Palette)
	require.NotNil(t, eng.vis[0].Max)
	assert.Equal(t, 100.0, *eng.vis[0].Max)
	assert.Nil(t, eng.vis[0].Min)
	assert.Equal(t, []string{"FF0000"}, eng.vis[1].Palette)
	assert.Equal(t, []string{"0000FF"}, eng.vis[2].Palette)
	assert.Nil(t, eng.vis[1].Max)
}

func TestForestOverlaysError(t *testing.T) {
	boom := errors.New("maps unavailable")
	_, err := NewHansenClient(&fakeEngine{mapErr: boom}, DefaultParams()).ForestOverlays(context.Background(), square)
	assert.ErrorIs(t, err, boom)
}

func TestNewHansenClientDefaults(t *testing.T) {
	h := NewHansenClient(&fakeEngine{}, Params{Scale: -1})
	assert.Equal(t, DefaultParams(), h.params)
}
