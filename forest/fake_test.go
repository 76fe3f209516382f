package forest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wgdzlh/forestloss/earthengine"
	"github.com/wgdzlh/forestloss/webmap"

	"github.com/paulmach/orb"
)

// 返回固定计算结果，地图id按调用顺序编号
type fakeEngine struct {
	result     string
	computeErr error
	mapErr     error
	computed   []*earthengine.ValueNode
	maps       []earthengine.Image
	vis        []earthengine.VisParams
}

func (e *fakeEngine) ComputeValue(_ context.Context, root *earthengine.ValueNode, out any) error {
	e.computed = append(e.computed, root)
	if e.computeErr != nil {
		return e.computeErr
	}
	return json.Unmarshal([]byte(e.result), out)
}

func (e *fakeEngine) GetMapID(_ context.Context, img earthengine.Image, vis earthengine.VisParams) (earthengine.MapID, error) {
	if e.mapErr != nil {
		return earthengine.MapID{}, e.mapErr
	}
	e.maps = append(e.maps, img)
	e.vis = append(e.vis, vis)
	return earthengine.MapID{Name: fmt.Sprintf("projects/test/maps/m%d", len(e.maps))}, nil
}

func (e *fakeEngine) TileURL(id earthengine.MapID) string {
	return "https://tiles.test/v1/" + id.Name + "/tiles/{z}/{x}/{y}"
}

// 固定应答的AnalyticsClient
type fakeClient struct {
	stats       *ForestStats
	statsErr    error
	overlayErr  error
	statsCalls  int
	overlayCall int
}

func (c *fakeClient) ComputeForestStats(context.Context, orb.Geometry) (*ForestStats, error) {
	c.statsCalls++
	if c.statsErr != nil {
		return nil, c.statsErr
	}
	s := *c.stats
	return &s, nil
}

func (c *fakeClient) ForestOverlays(context.Context, orb.Geometry) ([]webmap.TileLayer, error) {
	c.overlayCall++
	if c.overlayErr != nil {
		return nil, c.overlayErr
	}
	return []webmap.TileLayer{
		{Name: "Forest Cover", URL: "https://tiles.test/cover/{z}/{x}/{y}", Overlay: true, Control: true},
		{Name: "Loss", URL: "https://tiles.test/loss/{z}/{x}/{y}", Overlay: true, Control: true},
		{Name: "Gain", URL: "https://tiles.test/gain/{z}/{x}/{y}", Overlay: true, Control: true},
	}, nil
}

var square = orb.Polygon{{{-3, 52}, {-3, 54}, {-1, 54}, {-1, 52}, {-3, 52}}}
