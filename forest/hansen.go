package forest

import (
	"context"
	"errors"

	"github.com/wgdzlh/forestloss/earthengine"
	"github.com/wgdzlh/forestloss/log"
	"github.com/wgdzlh/forestloss/webmap"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

const (
	DefaultDataset      = "UMD/hansen/global_forest_change_2023_v1_11"
	DefaultScale        = 30
	DefaultMaxPixels    = 1e9
	DefaultTreeCoverMin = 30
	DefaultAreaDivisor  = 1e7

	BandTreeCover = "treecover2000"
	BandLoss      = "loss"
	BandGain      = "gain"
	BandLossYear  = "lossyear"

	keyArea2000 = "area2000"
	keyLoss     = "loss"
)

var ErrUnsupportedGeometry = errors.New("forest: region must be a polygon or multipolygon")

// Hansen查询所需的Earth Engine能力
type Engine interface {
	ComputeValue(ctx context.Context, root *earthengine.ValueNode, out any) error
	GetMapID(ctx context.Context, img earthengine.Image, vis earthengine.VisParams) (earthengine.MapID, error)
	TileURL(id earthengine.MapID) string
}

type Params struct {
	Dataset      string
	Scale        float64
	MaxPixels    float64
	TreeCoverMin float64
	AreaDivisor  float64
}

func DefaultParams() Params {
	return Params{
		Dataset:      DefaultDataset,
		Scale:        DefaultScale,
		MaxPixels:    DefaultMaxPixels,
		TreeCoverMin: DefaultTreeCoverMin,
		AreaDivisor:  DefaultAreaDivisor,
	}
}

// 基于Global Forest Change产品计算统计与图层，实现AnalyticsClient
type HansenClient struct {
	engine Engine
	params Params
	logTag string
}

func NewHansenClient(engine Engine, params Params) *HansenClient {
	def := DefaultParams()
	if params.Dataset == "" {
		params.Dataset = def.Dataset
	}
	if params.Scale <= 0 {
		params.Scale = def.Scale
	}
	if params.MaxPixels <= 0 {
		params.MaxPixels = def.MaxPixels
	}
	if params.TreeCoverMin <= 0 {
		params.TreeCoverMin = def.TreeCoverMin
	}
	if params.AreaDivisor <= 0 {
		params.AreaDivisor = def.AreaDivisor
	}
	return &HansenClient{engine: engine, params: params, logTag: "Hansen:"}
}

type hansenBands struct {
	region      earthengine.Geometry
	treeCover   earthengine.Image
	loss        earthengine.Image
	gain        earthengine.Image
	lossYear    earthengine.Image
	gainAndLoss earthengine.Image // 仅构建，不渲染
}

func (h *HansenClient) bands(region orb.Geometry) (b hansenBands, err error) {
	geom, ok := earthengine.GeometryFromOrb(region)
	if !ok {
		err = ErrUnsupportedGeometry
		return
	}
	img := earthengine.LoadImage(h.params.Dataset).Clip(geom)
	b = hansenBands{
		region:    geom,
		treeCover: img.Select(BandTreeCover),
		loss:      img.Select(BandLoss),
		gain:      img.Select(BandGain),
		lossYear:  img.Select(BandLossYear),
	}
	b.gainAndLoss = b.gain.And(b.loss)
	return
}

func (h *HansenClient) statsExpression(b hansenBands) *earthengine.ValueNode {
	p := h.params
	treeArea := b.treeCover.Gte(p.TreeCoverMin).SelfMask().
		Multiply(earthengine.PixelArea()).
		ReduceRegionSum(b.region, p.Scale, p.MaxPixels)
	lossArea := b.loss.
		Multiply(earthengine.PixelArea()).
		ReduceRegionSum(b.region, p.Scale, p.MaxPixels)
	return earthengine.Dict(map[string]*earthengine.ValueNode{
		keyArea2000: treeArea.Get(BandTreeCover).Divide(p.AreaDivisor).Node,
		keyLoss:     lossArea.Get(BandLoss).Divide(p.AreaDivisor).Node,
	})
}

func (h *HansenClient) ComputeForestStats(ctx context.Context, region orb.Geometry) (*ForestStats, error) {
	b, err := h.bands(region)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Area2000 *float64 `json:"area2000"`
		Loss     *float64 `json:"loss"`
	}
	if err = h.engine.ComputeValue(ctx, h.statsExpression(b), &raw); err != nil {
		return nil, err
	}
	if raw.Area2000 == nil || raw.Loss == nil {
		log.Warn(h.logTag+"null area in result, counted as zero", zap.Bool("area2000", raw.Area2000 != nil), zap.Bool("loss", raw.Loss != nil))
	}
	stats := NewForestStats(deref(raw.Area2000), deref(raw.Loss))
	log.Debug(h.logTag+"got stats", zap.Float64("area2000", stats.Area2000KHa), zap.Float64("loss", stats.LossAreaKHa), zap.Float64("pct", stats.LossPercentage))
	return stats, nil
}

type overlay struct {
	name string
	img  earthengine.Image
	vis  earthengine.VisParams
}

func (h *HansenClient) overlays(b hansenBands) []overlay {
	maxCover := 100.0
	return []overlay{
		{"Forest Cover", b.treeCover.UpdateMask(b.treeCover), earthengine.VisParams{Palette: []string{"000000", "00FF00"}, Max: &maxCover}},
		{"Loss", b.loss.UpdateMask(b.loss), earthengine.VisParams{Palette: []string{"FF0000"}}},
		{"Gain", b.gain.UpdateMask(b.gain), earthengine.VisParams{Palette: []string{"0000FF"}}},
	}
}

func (h *HansenClient) ForestOverlays(ctx context.Context, region orb.Geometry) ([]webmap.TileLayer, error) {
	b, err := h.bands(region)
	if err != nil {
		return nil, err
	}
	ovs := h.overlays(b)
	layers := make([]webmap.TileLayer, 0, len(ovs))
	for _, o := range ovs {
		id, err := h.engine.GetMapID(ctx, o.img, o.vis)
		if err != nil {
			return nil, err
		}
		layers = append(layers, webmap.TileLayer{
			Name:        o.name,
			URL:         h.engine.TileURL(id),
			Attribution: webmap.EarthEngineAttr,
			Overlay:     true,
			Control:     true,
		})
	}
	return layers, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
