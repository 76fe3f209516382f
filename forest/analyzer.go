package forest

import (
	"context"

	"github.com/wgdzlh/forestloss/log"
	"github.com/wgdzlh/forestloss/webmap"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"go.uber.org/zap"
)

const DefaultLossThreshold = 10.0

// 远程森林变化统计，调用阻塞至服务端返回，不做重试
type AnalyticsClient interface {
	ComputeForestStats(ctx context.Context, region orb.Geometry) (*ForestStats, error)
	ForestOverlays(ctx context.Context, region orb.Geometry) ([]webmap.TileLayer, error)
}

// 损失超过阈值的区域
type FlaggedRegion struct {
	Name     string
	Geometry orb.Geometry
	Stats    ForestStats
}

// 逐区域判断是否在地图上标注
type Analyzer struct {
	client    AnalyticsClient
	canvas    *webmap.Canvas
	threshold float64
	flagged   []FlaggedRegion
	logTag    string
}

func NewAnalyzer(client AnalyticsClient, canvas *webmap.Canvas, threshold float64) *Analyzer {
	return &Analyzer{
		client:    client,
		canvas:    canvas,
		threshold: threshold,
		logTag:    "Analyzer:",
	}
}

// 计算区域森林统计；损失百分比严格大于阈值时添加三个图层及区域中心的标记
// 远程错误原样返回
func (a *Analyzer) Analyze(ctx context.Context, region orb.Geometry, name string) error {
	stats, err := a.client.ComputeForestStats(ctx, region)
	if err != nil {
		log.Error(a.logTag+"compute stats failed", zap.String("name", name), zap.Error(err))
		return err
	}
	log.Info(a.logTag+"forest stats",
		zap.String("name", name),
		zap.Float64("area2000", stats.Area2000KHa),
		zap.Float64("loss", stats.LossAreaKHa),
		zap.Float64("pct", stats.LossPercentage))
	if !(stats.LossPercentage > a.threshold) {
		return nil
	}
	layers, err := a.client.ForestOverlays(ctx, region)
	if err != nil {
		log.Error(a.logTag+"get overlays failed", zap.String("name", name), zap.Error(err))
		return err
	}
	popup, err := PopupHTML(name, stats)
	if err != nil {
		return err
	}
	for _, l := range layers {
		a.canvas.AddTileLayer(l)
	}
	center, _ := planar.CentroidArea(region)
	a.canvas.AddMarker(webmap.Marker{
		Location: center,
		Popup:    popup,
		MaxWidth: webmap.DefaultPopupMaxWidth,
	})
	a.flagged = append(a.flagged, FlaggedRegion{Name: name, Geometry: region, Stats: *stats})
	log.Info(a.logTag+"region annotated", zap.String("name", name), zap.Float64("pct", stats.LossPercentage), zap.Float64("threshold", a.threshold))
	return nil
}

func (a *Analyzer) Flagged() []FlaggedRegion {
	return append([]FlaggedRegion(nil), a.flagged...)
}
