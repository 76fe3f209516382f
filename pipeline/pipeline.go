package pipeline

import (
	"context"
	"fmt"

	"github.com/wgdzlh/forestloss"
	"github.com/wgdzlh/forestloss/config"
	"github.com/wgdzlh/forestloss/forest"
	"github.com/wgdzlh/forestloss/log"
	"github.com/wgdzlh/forestloss/metrics"
	"github.com/wgdzlh/forestloss/webmap"

	"go.uber.org/zap"
)

// 载入区域shp、导出超阈值区域，由*forestloss.GdalToolbox实现
type Toolbox interface {
	LoadSites(label, shp, nameField string, required bool) (*forestloss.SiteSet, error)
	WriteFlaggedShapefile(shp string, sites ...forestloss.FlaggedSite) error
}

const (
	LabelTrust   = "trust_sites"
	LabelEngland = "england"
	LabelWales   = "wales"
)

var (
	weightBoundary      = 0.5
	fillOpacityBoundary = 0.0

	trustStyle    = webmap.Style{Color: "yellow"}
	boundaryStyle = webmap.Style{Color: "purple", Weight: &weightBoundary, FillOpacity: &fillOpacityBoundary}
)

type Pipeline struct {
	cfg      *config.Config
	toolbox  Toolbox
	client   forest.AnalyticsClient
	canvas   *webmap.Canvas
	analyzer *forest.Analyzer
	logTag   string
}

func New(cfg *config.Config, toolbox Toolbox, client forest.AnalyticsClient) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		toolbox: toolbox,
		client:  client,
		logTag:  "Pipeline:",
	}
}

// Run载入输入前为nil
func (p *Pipeline) Canvas() *webmap.Canvas {
	return p.canvas
}

// 依次载入、转换、分析、保存；出错即中止，输出文件保留最后完成区域时的状态
func (p *Pipeline) Run(ctx context.Context) (err error) {
	in := p.cfg.Inputs
	trust, err := p.toolbox.LoadSites(LabelTrust, in.TrustSites.Path, in.TrustSites.NameField, false)
	if err != nil {
		return
	}
	england, err := p.toolbox.LoadSites(LabelEngland, in.England.Path, in.England.NameField, true)
	if err != nil {
		return
	}
	wales, err := p.toolbox.LoadSites(LabelWales, in.Wales.Path, in.Wales.NameField, true)
	if err != nil {
		return
	}
	log.Info(p.logTag+"inputs loaded", zap.Int(LabelTrust, len(trust.Sites)), zap.Int(LabelEngland, len(england.Sites)), zap.Int(LabelWales, len(wales.Sites)))

	p.canvas = webmap.NewCanvas(p.cfg.Map.Title, england.MeanCentroid(), p.cfg.Map.Zoom)
	if err = p.canvas.AddGeoJSON(LabelTrust, forestloss.ToFeatureCollection(trust), trustStyle); err != nil {
		return
	}
	for _, set := range []*forestloss.SiteSet{england, wales} {
		if err = p.canvas.AddGeoJSON(set.Label, forestloss.ToFeatureCollection(set), boundaryStyle); err != nil {
			return
		}
	}

	p.analyzer = forest.NewAnalyzer(p.client, p.canvas, p.cfg.Analysis.LossThreshold)
	for _, set := range []*forestloss.SiteSet{england, wales} {
		if err = p.processRegions(ctx, set); err != nil {
			return
		}
	}
	if err = p.canvas.Save(p.cfg.Output.HTML); err != nil {
		return
	}
	if err = p.exportFlagged(); err != nil {
		return
	}
	if err = metrics.WriteTextfile(p.cfg.Output.MetricsFile); err != nil {
		log.Error(p.logTag+"write metrics failed", zap.String("path", p.cfg.Output.MetricsFile), zap.Error(err))
		return
	}
	log.Info(p.logTag+"done", zap.String("html", p.cfg.Output.HTML), zap.Int("flagged", len(p.analyzer.Flagged())))
	return
}

func (p *Pipeline) processRegions(ctx context.Context, set *forestloss.SiteSet) error {
	fc := forestloss.ToFeatureCollection(set)
	for i, f := range fc.Features {
		name, err := forestloss.FeatureName(f)
		if err != nil {
			return fmt.Errorf("%s feature %d: %w", set.Label, i, err)
		}
		if err = ctx.Err(); err != nil {
			return err
		}
		log.Info(p.logTag+"processing region", zap.String("dataset", set.Label), zap.String("name", name), zap.Int("idx", i+1), zap.Int("total", len(fc.Features)))
		before := len(p.analyzer.Flagged())
		if err = p.analyzer.Analyze(ctx, f.Geometry, name); err != nil {
			return fmt.Errorf("analyze %s: %w", name, err)
		}
		metrics.RegionsProcessedTotal.WithLabelValues(set.Label).Inc()
		if len(p.analyzer.Flagged()) > before {
			metrics.RegionsAnnotatedTotal.WithLabelValues(set.Label).Inc()
		}
		if err = p.canvas.Save(p.cfg.Output.HTML); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) exportFlagged() error {
	shp := p.cfg.Output.FlaggedShp
	if shp == "" {
		return nil
	}
	flagged := p.analyzer.Flagged()
	sites := make([]forestloss.FlaggedSite, len(flagged))
	for i, f := range flagged {
		sites[i] = forestloss.FlaggedSite{
			Name:           f.Name,
			Geometry:       f.Geometry,
			Area2000KHa:    f.Stats.Area2000KHa,
			LossAreaKHa:    f.Stats.LossAreaKHa,
			LossPercentage: f.Stats.LossPercentage,
		}
	}
	return p.toolbox.WriteFlaggedShapefile(shp, sites...)
}
