package forestloss

import (
	"github.com/paulmach/orb"
)

// 单个受保护区域/行政区矢量（EPSG:4326，经度在前）
type Site struct {
	Fid      int64
	Name     string
	Geometry orb.Geometry // Polygon 或 MultiPolygon
	Centroid orb.Point
}

// 从一个shp文件载入的区域集合，载入后不再修改
type SiteSet struct {
	Label string
	Path  string
	Sites []Site
}

// 超过损失阈值的区域统计，用于导出shp
type FlaggedSite struct {
	Name           string
	Geometry       orb.Geometry
	Area2000KHa    float64
	LossAreaKHa    float64
	LossPercentage float64
}

// 各区域中心点的平均值，作为地图中心
func (s *SiteSet) MeanCentroid() (center orb.Point) {
	if len(s.Sites) == 0 {
		return
	}
	for _, site := range s.Sites {
		center[0] += site.Centroid[0]
		center[1] += site.Centroid[1]
	}
	n := float64(len(s.Sites))
	center[0] /= n
	center[1] /= n
	return
}

// shp概况：坐标系、要素数与范围（span顺序为 minX, maxX, minY, maxY）
type ShpSummary struct {
	Path       string
	Srid       int // 0 表示prj中无EPSG代码
	Features   int
	Span       [4]float64 // EPSG:4326
	NativeSpan [4]float64 // prj中的原坐标系
}
