package webmap

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"

	"github.com/wgdzlh/forestloss/log"
	"github.com/wgdzlh/forestloss/utils"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

const (
	DefaultZoom          = 5
	DefaultPopupMaxWidth = 500
	EarthEngineAttr      = "Google Earth Engine"
)

//go:embed map.html.tmpl
var pageTmpl string

var page = template.Must(template.New("map.html").Parse(pageTmpl))

// 矢量图层中所有要素共用的Leaflet样式
type Style struct {
	Color       string   `json:"color,omitempty"`
	Weight      *float64 `json:"weight,omitempty"`
	FillOpacity *float64 `json:"fillOpacity,omitempty"`
}

// XYZ栅格瓦片图层
type TileLayer struct {
	Name        string
	URL         string
	Attribution string
	Overlay     bool
	Control     bool
}

type Marker struct {
	Location orb.Point // 经度在前
	Popup    string    // HTML
	MaxWidth int
}

type vectorLayer struct {
	Name  string
	Data  template.JS
	Style Style
}

// 单张交互地图的内存状态，非并发安全
type Canvas struct {
	Title   string
	center  orb.Point
	zoom    int
	vectors []vectorLayer
	tiles   []TileLayer
	markers []Marker
	logTag  string
}

func NewCanvas(title string, center orb.Point, zoom int) *Canvas {
	if zoom <= 0 {
		zoom = DefaultZoom
	}
	return &Canvas{
		Title:  title,
		center: center,
		zoom:   zoom,
		logTag: "Canvas:",
	}
}

func (c *Canvas) AddGeoJSON(name string, fc *geojson.FeatureCollection, style Style) error {
	raw, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("marshal %s layer: %w", name, err)
	}
	c.vectors = append(c.vectors, vectorLayer{Name: name, Data: template.JS(raw), Style: style})
	log.Debug(c.logTag+"vector layer added", zap.String("name", name), zap.Int("features", len(fc.Features)))
	return nil
}

func (c *Canvas) AddTileLayer(layer TileLayer) {
	if layer.Attribution == "" {
		layer.Attribution = EarthEngineAttr
	}
	c.tiles = append(c.tiles, layer)
	log.Debug(c.logTag+"tile layer added", zap.String("name", layer.Name))
}

func (c *Canvas) AddMarker(m Marker) {
	if m.MaxWidth <= 0 {
		m.MaxWidth = DefaultPopupMaxWidth
	}
	c.markers = append(c.markers, m)
	log.Debug(c.logTag+"marker added", zap.Float64("lon", m.Location[0]), zap.Float64("lat", m.Location[1]))
}

func (c *Canvas) Center() orb.Point {
	return c.center
}

func (c *Canvas) VectorLayers() int {
	return len(c.vectors)
}

func (c *Canvas) TileLayers() []TileLayer {
	return append([]TileLayer(nil), c.tiles...)
}

func (c *Canvas) Markers() []Marker {
	return append([]Marker(nil), c.markers...)
}

type pageMarker struct {
	Lat, Lon float64
	Popup    string
	MaxWidth int
}

type pageData struct {
	Title    string
	Lat, Lon float64
	Zoom     int
	Vectors  []vectorLayer
	Tiles    []TileLayer
	Markers  []pageMarker
}

// 输出为独立的HTML页面
func (c *Canvas) Render(w io.Writer) error {
	data := pageData{
		Title:   c.Title,
		Lat:     c.center[1],
		Lon:     c.center[0],
		Zoom:    c.zoom,
		Vectors: c.vectors,
		Tiles:   c.tiles,
		Markers: make([]pageMarker, len(c.markers)),
	}
	for i, m := range c.markers {
		data.Markers[i] = pageMarker{Lat: m.Location[1], Lon: m.Location[0], Popup: m.Popup, MaxWidth: m.MaxWidth}
	}
	return page.Execute(w, data)
}

// 以当前状态覆盖写入path
func (c *Canvas) Save(path string) (err error) {
	var buf bytes.Buffer
	if err = c.Render(&buf); err != nil {
		log.Error(c.logTag+"render map failed", zap.Error(err))
		return
	}
	if err = utils.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		log.Error(c.logTag+"save map failed", zap.String("path", path), zap.Error(err))
		return
	}
	log.Info(c.logTag+"map saved", zap.String("path", path), zap.Int("tiles", len(c.tiles)), zap.Int("markers", len(c.markers)))
	return
}
