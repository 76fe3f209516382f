package forestloss

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/wgdzlh/forestloss/log"
	"github.com/wgdzlh/forestloss/utils"

	"github.com/lukeroth/gdal"
	"github.com/paulmach/orb"
	orbwkt "github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

type GdalToolbox struct {
	refMap map[int]gdal.SpatialReference
	rLock  sync.Mutex
	logTag string
}

// 由GDAL库C语言创建的内存对象，需要手动调用Destroy回收
type destroyable interface {
	Destroy()
}

func NewGdalToolbox() *GdalToolbox {
	return &GdalToolbox{
		refMap: map[int]gdal.SpatialReference{},
		logTag: "GdalToolbox:",
	}
}

// 获取srid对应的坐标系（可复用，故无需回收）
func (g *GdalToolbox) getSridRef(srid int) (ref gdal.SpatialReference, err error) {
	g.rLock.Lock()
	defer g.rLock.Unlock()
	ref, ok := g.refMap[srid]
	if ok {
		return
	}
	ref = gdal.CreateSpatialReference("")
	if err = ref.FromEPSG(srid); err != nil {
		log.Error(g.logTag+"set ref srid failed", zap.Int("srid", srid), zap.Error(err))
		ref.Destroy()
		return
	}
	// 固定为(经度,纬度)次序，否则转换坐标系或转GeoJSON时次序可能倒置
	ref.SetAxisMappingStrategy(gdal.OAMS_TraditionalGisOrder)
	g.refMap[srid] = ref
	return
}

// 获取坐标系的EPSG编号；无AUTHORITY的（如ESRI导出的prj）返回0，调用方按WKT转换
func (g *GdalToolbox) getSrid(sp gdal.SpatialReference) (srid int, err error) {
	wkt, e := sp.ToWKT()
	if e != nil || wkt == "" {
		err = ErrVoidSrid
		return
	}
	log.Debug(g.logTag+"spatial ref attrs", zap.String("attr", wkt))
	rawId, ok := sp.AttrValue("AUTHORITY", 1)
	if !ok {
		return
	}
	srid, err = strconv.Atoi(rawId)
	log.Debug(g.logTag+"got srid from sp", zap.String("id", rawId))
	return
}

// 获取shp的srid
func (g *GdalToolbox) GetSridOfShapefile(shp string) (srid int, err error) {
	driver := gdal.OGRDriverByName(SHP_DRIVER_NAME)
	ds, ok := driver.Open(shp, 0)
	if !ok {
		err = fmt.Errorf("%w: %s", ErrGdalDriverOpen, shp)
		return
	}
	defer ds.Destroy()
	layer := ds.LayerByIndex(0)
	return g.getSrid(layer.SpatialReference())
}

func (g *GdalToolbox) parseWKT(wkt string, ref gdal.SpatialReference) (ret gdal.Geometry, err error) {
	ret, err = gdal.CreateFromWKT(wkt, ref)
	if err != nil {
		log.Error(g.logTag+"parse wkt failed", zap.Error(err))
		err = ErrInvalidWKT
	}
	return
}

// GDAL矢量转orb矢量（经GeoJSON），仅接受面
func (g *GdalToolbox) toOrb(geo gdal.Geometry) (ret orb.Geometry, err error) {
	switch geo.Type() {
	case gdal.GT_Polygon25D, gdal.GT_MultiPolygon25D:
		geo.FlattenTo2D()
	case gdal.GT_Polygon, gdal.GT_MultiPolygon:
	default:
		err = ErrGdalWrongGeoType
		return
	}
	gj, err := geojson.UnmarshalGeometry(utils.S2B(geo.ToJSON()))
	if err != nil {
		log.Error(g.logTag+"parse gdal GeoJSON failed", zap.Error(err))
		err = ErrGdalWrongGeoJSON
		return
	}
	ret = gj.Geometry()
	return
}

// orb矢量转GDAL矢量（srid=4326），调用方负责Destroy
func (g *GdalToolbox) fromOrb(geom orb.Geometry) (ret gdal.Geometry, err error) {
	ref, err := g.getSridRef(GEOJSON_SRID)
	if err != nil {
		return
	}
	return g.parseWKT(orbwkt.MarshalString(geom), ref)
}

// 转换WKT坐标系
func (g *GdalToolbox) TransformWkt(wkt string, srid, tSrid int) (ret string, err error) {
	if tSrid == srid {
		ret = wkt
		return
	}
	tRef, err := g.getSridRef(tSrid)
	if err != nil {
		return
	}
	geo, err := g.transformWktTo(wkt, srid, tRef)
	if err != nil {
		return
	}
	defer geo.Destroy()
	ret, err = geo.ToWKT()
	return
}

// 解析srid下的WKT并转换到tRef（tRef可来自prj，不要求有EPSG编号），调用方负责Destroy
func (g *GdalToolbox) transformWktTo(wkt string, srid int, tRef gdal.SpatialReference) (geo gdal.Geometry, err error) {
	ref, err := g.getSridRef(srid)
	if err != nil {
		return
	}
	if geo, err = g.parseWKT(wkt, ref); err != nil {
		return
	}
	if err = geo.TransformTo(tRef); err != nil {
		log.Error(g.logTag+"geo transform failed", zap.Error(err))
		geo.Destroy()
	}
	return
}

// 获取WKT经纬度范围
func (g *GdalToolbox) GetWktSpan(wkt string, srid int) (span [4]float64, err error) {
	ref, err := g.getSridRef(srid)
	if err != nil {
		return
	}
	geo, err := g.parseWKT(wkt, ref)
	if err != nil {
		return
	}
	defer geo.Destroy()
	span = envelopeSpan(geo)
	return
}

// 外包框，顺序为 minX, maxX, minY, maxY
func envelopeSpan(geo gdal.Geometry) (span [4]float64) {
	envelop := geo.Envelope()
	span[0] = envelop.MinX()
	span[1] = envelop.MaxX()
	span[2] = envelop.MinY()
	span[3] = envelop.MaxY()
	return
}

func PointsToWkt(lon1, lon2, lat1, lat2 float64) string {
	return fmt.Sprintf("POLYGON((%[1]f %[3]f, %[1]f %[4]f, %[2]f %[4]f, %[2]f %[3]f, %[1]f %[3]f))", lon1, lon2, lat1, lat2)
}

func SpanToWkt(span [4]float64) string {
	return PointsToWkt(span[0], span[1], span[2], span[3])
}
