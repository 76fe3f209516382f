package forestloss

import (
	"fmt"

	"github.com/wgdzlh/forestloss/log"
	"github.com/wgdzlh/forestloss/utils"

	"github.com/lukeroth/gdal"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// 从shp文件载入区域矢量并转为EPSG:4326
// nameField为空或required为false时，缺失名称字段不报错（仅用于展示的图层）
func (g *GdalToolbox) LoadSites(label, shp, nameField string, required bool) (ret *SiteSet, err error) {
	log.Info(g.logTag+"start load sites", zap.String("label", label), zap.String("shp", shp))
	driver := gdal.OGRDriverByName(SHP_DRIVER_NAME)
	ds, ok := driver.Open(shp, 0)
	if !ok {
		err = fmt.Errorf("%w: %s", ErrGdalDriverOpen, shp)
		return
	}
	defer ds.Destroy()
	var (
		layer = ds.LayerByIndex(0)
		sRef  = layer.SpatialReference()
		trans gdal.CoordinateTransform
		gc    []destroyable
	)
	srid, err := g.getSrid(sRef)
	if err != nil {
		log.Error(g.logTag+"shp without spatial ref", zap.String("shp", shp), zap.Error(err))
		return
	}
	nameIdx := -1
	if nameField != "" {
		nameIdx = layer.Definition().FieldIndex(nameField)
	}
	if nameIdx < 0 && required {
		err = fmt.Errorf(ErrColumnMissingTemplate, shp, nameField)
		return
	}
	cpg := utils.GetShpEncoding(shp, DEFAULT_CPG)
	defer func() {
		for _, v := range gc {
			v.Destroy()
		}
	}()
	needTrans := srid != UNIVERSAL_SRID
	if needTrans {
		var tRef gdal.SpatialReference
		if tRef, err = g.getSridRef(UNIVERSAL_SRID); err != nil {
			return
		}
		trans = gdal.CreateCoordinateTransform(sRef, tRef)
		gc = append(gc, trans)
	}
	n := 128
	if nf, _ := layer.FeatureCount(false); nf > 0 {
		n = nf
	}
	ret = &SiteSet{
		Label: label,
		Path:  shp,
		Sites: make([]Site, 0, n),
	}
	var (
		feature *gdal.Feature
		geo     gdal.Geometry
		site    Site
	)
	for {
		if feature = layer.NextFeature(); feature == nil {
			break
		}
		gc = append(gc, *feature)
		site = Site{Fid: feature.FID()}
		geo = feature.Geometry()
		if needTrans {
			if err = geo.Transform(trans); err != nil {
				log.Error(g.logTag+"geo transform failed", zap.String("shp", shp), zap.Int64("fid", site.Fid), zap.Error(err))
				return
			}
		}
		if site.Geometry, err = g.toOrb(geo); err != nil {
			log.Error(g.logTag+"unsupported geometry", zap.String("shp", shp), zap.Int64("fid", site.Fid), zap.Error(err))
			return
		}
		site.Centroid = g.centroid(geo)
		if nameIdx >= 0 {
			site.Name = utils.DecodeShpText(feature.FieldAsString(nameIdx), cpg)
		}
		if site.Name == "" && required {
			err = fmt.Errorf(ErrColumnEmptyTemplate, shp, nameField, site.Fid)
			return
		}
		ret.Sites = append(ret.Sites, site)
	}
	if len(ret.Sites) == 0 {
		err = fmt.Errorf("%w: %s", ErrGdalEmptyShp, shp)
		return
	}
	log.Info(g.logTag+"got sites from shp", zap.String("label", label), zap.Int("srid", srid), zap.String("cpg", cpg), zap.Int("cnt", len(ret.Sites)))
	return
}

func (g *GdalToolbox) centroid(geo gdal.Geometry) (pt orb.Point) {
	c := geo.Centroid()
	defer c.Destroy()
	if c.IsEmpty() {
		return
	}
	pt[0], pt[1] = c.X(0), c.Y(0)
	return
}

func (g *GdalToolbox) getShpDriver(shp string, srid int) (ds gdal.DataSource, ref gdal.SpatialReference, layer gdal.Layer, err error) {
	log.Info(g.logTag+"output shp files", zap.String("shp", shp), zap.Int("srid", srid))
	driver := gdal.OGRDriverByName(SHP_DRIVER_NAME)
	ds, ok := driver.Create(shp, nil)
	if !ok {
		err = ErrGdalDriverCreate
		return
	}
	if ref, err = g.getSridRef(srid); err != nil {
		ds.Destroy()
		return
	}
	layer = ds.CreateLayer("", ref, gdal.GT_Unknown, []string{ENCODING_OPTION})
	return
}

func (g *GdalToolbox) initFlaggedLayer(layer gdal.Layer) (err error) {
	name := gdal.CreateFieldDefinition(SHP_FIELD_NAME, gdal.FT_String)
	name.SetWidth(NameFieldWidth)
	defer name.Destroy()
	if err = layer.CreateField(name, false); err != nil {
		return
	}
	for _, f := range []string{SHP_FIELD_AREA, SHP_FIELD_LOSS, SHP_FIELD_LOSS_PCT} {
		fd := gdal.CreateFieldDefinition(f, gdal.FT_Real)
		fd.SetPrecision(StatsPrecision)
		err = layer.CreateField(fd, false)
		fd.Destroy()
		if err != nil {
			return
		}
	}
	return
}

// 将超过损失阈值的区域及其统计写入shp（srid=4326）
func (g *GdalToolbox) WriteFlaggedShapefile(shp string, sites ...FlaggedSite) (err error) {
	ds, _, layer, err := g.getShpDriver(shp, UNIVERSAL_SRID)
	if err != nil {
		return
	}
	defer ds.Destroy() // 生成shp文件 + 释放资源
	if err = g.initFlaggedLayer(layer); err != nil {
		log.Error(g.logTag+"init flagged layer failed", zap.Error(err))
		return
	}
	var (
		def     = layer.Definition()
		nameIdx = def.FieldIndex(SHP_FIELD_NAME)
		areaIdx = def.FieldIndex(SHP_FIELD_AREA)
		lossIdx = def.FieldIndex(SHP_FIELD_LOSS)
		pctIdx  = def.FieldIndex(SHP_FIELD_LOSS_PCT)
		feature gdal.Feature
		geo     gdal.Geometry
		cnt     int
		e       error
		gc      = make([]destroyable, 0, len(sites))
	)
	defer func() {
		for _, v := range gc {
			v.Destroy()
		}
	}()
	for i, s := range sites {
		feature = def.Create()
		gc = append(gc, feature)
		if e = feature.SetFID(int64(i)); e != nil {
			log.Error(g.logTag+"err in set feature fid", zap.Error(e))
			continue
		}
		feature.SetFieldString(nameIdx, s.Name)
		feature.SetFieldFloat64(areaIdx, s.Area2000KHa)
		feature.SetFieldFloat64(lossIdx, s.LossAreaKHa)
		feature.SetFieldFloat64(pctIdx, s.LossPercentage)
		if geo, e = g.fromOrb(s.Geometry); e != nil {
			log.Error(g.logTag+"err in convert geom of feature", zap.String("name", s.Name), zap.Error(e))
			continue
		}
		if e = feature.SetGeometryDirectly(geo); e != nil {
			log.Error(g.logTag+"err in set geom of feature", zap.String("name", s.Name), zap.Error(e))
			geo.Destroy()
			continue
		}
		if e = layer.Create(feature); e != nil {
			log.Error(g.logTag+"err in create feature of layer", zap.Error(e))
			continue
		}
		cnt++
	}
	log.Info(g.logTag+"flagged shp files created", zap.String("shp", shp), zap.Int("total", len(sites)), zap.Int("valid", cnt))
	if cnt < len(sites) {
		err = fmt.Errorf("%w: %d of %d written to %s", ErrGdalPartialWrite, cnt, len(sites), shp)
	}
	return
}

// 汇总shp的坐标系与范围，范围先在EPSG:4326下求出，再按prj中的坐标系转回
func (g *GdalToolbox) SummarizeShapefile(shp string) (ret ShpSummary, err error) {
	ret.Path = shp
	set, err := g.LoadSites(utils.GetFilenameWithoutExt(shp), shp, "", false)
	if err != nil {
		return
	}
	ret.Features = len(set.Sites)
	b := set.Sites[0].Geometry.Bound()
	for _, s := range set.Sites[1:] {
		b = b.Union(s.Geometry.Bound())
	}
	ret.Span = [4]float64{b.Min[0], b.Max[0], b.Min[1], b.Max[1]}

	driver := gdal.OGRDriverByName(SHP_DRIVER_NAME)
	ds, ok := driver.Open(shp, 0)
	if !ok {
		err = fmt.Errorf("%w: %s", ErrGdalDriverOpen, shp)
		return
	}
	defer ds.Destroy()
	sRef := ds.LayerByIndex(0).SpatialReference()
	if ret.Srid, err = g.getSrid(sRef); err != nil {
		return
	}
	geo, err := g.transformWktTo(SpanToWkt(ret.Span), UNIVERSAL_SRID, sRef)
	if err != nil {
		return
	}
	defer geo.Destroy()
	ret.NativeSpan = envelopeSpan(geo)
	return
}
