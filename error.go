package forestloss

import "errors"

var (
	ErrGdalDriverCreate = errors.New("gdal driver create err")
	ErrGdalDriverOpen   = errors.New("gdal driver open err")
	ErrGdalEmptyShp     = errors.New("gdal shp is empty")
	ErrVoidSrid         = errors.New("gdal shp with void srid")
	ErrGdalWrongGeoType = errors.New("gdal wrong geo type")
	ErrGdalWrongGeoJSON = errors.New("gdal wrong GeoJSON")
	ErrInvalidWKT       = errors.New("invalid WKT")
	ErrMissingName      = errors.New("feature without name")
	ErrGdalPartialWrite = errors.New("gdal shp partially written")
)
