package forestloss

const (
	SHAPE_ENCODING  = "UTF-8"
	DEFAULT_CPG     = "windows-1252"
	SHP_DRIVER_NAME = "ESRI Shapefile"
	ENCODING_OPTION = "ENCODING=" + SHAPE_ENCODING
	UNIVERSAL_SRID  = 4326
	GEOJSON_SRID    = 4326

	ErrColumnMissingTemplate = `shapefile %s is missing the [%s] field`
	ErrColumnEmptyTemplate   = `shapefile %s has an empty [%s] field at fid %d`

	SHP_FIELD_NAME     = "name"
	SHP_FIELD_AREA     = "area2000"
	SHP_FIELD_LOSS     = "loss"
	SHP_FIELD_LOSS_PCT = "loss_pct"

	NameFieldWidth = 128
	StatsPrecision = 4
)
