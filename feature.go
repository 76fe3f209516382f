package forestloss

import (
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// 将区域集合转为GeoJSON FeatureCollection，保持原有顺序，每个要素仅带name属性
func ToFeatureCollection(set *SiteSet) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Features = make([]*geojson.Feature, 0, len(set.Sites))
	for _, s := range set.Sites {
		f := geojson.NewFeature(s.Geometry)
		f.Properties[SHP_FIELD_NAME] = s.Name
		fc.Append(f)
	}
	return fc
}

// 取出要素的名称，缺失或为空时报错
func FeatureName(f *geojson.Feature) (name string, err error) {
	name = f.Properties.MustString(SHP_FIELD_NAME, "")
	if name == "" {
		err = fmt.Errorf("%w: feature %v", ErrMissingName, f.ID)
	}
	return
}
