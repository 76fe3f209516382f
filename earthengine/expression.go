package earthengine

import (
	"github.com/paulmach/orb"
	ee "google.golang.org/api/earthengine/v1"
)

// 表达式图直接使用生成的REST类型
type (
	Expression = ee.Expression
	ValueNode  = ee.ValueNode
)

const rootKey = "0"

// 单根节点的表达式，子树内联，不做去重
func NewExpression(root *ValueNode) *Expression {
	return &Expression{
		Result: rootKey,
		Values: map[string]ee.ValueNode{rootKey: *root},
	}
}

func Constant(v any) *ValueNode {
	return &ValueNode{ConstantValue: v}
}

func Invoke(name string, args map[string]*ValueNode) *ValueNode {
	fn := &ee.FunctionInvocation{FunctionName: name}
	if len(args) > 0 {
		fn.Arguments = make(map[string]ee.ValueNode, len(args))
		for k, v := range args {
			fn.Arguments[k] = *v
		}
	}
	return &ValueNode{FunctionInvocationValue: fn}
}

func Dict(values map[string]*ValueNode) *ValueNode {
	d := &ee.DictionaryValue{Values: make(map[string]ee.ValueNode, len(values))}
	for k, v := range values {
		d.Values[k] = *v
	}
	return &ValueNode{DictionaryValue: d}
}

func Array(values ...*ValueNode) *ValueNode {
	return &ValueNode{ArrayValue: &ee.ArrayValue{Values: values}}
}

// 服务端影像（惰性求值）
type Image struct {
	Node *ValueNode
}

type Geometry struct {
	Node *ValueNode
}

type Number struct {
	Node *ValueNode
}

// 服务端字典，如reduceRegion的结果
type Dictionary struct {
	Node *ValueNode
}

func LoadImage(id string) Image {
	return Image{Invoke("Image.load", map[string]*ValueNode{"id": Constant(id)})}
}

func ConstantImage(v float64) Image {
	return Image{Invoke("Image.constant", map[string]*ValueNode{"value": Constant(v)})}
}

func PixelArea() Image {
	return Image{Invoke("Image.pixelArea", nil)}
}

func (i Image) Clip(g Geometry) Image {
	return Image{Invoke("Image.clip", map[string]*ValueNode{"input": i.Node, "geometry": g.Node})}
}

func (i Image) Select(bands ...string) Image {
	return Image{Invoke("Image.select", map[string]*ValueNode{"input": i.Node, "bandSelectors": Constant(bands)})}
}

func (i Image) Gte(v float64) Image {
	return Image{Invoke("Image.gte", map[string]*ValueNode{"image1": i.Node, "image2": ConstantImage(v).Node})}
}

func (i Image) And(o Image) Image {
	return Image{Invoke("Image.and", map[string]*ValueNode{"image1": i.Node, "image2": o.Node})}
}

func (i Image) Multiply(o Image) Image {
	return Image{Invoke("Image.multiply", map[string]*ValueNode{"image1": i.Node, "image2": o.Node})}
}

func (i Image) SelfMask() Image {
	return Image{Invoke("Image.selfMask", map[string]*ValueNode{"image": i.Node})}
}

func (i Image) UpdateMask(mask Image) Image {
	return Image{Invoke("Image.updateMask", map[string]*ValueNode{"image": i.Node, "mask": mask.Node})}
}

// 按scale对g内各波段求和，像元数超过maxPixels时服务端报错
func (i Image) ReduceRegionSum(g Geometry, scale, maxPixels float64) Dictionary {
	return Dictionary{Invoke("Image.reduceRegion", map[string]*ValueNode{
		"image":     i.Node,
		"reducer":   Invoke("Reducer.sum", nil),
		"geometry":  g.Node,
		"scale":     Constant(scale),
		"maxPixels": Constant(maxPixels),
	})}
}

func (d Dictionary) Get(key string) Number {
	return Number{Invoke("Dictionary.get", map[string]*ValueNode{"dictionary": d.Node, "key": Constant(key)})}
}

func (n Number) Divide(v float64) Number {
	return Number{Invoke("Number.divide", map[string]*ValueNode{"left": n.Node, "right": Constant(v)})}
}

// 经纬度面/多面转服务端几何，仅接受Polygon与MultiPolygon
// 不传geodesic参数，EPSG:4326下由服务端按默认的测地线边处理
func GeometryFromOrb(g orb.Geometry) (Geometry, bool) {
	var fn string
	switch g.(type) {
	case orb.Polygon:
		fn = "GeometryConstructors.Polygon"
	case orb.MultiPolygon:
		fn = "GeometryConstructors.MultiPolygon"
	default:
		return Geometry{}, false
	}
	return Geometry{Invoke(fn, map[string]*ValueNode{
		"coordinates": Constant(g),
		"evenOdd":     Constant(true),
	})}, true
}
