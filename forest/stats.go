package forest

import (
	"bytes"
	"html/template"
	"math"
)

// 面积单位：平方米之和除以AreaDivisor（1e7）得到的展示单位，记作KHa
type ForestStats struct {
	Area2000KHa    float64
	LossAreaKHa    float64
	LossPercentage float64
}

func NewForestStats(area2000, loss float64) *ForestStats {
	return &ForestStats{
		Area2000KHa:    area2000,
		LossAreaKHa:    loss,
		LossPercentage: LossPercentage(area2000, loss),
	}
}

// 损失百分比：两个面积先各自取整再相除，结果是近似值
// 取整后树木覆盖为0时返回0
func LossPercentage(area2000, loss float64) float64 {
	den := math.Round(area2000)
	if den == 0 {
		return 0
	}
	return math.Round(loss) / den * 100
}

var popupTmpl = template.Must(template.New("popup").Parse(`
<h4>Forest Cover Statistics for {{.Name}}</h4>
<ul>
    <li>Total Tree Cover in 2000: {{printf "%.2f" .Area2000KHa}} KHa</li>
    <li>Total Forest Loss Since 2000: {{printf "%.2f" .LossAreaKHa}} KHa</li>
    <li>Percentage Forest Loss Since 2000: {{printf "%.2f" .LossPercentage}}%</li>
</ul>
`))

func PopupHTML(name string, s *ForestStats) (string, error) {
	var buf bytes.Buffer
	err := popupTmpl.Execute(&buf, struct {
		Name string
		*ForestStats
	}{name, s})
	return buf.String(), err
}
