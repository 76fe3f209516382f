package earthengine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wgdzlh/forestloss/log"
	"github.com/wgdzlh/forestloss/metrics"

	"cloud.google.com/go/auth/credentials"
	"go.uber.org/zap"
	ee "google.golang.org/api/earthengine/v1"
	"google.golang.org/api/option"
)

const (
	DefaultBaseURL = "https://earthengine.googleapis.com"
	apiVersion     = "v1"
	mapFileFormat  = "AUTO_JPEG_PNG"

	methodCompute = "compute"
	methodMaps    = "maps"
)

var Scopes = []string{
	"https://www.googleapis.com/auth/earthengine",
	"https://www.googleapis.com/auth/cloud-platform",
}

// 会话配置；HTTPClient非空时原样使用（不修改、不查找凭据）
type Config struct {
	Project         string
	BaseURL         string
	CredentialsFile string
	Timeout         time.Duration // 单次调用超时，0表示一直等待
	HTTPClient      *http.Client
}

// Earth Engine v1 REST客户端，调用均为同步
type Client struct {
	project string
	baseURL string
	timeout time.Duration
	svc     *ee.Service
	logTag  string
}

// 已渲染的地图，可按瓦片URL取图
type MapID struct {
	Name string
}

// maps.create的可视化参数
type VisParams struct {
	Palette []string
	Min     *float64
	Max     *float64
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Project) == "" {
		return nil, ErrNoProject
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	c := &Client{
		project: cfg.Project,
		baseURL: base,
		timeout: cfg.Timeout,
		logTag:  "EarthEngine:",
	}
	opts := []option.ClientOption{option.WithEndpoint(base + "/")}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	} else {
		creds, err := credentials.DetectDefault(&credentials.DetectOptions{
			Scopes:          Scopes,
			CredentialsFile: cfg.CredentialsFile,
		})
		if err != nil {
			return nil, fmt.Errorf("detect credentials: %w", err)
		}
		opts = append(opts, option.WithAuthCredentials(creds))
	}
	svc, err := ee.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create earthengine service: %w", err)
	}
	c.svc = svc
	log.Info(c.logTag+"session initialized", zap.String("project", c.project), zap.String("endpoint", base))
	return c, nil
}

func (c *Client) projectName() string {
	return "projects/" + c.project
}

// 地图id对应的XYZ瓦片模板
func (c *Client) TileURL(id MapID) string {
	return fmt.Sprintf("%s/%s/%s/tiles/{z}/{x}/{y}", c.baseURL, apiVersion, id.Name)
}

// 计算表达式并将结果解码到out
func (c *Client) ComputeValue(ctx context.Context, root *ValueNode, out any) error {
	var resp *ee.ComputeValueResponse
	err := c.call(ctx, methodCompute, func(ctx context.Context) (e error) {
		req := &ee.ComputeValueRequest{Expression: NewExpression(root)}
		resp, e = c.svc.Projects.Value.Compute(c.projectName(), req).Context(ctx).Do()
		return
	})
	if err != nil {
		return err
	}
	raw, err := json.Marshal(resp.Result)
	if err == nil {
		err = json.Unmarshal(raw, out)
	}
	if err != nil {
		metrics.EEFailTotal.WithLabelValues(methodCompute).Inc()
		return fmt.Errorf("decode compute result: %w", err)
	}
	return nil
}

// 按vis渲染img，返回瓦片集id
func (c *Client) GetMapID(ctx context.Context, img Image, vis VisParams) (id MapID, err error) {
	req := &ee.EarthEngineMap{
		Expression:           NewExpression(img.Node),
		FileFormat:           mapFileFormat,
		VisualizationOptions: vis.options(),
	}
	var m *ee.EarthEngineMap
	err = c.call(ctx, methodMaps, func(ctx context.Context) (e error) {
		m, e = c.svc.Projects.Maps.Create(c.projectName(), req).Context(ctx).Do()
		return
	})
	if err != nil {
		return
	}
	if id.Name = m.Name; id.Name == "" {
		metrics.EEFailTotal.WithLabelValues(methodMaps).Inc()
		err = ErrEmptyMapID
	}
	return
}

func (v VisParams) options() *ee.VisualizationOptions {
	if len(v.Palette) == 0 && v.Min == nil && v.Max == nil {
		return nil
	}
	opts := &ee.VisualizationOptions{PaletteColors: v.Palette}
	if v.Min != nil || v.Max != nil {
		r := &ee.DoubleRange{Max: 1, ForceSendFields: []string{"Min", "Max"}}
		if v.Min != nil {
			r.Min = *v.Min
		}
		if v.Max != nil {
			r.Max = *v.Max
		}
		opts.Ranges = []*ee.DoubleRange{r}
	}
	return opts
}

// 单次调用的超时与指标日志，googleapi错误转为APIError
func (c *Client) call(ctx context.Context, method string, do func(context.Context) error) (err error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	t0 := time.Now()
	metrics.EERequestsTotal.WithLabelValues(method).Inc()
	log.Debug(c.logTag+"request", zap.String("method", method))
	defer func() {
		dur := time.Since(t0).Milliseconds()
		metrics.EEDurationMs.WithLabelValues(method).Observe(float64(dur))
		if err != nil {
			metrics.EEFailTotal.WithLabelValues(method).Inc()
			log.Error(c.logTag+"request failed", zap.String("method", method), zap.Int64("duration_ms", dur), zap.Error(err))
		} else {
			log.Debug(c.logTag+"response", zap.String("method", method), zap.Int64("duration_ms", dur))
		}
	}()
	if err = do(ctx); err != nil {
		if apiErr := fromGoogleAPI(err); apiErr != nil {
			err = apiErr
			return
		}
		err = fmt.Errorf("%s request: %w", method, err)
	}
	return
}
