package detector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"go-tianwang/pkg/logger"
	"go-tianwang/pkg/metrics"
	"go-tianwang/pkg/models"
)

// ErrModelLoad 单个检测器制品缺失或损坏。调用方应跳过该检测器
// 继续加载其余部分，而不是让整个进程失败。
var ErrModelLoad = errors.New("model artifact load failed")

// Artifact 检测器制品的序列化封装，kind决定生效的字段
type Artifact struct {
	Kind       string              `json:"kind"`
	Anomaly    *AnomalyDetector    `json:"anomaly,omitempty"`
	OneClass   *OneClassDetector   `json:"one_class,omitempty"`
	Supervised *SupervisedDetector `json:"supervised,omitempty"`
	Density    *DensityDetector    `json:"density,omitempty"`
	Static     *StaticDetector     `json:"static,omitempty"`
}

// WrapArtifact 把具体检测器装入制品封装
func WrapArtifact(d Detector) (*Artifact, error) {
	a := &Artifact{Kind: d.Kind()}
	switch det := d.(type) {
	case *AnomalyDetector:
		a.Anomaly = det
	case *OneClassDetector:
		a.OneClass = det
	case *SupervisedDetector:
		a.Supervised = det
	case *DensityDetector:
		a.Density = det
	case *StaticDetector:
		a.Static = det
	default:
		return nil, errors.Errorf("unsupported detector type %T", d)
	}
	return a, nil
}

// Unwrap 从制品封装还原具体检测器
func (a *Artifact) Unwrap() (Detector, error) {
	switch a.Kind {
	case KindAnomaly:
		if a.Anomaly != nil {
			return a.Anomaly, nil
		}
	case KindOneClass:
		if a.OneClass != nil {
			return a.OneClass, nil
		}
	case KindSupervised:
		if a.Supervised != nil {
			return a.Supervised, nil
		}
	case KindDensity:
		if a.Density != nil {
			return a.Density, nil
		}
	case KindStatic:
		if a.Static != nil {
			return a.Static, nil
		}
	}
	return nil, errors.Wrapf(ErrModelLoad, "artifact kind %q has no payload", a.Kind)
}

// SaveArtifact 把检测器写入模型目录，文件名为<name>.json
func SaveArtifact(dir string, d Detector) error {
	a, err := WrapArtifact(d)
	if err != nil {
		return err
	}
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, d.Name()+".json"), data, 0o644)
}

// Registry 已加载检测器的只读注册表，启动时构建一次
type Registry struct {
	detectors map[string]Detector
	order     []string
}

// NewRegistry 由现成的检测器构建注册表（测试和训练器使用）
func NewRegistry(dets ...Detector) *Registry {
	r := &Registry{detectors: make(map[string]Detector, len(dets))}
	for _, d := range dets {
		r.detectors[d.Name()] = d
	}
	r.rebuildOrder()
	return r
}

func (r *Registry) rebuildOrder() {
	r.order = r.order[:0]
	for name := range r.detectors {
		r.order = append(r.order, name)
	}
	sort.Strings(r.order)
}

// LoadRegistry 从模型目录加载全部检测器制品。
// 单个制品缺失或损坏时只跳过该检测器并告警，不影响其余检测器，
// 后果是风险分数的可达上限低于1.0（刻意不做权重重归一化）。
func LoadRegistry(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(ErrModelLoad, "read detector dir %s: %v", dir, err)
	}

	r := &Registry{detectors: make(map[string]Detector)}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			logger.Log.Warnf("读取检测器制品失败，跳过: %s, %v", path, err)
			continue
		}

		var a Artifact
		if err := json.Unmarshal(data, &a); err != nil {
			logger.Log.Warnf("检测器制品损坏，跳过: %s, %v", path, err)
			continue
		}

		det, err := a.Unwrap()
		if err != nil {
			logger.Log.Warnf("检测器制品不完整，跳过: %s, %v", path, err)
			continue
		}

		r.detectors[det.Name()] = det
		logger.Log.Infof("检测器加载成功: name=%s, kind=%s", det.Name(), det.Kind())
	}

	r.rebuildOrder()
	logger.Log.Infof("检测器注册表构建完成，共 %d 个", len(r.detectors))
	return r, nil
}

// List 返回全部检测器名（固定顺序）
func (r *Registry) List() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Get 按名取检测器
func (r *Registry) Get(name string) (Detector, bool) {
	d, ok := r.detectors[name]
	return d, ok
}

// EvaluateAll 逐个执行检测器并收集判定。每个检测器的失败都被
// 隔离在自己的边界内：panic转换为不可用判定，绝不影响其他检测器。
func (r *Registry) EvaluateAll(row models.FeatureRow) map[string]models.DetectorVerdict {
	verdicts := make(map[string]models.DetectorVerdict, len(r.order))
	for _, name := range r.order {
		verdicts[name] = r.safeEvaluate(r.detectors[name], row)
	}
	return verdicts
}

func (r *Registry) safeEvaluate(d Detector, row models.FeatureRow) (v models.DetectorVerdict) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Log.Errorf("检测器 %s 执行异常: %v", d.Name(), rec)
			v = notApplicable(d.Name(), fmt.Sprintf("internal error: %v", rec))
		}
	}()

	start := time.Now()
	v = d.Evaluate(row)
	metrics.DetectorExecutionTime.WithLabelValues(d.Name()).Observe(time.Since(start).Seconds())

	if !v.Flag && v.Confidence == 0 && v.Reason != "" {
		metrics.DetectorNotApplicable.WithLabelValues(d.Name()).Inc()
	}
	return v
}
