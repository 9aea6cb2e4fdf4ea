package classifier

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"go-tianwang/pkg/detector"
	"go-tianwang/pkg/logger"
	"go-tianwang/pkg/models"
)

// ErrUnknownModel 请求了不存在的主分类模型
var ErrUnknownModel = errors.New("unknown primary model")

// EnsembleName 集成投票的伪模型名
const EnsembleName = "ensemble"

const memberPrefix = "primary_"

// Ensemble 主分类器：若干命名成员模型共享同一特征顺序。
// 按成员名预测返回该成员的概率；按"ensemble"预测时标签取多数投票
// （即平均概率>0.5判为攻击，恰好0.5判为正常），概率取算术平均。
type Ensemble struct {
	features []string
	members  map[string]*detector.LogisticModel
	order    []string
}

// New 直接构建集成（训练器和测试使用）
func New(featureNames []string, members map[string]*detector.LogisticModel) *Ensemble {
	e := &Ensemble{
		features: featureNames,
		members:  members,
	}
	for name := range members {
		e.order = append(e.order, name)
	}
	sort.Strings(e.order)
	return e
}

// Load 从模型目录加载特征顺序和全部成员模型。
// 一个成员都没有时无法提供主预测，视为致命错误。
func Load(dir string) (*Ensemble, error) {
	data, err := os.ReadFile(filepath.Join(dir, "feature_names.json"))
	if err != nil {
		return nil, errors.Wrap(err, "load feature_names.json")
	}
	var featureNames []string
	if err := json.Unmarshal(data, &featureNames); err != nil {
		return nil, errors.Wrap(err, "parse feature_names.json")
	}

	members := make(map[string]*detector.LogisticModel)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, memberPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		modelName := strings.TrimSuffix(strings.TrimPrefix(name, memberPrefix), ".json")

		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Log.Warnf("读取主模型失败，跳过: %s, %v", name, err)
			continue
		}
		var m detector.LogisticModel
		if err := json.Unmarshal(raw, &m); err != nil {
			logger.Log.Warnf("主模型制品损坏，跳过: %s, %v", name, err)
			continue
		}
		members[modelName] = &m
		logger.Log.Infof("主模型加载成功: %s", modelName)
	}

	if len(members) == 0 {
		return nil, errors.Errorf("no primary models found in %s", dir)
	}
	return New(featureNames, members), nil
}

// Save 写出特征顺序和成员模型制品
func (e *Ensemble) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(e.features)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "feature_names.json"), data, 0o644); err != nil {
		return err
	}
	for name, m := range e.members {
		raw, err := json.Marshal(m)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, memberPrefix+name+".json"), raw, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// Models 可用模型名列表（成员 + ensemble）
func (e *Ensemble) Models() []string {
	out := make([]string, 0, len(e.order)+1)
	out = append(out, e.order...)
	out = append(out, EnsembleName)
	return out
}

// Features 返回模型的特征顺序副本
func (e *Ensemble) Features() []string {
	return append([]string(nil), e.features...)
}

// Has 判断模型名是否可用
func (e *Ensemble) Has(name string) bool {
	if name == EnsembleName {
		return len(e.members) > 0
	}
	_, ok := e.members[name]
	return ok
}

// Predict 主预测。缺失特征按0处理（显式约定）。
// 返回标签（0正常/1攻击）与攻击概率，未知模型名返回ErrUnknownModel。
func (e *Ensemble) Predict(row models.FeatureRow, name string) (int, float64, error) {
	x := make([]float64, len(e.features))
	for i, f := range e.features {
		x[i] = row.Get(f)
	}

	if name == EnsembleName {
		if len(e.members) == 0 {
			return 0, 0, errors.Wrap(ErrUnknownModel, name)
		}
		var sum float64
		for _, memberName := range e.order {
			sum += e.members[memberName].Prob(x)
		}
		mean := sum / float64(len(e.order))
		label := 0
		if mean > 0.5 {
			label = 1
		}
		return label, mean, nil
	}

	m, ok := e.members[name]
	if !ok {
		return 0, 0, errors.Wrap(ErrUnknownModel, name)
	}
	prob := m.Prob(x)
	label := 0
	if prob > 0.5 {
		label = 1
	}
	return label, prob, nil
}
