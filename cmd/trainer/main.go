package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"go-tianwang/pkg/classifier"
	"go-tianwang/pkg/detector"
	"go-tianwang/pkg/features"
)

// 训练器：从UNSW-NB15风格的标准化CSV训练全部检测器和主分类模型，
// 产出JSON模型文件供服务端加载。
func main() {
	csvPath := flag.String("csv", "", "训练数据CSV路径（含表头，特征已标准化）")
	outDir := flag.String("out", "models", "模型输出目录")
	target := flag.String("target", "label", "标签列名（0正常/1攻击）")
	seed := flag.Int64("seed", 42, "随机种子")
	flag.Parse()

	if *csvPath == "" {
		fmt.Fprintln(os.Stderr, "用法: trainer -csv <训练数据> [-out models] [-target label]")
		os.Exit(1)
	}

	header, rows, labels, err := loadTrainingData(*csvPath, *target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载训练数据失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("已加载 %d 条样本, %d 个特征\n", len(rows), len(header))

	rnd := rand.New(rand.NewSource(*seed))
	registry := features.Default()

	detectorDir := filepath.Join(*outDir, "detectors")
	if err := os.MkdirAll(detectorDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "创建输出目录失败: %v\n", err)
		os.Exit(1)
	}

	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		colIndex[name] = i
	}

	normalRows := make([][]float64, 0, len(rows))
	for i, row := range rows {
		if labels[i] == 0 {
			normalRows = append(normalRows, row)
		}
	}
	fmt.Printf("正常样本 %d 条\n", len(normalRows))

	type recipe struct {
		group string
		fit   func(feats []string, data [][]float64) detector.Detector
	}

	// 各检测器的训练配方。异常分检测器阈值取训练分数的低分位，
	// 单类检测器半径取正常样本距离的90分位。
	recipes := []recipe{
		{"dos", func(feats []string, data [][]float64) detector.Detector {
			return detector.FitAnomalyDetector("dos", feats, data, 10, rnd)
		}},
		{"reconnaissance", func(feats []string, data [][]float64) detector.Detector {
			return detector.FitAnomalyDetector("reconnaissance", feats, data, 5, rnd)
		}},
		{"tcp_behavior", func(feats []string, data [][]float64) detector.Detector {
			return detector.FitAnomalyDetector("tcp_behavior", feats, data, 10, rnd)
		}},
	}

	for _, s := range recipes {
		feats := mustGroup(registry, s.group)
		data := projectColumns(rows, feats, colIndex)
		d := s.fit(feats, data)
		saveDetector(detectorDir, d)
	}

	// 单类边界检测器只用正常样本训练
	for _, name := range []string{"fuzzer", "timing"} {
		feats := mustGroup(registry, name)
		data := projectColumns(normalRows, feats, colIndex)
		d := detector.FitOneClassDetector(name, feats, data, 0.1)
		saveDetector(detectorDir, d)
	}

	// 有监督检测器用全量样本和标签
	for _, name := range []string{"brute_force", "session"} {
		feats := mustGroup(registry, name)
		data := projectColumns(rows, feats, colIndex)
		d := detector.FitSupervisedDetector(name, feats, data, labels, rnd)
		saveDetector(detectorDir, d)
	}

	// 密度检测器在正常样本子集上拟合一次，服务期只算到核心点的距离
	{
		feats := mustGroup(registry, "port_scan")
		sample := normalRows
		if len(sample) > 2000 {
			sample = subsample(sample, 2000, rnd)
		}
		data := projectColumns(sample, feats, colIndex)
		d := detector.FitDensityDetector("port_scan", feats, data, 0.5, 5)
		saveDetector(detectorDir, d)
	}

	// 静态阈值检测器：带宽取95分位上界，包长取5/95分位区间
	{
		feats := mustGroup(registry, "bandwidth")
		bands := make(map[string]detector.Band, len(feats))
		for _, f := range feats {
			idx, ok := colIndex[f]
			if !ok {
				continue
			}
			max := columnPercentile(rows, idx, 95)
			bands[f] = detector.Band{Max: &max}
		}
		saveDetector(detectorDir, detector.NewStaticDetector("bandwidth", feats, bands))
	}
	{
		feats := mustGroup(registry, "packet_size")
		bands := make(map[string]detector.Band, len(feats))
		for _, f := range feats {
			idx, ok := colIndex[f]
			if !ok {
				continue
			}
			min := columnPercentile(rows, idx, 5)
			max := columnPercentile(rows, idx, 95)
			bands[f] = detector.Band{Min: &min, Max: &max}
		}
		saveDetector(detectorDir, detector.NewStaticDetector("packet_size", feats, bands))
	}

	// 主分类模型：四个不同超参的逻辑回归成员，共享全特征顺序
	members := map[string]*detector.LogisticModel{
		"random_forest": detector.TrainLogistic(rows, labels,
			detector.TrainOptions{Epochs: 300, LearningRate: 0.1, L2: 1e-4}, rnd),
		"decision_tree": detector.TrainLogistic(rows, labels,
			detector.TrainOptions{Epochs: 150, LearningRate: 0.05, L2: 1e-3}, rnd),
		"xgboost": detector.TrainLogistic(rows, labels,
			detector.TrainOptions{Epochs: 400, LearningRate: 0.2, L2: 1e-4}, rnd),
		"lightgbm": detector.TrainLogistic(rows, labels,
			detector.TrainOptions{Epochs: 400, LearningRate: 0.15, L2: 1e-5}, rnd),
	}
	ensemble := classifier.New(header, members)
	if err := ensemble.Save(*outDir); err != nil {
		fmt.Fprintf(os.Stderr, "保存主分类模型失败: %v\n", err)
		os.Exit(1)
	}

	// 特征分组快照，便于排查线上模型与训练配置是否一致
	groupsJSON, _ := json.MarshalIndent(registry.Groups(), "", "  ")
	if err := os.WriteFile(filepath.Join(*outDir, "feature_groups.json"), groupsJSON, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "保存特征分组失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("训练完成，模型已写入 %s\n", *outDir)
}

func loadTrainingData(path, target string) ([]string, [][]float64, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, nil, err
	}
	if len(records) < 2 {
		return nil, nil, nil, fmt.Errorf("训练数据为空: %s", path)
	}

	rawHeader := records[0]
	targetIdx := -1
	for i, name := range rawHeader {
		if name == target {
			targetIdx = i
			break
		}
	}
	if targetIdx < 0 {
		return nil, nil, nil, fmt.Errorf("找不到标签列 %q", target)
	}

	header := make([]string, 0, len(rawHeader)-1)
	for i, name := range rawHeader {
		if i != targetIdx {
			header = append(header, name)
		}
	}

	rows := make([][]float64, 0, len(records)-1)
	labels := make([]int, 0, len(records)-1)
	for lineNo, rec := range records[1:] {
		if len(rec) != len(rawHeader) {
			return nil, nil, nil, fmt.Errorf("第%d行列数不符", lineNo+2)
		}
		row := make([]float64, 0, len(header))
		label := 0
		for i, cell := range rec {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("第%d行第%d列解析失败: %v", lineNo+2, i+1, err)
			}
			if i == targetIdx {
				if v != 0 {
					label = 1
				}
				continue
			}
			row = append(row, v)
		}
		rows = append(rows, row)
		labels = append(labels, label)
	}
	return header, rows, labels, nil
}

func mustGroup(r *features.Registry, name string) []string {
	feats, err := r.Get(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "未知特征组 %s: %v\n", name, err)
		os.Exit(1)
	}
	return feats
}

// projectColumns 按特征名抽取子矩阵，CSV里没有的列填0
func projectColumns(rows [][]float64, feats []string, colIndex map[string]int) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		sub := make([]float64, len(feats))
		for j, f := range feats {
			if idx, ok := colIndex[f]; ok {
				sub[j] = row[idx]
			}
		}
		out[i] = sub
	}
	return out
}

func columnPercentile(rows [][]float64, col int, p float64) float64 {
	values := make([]float64, len(rows))
	for i, row := range rows {
		values[i] = row[col]
	}
	return detector.Percentile(values, p)
}

func subsample(rows [][]float64, n int, rnd *rand.Rand) [][]float64 {
	idx := rnd.Perm(len(rows))[:n]
	out := make([][]float64, n)
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out
}

func saveDetector(dir string, d detector.Detector) {
	if err := detector.SaveArtifact(dir, d); err != nil {
		fmt.Fprintf(os.Stderr, "保存检测器 %s 失败: %v\n", d.Name(), err)
		os.Exit(1)
	}
	fmt.Printf("检测器 %s (%s) 已保存\n", d.Name(), d.Kind())
}
