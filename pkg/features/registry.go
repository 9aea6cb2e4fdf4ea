package features

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/pkg/errors"
)

// ErrUnknownGroup 请求了未注册的特征分组
var ErrUnknownGroup = errors.New("unknown feature group")

// Registry 检测器名 -> 其输入特征列表的只读注册表。
// 训练阶段生成一次，服务进程启动时加载，之后不再修改。
type Registry struct {
	groups map[string][]string
}

func NewRegistry(groups map[string][]string) *Registry {
	copied := make(map[string][]string, len(groups))
	for name, feats := range groups {
		fs := make([]string, len(feats))
		copy(fs, feats)
		copied[name] = fs
	}
	return &Registry{groups: copied}
}

// Default 各攻击类别的标准特征分组（UNSW-NB15特征集）
func Default() *Registry {
	return NewRegistry(map[string][]string{
		"dos":            {"sload", "dload", "spkts", "dpkts", "dur", "rate"},
		"fuzzer":         {"trans_depth", "response_body_len", "sinpkt", "dinpkt"},
		"port_scan":      {"ct_src_dport_ltm", "ct_dst_sport_ltm", "ct_dst_ltm", "ct_src_ltm"},
		"brute_force":    {"is_ftp_login", "ct_ftp_cmd", "ct_srv_src", "ct_srv_dst"},
		"reconnaissance": {"ct_dst_ltm", "ct_src_ltm", "ct_dst_src_ltm"},
		"tcp_behavior":   {"tcprtt", "synack", "ackdat", "stcpb", "dtcpb"},
		"packet_size":    {"smean", "dmean", "sbytes", "dbytes"},
		"timing":         {"sjit", "djit", "sinpkt", "dinpkt"},
		"bandwidth":      {"sload", "dload", "rate"},
		"session":        {"dur", "trans_depth", "state"},
	})
}

// Load 从训练器产出的feature_groups.json加载分组定义
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "load feature groups")
	}
	var groups map[string][]string
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, errors.Wrap(err, "parse feature groups")
	}
	return NewRegistry(groups), nil
}

// Get 查询分组的特征列表，未注册的分组返回ErrUnknownGroup
func (r *Registry) Get(name string) ([]string, error) {
	feats, ok := r.groups[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownGroup, name)
	}
	return feats, nil
}

// Names 返回全部分组名（排序后）
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.groups))
	for name := range r.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Groups 导出底层映射的副本，供训练器写入制品
func (r *Registry) Groups() map[string][]string {
	out := make(map[string][]string, len(r.groups))
	for name, feats := range r.groups {
		fs := make([]string, len(feats))
		copy(fs, feats)
		out[name] = fs
	}
	return out
}
