package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/go-sql-driver/mysql"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"go-tianwang/pkg/config"
	"go-tianwang/pkg/logger"
	"go-tianwang/pkg/models"
)

type Storage struct {
	influxClient influxdb2.Client
	writeAPI     api.WriteAPIBlocking
	queryAPI     api.QueryAPI
	mysqlDB      *sql.DB
	org          string
	bucket       string
}

func NewStorage(cfg *config.Config) (*Storage, error) {
	influxClient := influxdb2.NewClient(cfg.InfluxDB.URL, cfg.InfluxDB.Token)
	writeAPI := influxClient.WriteAPIBlocking(cfg.InfluxDB.Org, cfg.InfluxDB.Bucket)
	queryAPI := influxClient.QueryAPI(cfg.InfluxDB.Org)

	mysqlDB, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return nil, err
	}

	mysqlDB.SetMaxIdleConns(cfg.MySQL.MaxIdle)
	mysqlDB.SetMaxOpenConns(cfg.MySQL.MaxOpen)

	return &Storage{
		influxClient: influxClient,
		writeAPI:     writeAPI,
		queryAPI:     queryAPI,
		mysqlDB:      mysqlDB,
		org:          cfg.InfluxDB.Org,
		bucket:       cfg.InfluxDB.Bucket,
	}, nil
}

// SaveAssessmentPoint 把评估结果写入InfluxDB时序库
func (s *Storage) SaveAssessmentPoint(a *models.RiskAssessment) error {
	p := influxdb2.NewPoint(
		"flow_assessment",
		map[string]string{
			"source_ip": a.SourceIP,
			"model":     a.Model,
			"label":     a.PrimaryLabel,
		},
		map[string]interface{}{
			"risk_score":          a.RiskScore,
			"primary_probability": a.PrimaryProbability,
			"factor_count":        len(a.RiskFactors),
		},
		a.Timestamp,
	)

	if err := s.writeAPI.WritePoint(context.Background(), p); err != nil {
		logger.Log.Errorf("写入评估时序点失败: %v", err)
		return err
	}
	return nil
}

// SaveAssessment 保存评估结果到MySQL，accessTime为流量记录自带的时间
func (s *Storage) SaveAssessment(a *models.RiskAssessment, accessTime time.Time) error {
	factorsJSON, err := json.Marshal(a.RiskFactors)
	if err != nil {
		return err
	}
	typesJSON, err := json.Marshal(a.AttackTypes)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO risk_assessments (
            source_ip, model_name, primary_label, primary_probability,
            risk_score, risk_factors, attack_types, created_at, access_time
        ) VALUES (?, ?, ?, ?, ?, ?, ?, NOW(), ?)
    `

	if accessTime.IsZero() {
		accessTime = a.Timestamp
	}

	_, err = s.mysqlDB.Exec(query,
		a.SourceIP,
		a.Model,
		a.PrimaryLabel,
		a.PrimaryProbability,
		a.RiskScore,
		factorsJSON,
		typesJSON,
		accessTime,
	)
	if err != nil {
		logger.Log.Errorf("保存评估结果失败: source_ip=%s, error=%v", a.SourceIP, err)
		return err
	}
	return nil
}

// SaveAlertEvent 保存告警事件到MySQL
func (s *Storage) SaveAlertEvent(a *models.RiskAssessment) error {
	factorsJSON, err := json.Marshal(a.RiskFactors)
	if err != nil {
		logger.Log.Errorf("风险因子序列化失败: %v", err)
		return err
	}

	query := `
        INSERT INTO alert_events (
            source_ip, model_name, risk_score, risk_factors, created_at
        ) VALUES (?, ?, ?, ?, NOW())
    `

	result, err := s.mysqlDB.Exec(query,
		a.SourceIP,
		a.Model,
		a.RiskScore,
		factorsJSON,
	)
	if err != nil {
		logger.Log.Errorf("保存告警事件失败: %v", err)
		return err
	}

	affected, _ := result.RowsAffected()
	logger.Log.Infof("成功保存告警事件，影响行数: %d", affected)
	return nil
}

// AssessmentRecord 历史查询返回的精简记录
type AssessmentRecord struct {
	SourceIP           string    `json:"source_ip"`
	Model              string    `json:"model"`
	PrimaryLabel       string    `json:"primary_label"`
	PrimaryProbability float64   `json:"primary_probability"`
	RiskScore          float64   `json:"risk_score"`
	RiskFactors        []string  `json:"risk_factors"`
	CreatedAt          time.Time `json:"created_at"`
}

// RecentAssessments 查询最近的评估历史，供仪表盘轮询
func (s *Storage) RecentAssessments(limit int) ([]AssessmentRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := `
        SELECT source_ip, model_name, primary_label, primary_probability,
               risk_score, risk_factors, created_at
        FROM risk_assessments
        ORDER BY created_at DESC
        LIMIT ?
    `

	rows, err := s.mysqlDB.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]AssessmentRecord, 0, limit)
	for rows.Next() {
		var rec AssessmentRecord
		var factorsJSON []byte
		if err := rows.Scan(&rec.SourceIP, &rec.Model, &rec.PrimaryLabel,
			&rec.PrimaryProbability, &rec.RiskScore, &factorsJSON, &rec.CreatedAt); err != nil {
			logger.Log.Errorf("扫描评估记录失败: %v", err)
			continue
		}
		if err := json.Unmarshal(factorsJSON, &rec.RiskFactors); err != nil {
			rec.RiskFactors = nil
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecentAlertSources 加载告警冷却用的最近告警来源和时间
func (s *Storage) RecentAlertSources(since time.Duration) (map[string]time.Time, error) {
	query := `
        SELECT source_ip, created_at
        FROM alert_events
        WHERE created_at > DATE_SUB(NOW(), INTERVAL ? MINUTE)
    `

	rows, err := s.mysqlDB.Query(query, int(since.Minutes()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var sourceIP string
		var createdAt time.Time
		if err := rows.Scan(&sourceIP, &createdAt); err != nil {
			logger.Log.Errorf("扫描告警记录失败: %v", err)
			continue
		}
		out[sourceIP] = createdAt
	}
	return out, rows.Err()
}

func (s *Storage) Close() {
	s.influxClient.Close()
	s.mysqlDB.Close()
}

// QueryAPI 返回InfluxDB查询API
func (s *Storage) QueryAPI() api.QueryAPI {
	return s.queryAPI
}

// GetDB 返回MySQL数据库连接
func (s *Storage) GetDB() *sql.DB {
	return s.mysqlDB
}
