package alerter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oschwald/geoip2-golang"

	"go-tianwang/pkg/config"
	"go-tianwang/pkg/logger"
	"go-tianwang/pkg/metrics"
	"go-tianwang/pkg/models"
	"go-tianwang/pkg/storage"
)

// Alerter 负责高风险评估的告警推送，带来源IP级别的冷却
type Alerter struct {
	webhookURL string
	cooldown   time.Duration
	storage    *storage.Storage
	cityReader *geoip2.Reader
	asnReader  *geoip2.Reader
	httpClient *http.Client

	mu        sync.Mutex
	lastAlert map[string]time.Time
	stop      chan struct{}
}

func NewAlerter(cfg *config.Config, store *storage.Storage, cityReader, asnReader *geoip2.Reader) *Alerter {
	a := &Alerter{
		webhookURL: cfg.Alert.WebhookURL,
		cooldown:   time.Duration(cfg.Alert.CooldownMinutes) * time.Minute,
		storage:    store,
		cityReader: cityReader,
		asnReader:  asnReader,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		lastAlert:  make(map[string]time.Time),
		stop:       make(chan struct{}),
	}

	// 从历史告警恢复冷却状态，避免重启后重复告警
	if store != nil {
		recent, err := store.RecentAlertSources(a.cooldown)
		if err != nil {
			logger.Log.Warnf("加载历史告警冷却状态失败: %v", err)
		} else {
			a.lastAlert = recent
		}
	}

	go a.cleanupLoop()
	return a
}

// TriggerAlert 发送告警，冷却期内的同一来源IP会被跳过
func (a *Alerter) TriggerAlert(assessment *models.RiskAssessment) error {
	sourceIP := assessment.SourceIP
	if sourceIP == "" {
		sourceIP = "unknown"
	}

	a.mu.Lock()
	if last, ok := a.lastAlert[sourceIP]; ok && time.Since(last) < a.cooldown {
		a.mu.Unlock()
		logger.Log.Debugf("来源IP %s 在冷却期内，跳过告警", sourceIP)
		return nil
	}
	a.lastAlert[sourceIP] = time.Now()
	a.mu.Unlock()

	if a.storage != nil {
		if err := a.storage.SaveAlertEvent(assessment); err != nil {
			logger.Log.Errorf("告警事件落库失败: %v", err)
		}
	}

	metrics.AlertsTriggered.Inc()

	if a.webhookURL == "" {
		logger.Log.Infof("未配置告警webhook，仅记录告警: source_ip=%s, risk=%.2f", sourceIP, assessment.RiskScore)
		return nil
	}

	payload := a.buildPayload(assessment)
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := a.httpClient.Post(a.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		logger.Log.Errorf("告警webhook推送失败: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		logger.Log.Errorf("告警webhook返回异常状态: %d", resp.StatusCode)
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}

	logger.Log.Infof("告警已推送: source_ip=%s, risk=%.2f, factors=%v",
		sourceIP, assessment.RiskScore, assessment.RiskFactors)
	return nil
}

type alertPayload struct {
	Timestamp       time.Time `json:"timestamp"`
	SourceIP        string    `json:"source_ip"`
	Location        string    `json:"location,omitempty"`
	ISP             string    `json:"isp,omitempty"`
	RiskScore       float64   `json:"risk_score"`
	PrimaryLabel    string    `json:"primary_label"`
	RiskFactors     []string  `json:"risk_factors"`
	AttackTypes     []string  `json:"attack_types"`
	Recommendations []string  `json:"recommendations"`
}

func (a *Alerter) buildPayload(assessment *models.RiskAssessment) alertPayload {
	p := alertPayload{
		Timestamp:       assessment.Timestamp,
		SourceIP:        assessment.SourceIP,
		RiskScore:       assessment.RiskScore,
		PrimaryLabel:    assessment.PrimaryLabel,
		RiskFactors:     assessment.RiskFactors,
		AttackTypes:     assessment.AttackTypes,
		Recommendations: assessment.Recommendations,
	}

	ip := net.ParseIP(assessment.SourceIP)
	if ip == nil {
		return p
	}

	if a.cityReader != nil {
		if city, err := a.cityReader.City(ip); err == nil {
			parts := make([]string, 0, 2)
			if name, ok := city.Country.Names["zh-CN"]; ok && name != "" {
				parts = append(parts, name)
			} else if name := city.Country.Names["en"]; name != "" {
				parts = append(parts, name)
			}
			if len(city.Subdivisions) > 0 {
				if name, ok := city.Subdivisions[0].Names["zh-CN"]; ok && name != "" {
					parts = append(parts, name)
				}
			}
			p.Location = strings.Join(parts, " ")
		}
	}

	if a.asnReader != nil {
		if asn, err := a.asnReader.ASN(ip); err == nil {
			p.ISP = asn.AutonomousSystemOrganization
		}
	}

	return p
}

// cleanupLoop 定期清理过期的冷却记录，防止map无限增长
func (a *Alerter) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.mu.Lock()
			for ip, last := range a.lastAlert {
				if time.Since(last) > a.cooldown {
					delete(a.lastAlert, ip)
				}
			}
			a.mu.Unlock()
		case <-a.stop:
			return
		}
	}
}

func (a *Alerter) Close() {
	close(a.stop)
}
