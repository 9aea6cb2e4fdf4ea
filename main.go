package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/oschwald/geoip2-golang"

	"go-tianwang/pkg/alerter"
	"go-tianwang/pkg/analyzer"
	"go-tianwang/pkg/classifier"
	"go-tianwang/pkg/config"
	"go-tianwang/pkg/consumer"
	"go-tianwang/pkg/detector"
	"go-tianwang/pkg/features"
	"go-tianwang/pkg/generator"
	"go-tianwang/pkg/logger"
	"go-tianwang/pkg/poller"
	"go-tianwang/pkg/server"
	"go-tianwang/pkg/storage"
)

func init() {
	// 初始化配置
	if err := config.Init(); err != nil {
		logger.Log.Fatal("初始化配置失败:", err)
	}

	// 初始化日志
	if err := logger.Init(); err != nil {
		logger.Log.Fatal("初始化日志失败:", err)
	}
}

func main() {
	cfg := config.GlobalConfig

	logger.Log.Info("开始启动风险分析服务...")
	logger.Log.Infof("模型目录: %s, 默认模型: %s", cfg.Model.Dir, cfg.Model.DefaultName)

	// 初始化存储层 (InfluxDB 和 MySQL)
	store, err := storage.NewStorage(&cfg)
	if err != nil {
		logger.Log.Fatal("初始化存储层失败:", err)
	}
	defer store.Close()
	logger.Log.Info("存储层初始化成功")

	// GeoIP数据库可选，缺失时告警不带地理信息
	var geoIP, asnDB *geoip2.Reader
	if cfg.GeoIP.CityPath != "" {
		geoIP, err = geoip2.Open(cfg.GeoIP.CityPath)
		if err != nil {
			logger.Log.Warnf("初始化GeoIP数据库失败: %v", err)
		} else {
			defer geoIP.Close()
		}
	}
	if cfg.GeoIP.ASNPath != "" {
		asnDB, err = geoip2.Open(cfg.GeoIP.ASNPath)
		if err != nil {
			logger.Log.Warnf("初始化ASN数据库失败: %v", err)
		} else {
			defer asnDB.Close()
		}
	}

	// 特征分组：优先用训练器产出的制品，缺失时退回内置定义
	groups, err := features.Load(filepath.Join(cfg.Model.Dir, "feature_groups.json"))
	if err != nil {
		logger.Log.Warnf("加载特征分组制品失败，使用内置定义: %v", err)
		groups = features.Default()
	}

	// 加载检测器和主分类模型
	registry, err := detector.LoadRegistry(filepath.Join(cfg.Model.Dir, "detectors"))
	if err != nil {
		logger.Log.Fatal("加载检测器失败:", err)
	}
	logger.Log.Infof("已加载 %d 个检测器: %v", len(registry.List()), registry.List())

	primary, err := classifier.Load(cfg.Model.Dir)
	if err != nil {
		logger.Log.Fatal("加载主分类模型失败:", err)
	}
	logger.Log.Infof("可用主模型: %v", primary.Models())

	// 初始化白名单和告警器
	whitelist := analyzer.NewWhitelist(cfg.Security.WhitelistIPs)
	alert := alerter.NewAlerter(&cfg, store, geoIP, asnDB)
	defer alert.Close()

	// 初始化风险分析器
	riskAnalyzer := analyzer.NewRiskAnalyzer(
		registry,
		primary,
		store,
		alert,
		whitelist,
		cfg.Alert.RiskThreshold,
		cfg.Model.DefaultName,
	)

	// 合成流量生成器，/api/live 和轮询器共用
	gen := generator.NewGenerator(primary.Features(), uint64(time.Now().UnixNano()))

	// Kafka消费者按配置启用
	if cfg.Kafka.Enabled {
		logger.Log.Infof("Kafka配置: brokers=%v, topic=%s", cfg.Kafka.Brokers, cfg.Kafka.Topic)
		kafkaConsumer, err := consumer.NewConsumer(&cfg, riskAnalyzer)
		if err != nil {
			logger.Log.Fatal("初始化Kafka消费者失败:", err)
		}
		kafkaConsumer.Start()
		defer kafkaConsumer.Close()
		logger.Log.Info("Kafka消费者初始化成功")
	}

	// 合成流量轮询按配置启用
	if cfg.Poller.Enabled {
		p := poller.NewPoller(riskAnalyzer, gen, time.Duration(cfg.Poller.IntervalSeconds)*time.Second)
		p.Start()
		defer p.Close()
	}

	// 启动HTTP服务
	srv := server.NewServer(cfg.Server.Addr, riskAnalyzer, store, gen, groups)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Log.Fatal("HTTP服务启动失败:", err)
		}
	}()

	logger.Log.Info("服务启动完成")

	// 优雅退出处理
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Log.Infof("接收到信号 %v, 开始优雅退出", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Errorf("HTTP服务关闭异常: %v", err)
	}
}
