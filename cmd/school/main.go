package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"dynastyschool/internal/app"
	"dynastyschool/internal/config"
	"dynastyschool/internal/server"
	"dynastyschool/internal/sms"
	"dynastyschool/internal/token"
	"dynastyschool/internal/util"
	"dynastyschool/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}
	codeTTL, err := config.ParseCodeTTL(cfg.CodeTTL)
	if err != nil {
		log.Fatalf("failed to parse code TTL: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	st, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	tokens, err := token.NewService(cfg.JWTSecret, sessionTTL)
	if err != nil {
		log.Fatalf("failed to init token service: %v", err)
	}

	var sender sms.Sender = sms.LogSender{}
	if cfg.SMSConfigured() {
		sender, err = sms.NewAliyunSender(sms.AliyunConfig{
			AccessKeyID:     cfg.SMSAccessKeyID,
			AccessKeySecret: cfg.SMSAccessKeySecret,
			Endpoint:        cfg.SMSEndpoint,
			SignName:        cfg.SMSSignName,
			TemplateCode:    cfg.SMSTemplateCode,
			TimeoutMillis:   cfg.SMSTimeoutMillis,
		})
		if err != nil {
			log.Fatalf("failed to init sms sender: %v", err)
		}
	} else {
		slog.Warn("sms credentials not configured, codes are logged instead of sent")
	}

	appCore, err := app.New(app.Config{
		Store:          st,
		Tokens:         tokens,
		Sender:         sender,
		SingleUseCodes: cfg.SingleUseCodes,
		CodeTTL:        codeTTL,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:                 appCore,
		ProtectCourseWrites: cfg.ProtectCourseWrites,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("school server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
