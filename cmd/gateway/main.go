// Command gateway is the ivr-gateway process entrypoint: it loads
// configuration, wires every internal package together, and boots the UDP
// RTP socket, the WebSocket server, the ESL client, and the init channel
// (§6) behind one process.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/libertycall/ivr-gateway/internal/asr"
	"github.com/libertycall/ivr-gateway/internal/config"
	"github.com/libertycall/ivr-gateway/internal/engine"
	"github.com/libertycall/ivr-gateway/internal/esl"
	"github.com/libertycall/ivr-gateway/internal/lifecycle"
	"github.com/libertycall/ivr-gateway/internal/logging"
	"github.com/libertycall/ivr-gateway/internal/rtpinfo"
	"github.com/libertycall/ivr-gateway/internal/sessionlog"
	"github.com/libertycall/ivr-gateway/internal/templates"
	"github.com/libertycall/ivr-gateway/internal/transport/initserver"
	"github.com/libertycall/ivr-gateway/internal/transport/rtpserver"
	"github.com/libertycall/ivr-gateway/internal/transport/wsserver"
)

const janitorSweepInterval = 1 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("gateway: config: %v", err)
	}

	logger, err := logging.New(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatalf("gateway: logging: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, sqlDB, err := openPostgres(cfg)
	if err != nil {
		logger.Errorw("postgres_unavailable", "error", err)
	}
	var store sessionlog.Store
	if sqlDB != nil {
		if err := sessionlog.Migrate(sqlDB, cfg.MigrationsDir); err != nil {
			logger.Errorw("migrate_failed", "error", err)
		} else {
			store = sessionlog.NewStore(db, logger)
		}
		defer sqlDB.Close()
	}

	redisClient, err := lifecycle.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warnw("redis_unavailable", "error", err)
	}
	presence := lifecycle.NewPresenceMirror(redisClient, logger)

	eslClient, err := esl.NewClient(ctx, fmt.Sprintf("%s:%d", cfg.ESL.Host, cfg.ESL.Port), cfg.ESL.Password, time.Duration(cfg.ESL.DialTimeout)*time.Second, logger)
	if err != nil {
		log.Fatalf("gateway: esl connect: %v", err)
	}
	defer eslClient.Close()

	mapper := lifecycle.NewClientMapper(cfg.ClientMappingPath, logger)
	profiles := lifecycle.NewProfileLoader(cfg.ClientProfileDir, logger)
	manager := lifecycle.NewManager(eslClient, mapper, profiles, presence, cfg.DefaultClientID, cfg.DefaultOperatorNumber, logger)
	templateRegistry := templates.NewRegistry(cfg.TemplateAudioDir)

	asrFactory := buildASRFactory(cfg, logger)

	gw := engine.New(ctx, engine.Config{
		Manager:      manager,
		Templates:    templateRegistry,
		ESL:          eslClient,
		Store:        store,
		SessionRoot:  cfg.SessionRootDir,
		VADModelPath: cfg.VADModelPath,
		ASRFactory:   asrFactory,
		Log:          logger,
	})

	resolver := rtpinfo.NewResolver(cfg.RTPInfoGlob, gw.CallIDForChannelUUID, logger)

	rtpSrv, err := rtpserver.New(cfg.RTPPort, resolver, gw.OnFrame, logger)
	if err != nil {
		log.Fatalf("gateway: rtp server: %v", err)
	}
	defer rtpSrv.Close()
	go rtpSrv.Serve()

	wsSrv := wsserver.New(fmt.Sprintf(":%d", cfg.WSPort), wsFrameHandler(gw), logger)
	go func() {
		if err := wsSrv.ListenAndServe(); err != nil {
			logger.Errorw("ws_server_stopped", "error", err)
		}
	}()

	initSrv := initserver.New(gw, cfg.InitHTTPAddr, cfg.InitSocketPath, logger)
	go func() {
		if err := initSrv.ListenAndServeHTTP(); err != nil {
			logger.Errorw("init_http_server_stopped", "error", err)
		}
	}()
	go func() {
		if err := initSrv.ListenAndServeSocket(); err != nil {
			logger.Errorw("init_socket_server_stopped", "error", err)
		}
	}()

	janitor := sessionlog.NewJanitor(cfg.SessionRootDir, cfg.SessionRetentionDays, janitorSweepInterval, logger)
	go janitor.Run(ctx)

	logger.Infow("gateway_started", "rtp_port", cfg.RTPPort, "ws_port", cfg.WSPort, "init_http_addr", cfg.InitHTTPAddr)

	<-ctx.Done()
	logger.Infow("gateway_shutting_down", "active_calls", gw.ActiveCalls())
}

// wsFrameHandler adapts wsserver's path-parameter call_uuid (the raw
// softswitch channel UUID) to the call_id the Gateway keys its call table
// by, mirroring rtpinfo.Resolver's uuid->call_id lookup for the RTP leg.
func wsFrameHandler(gw *engine.Gateway) wsserver.FrameHandler {
	return func(channelUUID string, payload []byte) {
		callID, ok := gw.CallIDForChannelUUID(channelUUID)
		if !ok {
			return
		}
		gw.OnFrame(callID, payload)
	}
}

func buildASRFactory(cfg *config.AppConfig, logger logging.Logger) engine.ASRFactory {
	recognizer := asr.Recognizer(cfg.ASR.ProjectID, cfg.ASR.Region)
	streamCfg := asr.StreamingRecognitionConfig(cfg.ASR.Language, cfg.ASR.Model)

	var serviceAccountJSON string
	if cfg.ASR.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.ASR.CredentialsFile)
		if err != nil {
			logger.Warnw("asr_credentials_file_unreadable", "path", cfg.ASR.CredentialsFile, "error", err)
		} else {
			serviceAccountJSON = string(data)
		}
	}
	clientOpts := asr.RegionalClientOptions(asr.ClientOptions(cfg.ASR.APIKey, cfg.ASR.ProjectID, serviceAccountJSON), cfg.ASR.Region)

	return func(callCtx context.Context, callID string) (*asr.Worker, error) {
		return asr.NewWorker(callCtx, callID, recognizer, streamCfg, cfg.ASR.QueueSize, clientOpts, logger)
	}
}

func openPostgres(cfg *config.AppConfig) (*gorm.DB, *sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.DBName, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.SSLMode)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("gateway: open postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("gateway: postgres handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Postgres.MaxOpenConnection)
	sqlDB.SetMaxIdleConns(cfg.Postgres.MaxIdleConnection)
	return db, sqlDB, nil
}
