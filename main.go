package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"SMSDesk/global/config"
	"SMSDesk/logger"
	"SMSDesk/middleware"
	inboxsvc "SMSDesk/module/inbox/service"
	"SMSDesk/module/inbox/store"
	"SMSDesk/module/inbox/sync"
	"SMSDesk/module/user"
	usersvc "SMSDesk/module/user/service"
	"SMSDesk/service/notify"
	"SMSDesk/service/provider"
	"SMSDesk/service/storage"
	rds "SMSDesk/service/storage/redis"
	"SMSDesk/tools/safe"
)

func main() {
	defer logger.Sync()

	cfgPath := os.Getenv("SMS_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.json"
	}
	if err := config.Load(cfgPath); err != nil {
		logger.Log.Fatal("load config: " + err.Error())
	}

	if err := store.InitPg(config.Global.Database.URL); err != nil {
		logger.Log.Fatal("init postgres: " + err.Error())
	}
	defer store.ClosePg()

	// cache is optional: without redis every render hits the provider
	var cache inboxsvc.MessageCache
	if err := rds.InitRedis(rds.Config{
		Addr:     config.Global.Redis.Addr,
		Password: config.Global.Redis.Password,
		DB:       config.Global.Redis.DB,
		PoolSize: config.Global.Redis.PoolSize,
	}); err != nil {
		logger.Warnf("redis unavailable, message cache disabled: %v", err)
	} else {
		defer func() { _ = rds.CloseRedis() }()
		cache = storage.NewMessageCache(rds.GetRedis(), config.Global.Cache.MessageTTL)
	}

	pool := store.Pool()
	readStates := store.NewReadStateRepo(pool)
	assignments := store.NewAssignmentRepo(pool)
	templates := store.NewTemplateRepo(pool)
	users := usersvc.NewUserService(pool)

	smsClient := provider.NewClient(
		config.Global.Provider.AccountSID,
		config.Global.Provider.AuthToken,
		config.Global.Provider.BaseURL,
	)

	// strategy chain: REST shim first, then straight into the store
	gatewayBase := config.Global.Gateway.BaseURL
	if gatewayBase == "" {
		gatewayBase = fmt.Sprintf("http://127.0.0.1:%d", config.Global.HTTP.Port)
	}
	sessions := sync.NewManager(readStates,
		sync.NewGatewayUpserter(gatewayBase, config.Global.Gateway.Timeout),
		sync.NewDirectUpserter(readStates),
	)

	hub := notify.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	safe.Go(func() { hub.Run(ctx) })

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Cors())
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})

	userHandler := &user.Handler{Users: users}
	middleware.POST(r, "/api/login", userHandler.Login, middleware.RouteOpt{})

	srv := &inboxsvc.Server{
		ReadStates:  readStates,
		Assignments: assignments,
		Templates:   templates,
		Provider:    smsClient,
		Cache:       cache,
		Sessions:    sessions,
		Hub:         hub,
	}
	srv.Register(r)

	addr := fmt.Sprintf(":%d", config.Global.HTTP.Port)
	logger.Infof("sms dashboard listening on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Log.Fatal("http server: " + err.Error())
	}
}
