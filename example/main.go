package main

import (
	"flag"

	"github.com/gin-gonic/gin"
	"github.com/kroksys/obatch"
	"github.com/kroksys/obatch/config"
	"go.uber.org/zap"
)

const defaultConfig = `
base_uri: http://localhost:3333/odata
batch_path: /odata/$batch
logging:
  level: debug
  development: true
`

func main() {
	path := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	var raw []byte
	if *path == "" {
		raw = []byte(defaultConfig)
	}
	cfg, err := config.Load(*path, raw, nil)
	if err != nil {
		panic(err)
	}
	log, err := obatch.NewLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	server := obatch.NewServer(cfg, log)
	defer server.Close()
	if err := server.Register("Employees", NewEmployees()); err != nil {
		log.Fatal("registering processor", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.POST(cfg.BatchPath, server.BatchHandlerGin)
	r.GET("/ws", server.WebsocketHandlerGin)
	log.Info("OData batch server started",
		zap.String("address", cfg.Listen),
		zap.String("batch", cfg.BatchPath))
	if err := r.Run(cfg.Listen); err != nil {
		log.Error("batch server stopped", zap.Error(err))
	}
}
