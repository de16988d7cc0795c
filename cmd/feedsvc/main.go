package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/productsync/feedbatch"
	"github.com/productsync/feedbatch/api"
	"github.com/productsync/feedbatch/catalog"
	"github.com/productsync/feedbatch/config"
	"github.com/productsync/feedbatch/export"
	"github.com/productsync/feedbatch/feed"
	"github.com/productsync/feedbatch/internal/logs"
)

func main() {
	configPath := flag.String("config", "feedsvc.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logs.NewLogger(os.Stdout, logs.Info)
	feedbatch.SetLogger(logger)

	db, err := sql.Open("mysql", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err = db.Ping(); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	source := catalog.NewSource(db)
	handler := feed.NewHandler(cfg.Feed.Dir, cfg.Feed.FileName)
	job, err := export.NewProductFeedJob(source, handler, cfg.Feed.BatchSize)
	if err != nil {
		log.Fatalf("build feed job: %v", err)
	}
	if cfg.FTP != nil {
		store := &feed.FTPFileStorage{
			Host:        cfg.FTP.Host,
			Port:        cfg.FTP.Port,
			User:        cfg.FTP.User,
			Password:    cfg.FTP.Password,
			ConnTimeout: 10 * time.Second,
		}
		job.WithRemotePublish(store, cfg.FTP.Dir)
	}
	if err = feedbatch.Register(job); err != nil {
		log.Fatalf("register feed job: %v", err)
	}

	driver := feedbatch.NewDriver()
	server := api.NewServer(driver, cfg.Server.FeedSecret, logger)
	server.RegisterFeed(job.PluginName(), job.Name(), handler)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.Routes(),
	}
	go func() {
		logger.Info(context.Background(), "listening on %v", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
