package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/nodeweave/db"
	"github.com/deemkeen/nodeweave/federation"
	"github.com/deemkeen/nodeweave/util"
	"github.com/deemkeen/nodeweave/web"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-metrics"
)

func main() {

	conf, err := util.ReadConf()
	if err != nil {
		log.Fatal("Could not read configuration", "err", err)
	}

	if level, err := log.ParseLevel(conf.Conf.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if log.GetLevel() > log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Info("Starting", "version", util.GetNameAndVersion())
	fmt.Println("Configuration: ")
	fmt.Println(util.PrettyPrint(conf.Redacted()))

	inm := metrics.NewInmemSink(10*time.Second, time.Minute)
	if _, err := metrics.NewGlobal(metrics.DefaultConfig(util.Name), inm); err != nil {
		log.Fatal("Could not set up metrics", "err", err)
	}

	database, err := db.Open(util.ResolveFilePath(conf.Conf.Database))
	if err != nil {
		log.Fatal("Could not open database", "err", err)
	}
	defer database.Close()

	log.Info("Running database migrations...")
	if err := database.RunMigrations(); err != nil {
		log.Fatal("Migrations failed", "err", err)
	}

	fed, err := federation.New(database, federation.Config{
		BaseURL: conf.Conf.BaseUrl,
		Credentials: federation.Credentials{
			Username: conf.Conf.Node.Username,
			Password: conf.Conf.Node.Password,
		},
		Timeout:     conf.FederationTimeout(),
		Concurrency: conf.Conf.Federation.Concurrency,
		PageSize:    conf.Conf.Stream.PageSize,
		MaxPageSize: conf.Conf.Stream.MaxPageSize,
		MetricSink:  inm,
	})
	if err != nil {
		log.Fatal("Could not set up federation", "err", err)
	}

	server := web.NewServer(conf, database, fed, inm)
	startServing(server, conf)
}

func startServing(server *web.Server, conf *util.AppConfig) {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	go server.Limiter.Cleanup(ctx, time.Minute, 10*time.Minute)
	go server.InboxLimiter.Cleanup(ctx, time.Minute, 10*time.Minute)

	s := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", conf.Conf.Host, conf.Conf.HttpPort),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	log.Info("Starting HTTP server", "addr", s.Addr, "base", conf.Conf.BaseUrl)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", "err", err)
		}
	}()

	<-done
	log.Info("Stopping HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		log.Error("Shutdown failed", "err", err)
	}
}
