package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/S0me0neR0man/ourtable/internal/config"
	"github.com/S0me0neR0man/ourtable/internal/document"
)

func main() {
	conf := config.NewConfig()

	newLogger := zap.NewProduction
	if conf.Debug {
		newLogger = zap.NewDevelopment
	}
	logger, err := newLogger()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync() //nolint:errcheck

	sugar := logger.Sugar()
	sugar.Infow("start", "config", conf)

	doc := document.New("checktable", conf, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	c := NewChecker(doc, conf, logger)
	if err := c.Go(ctx); err != nil {
		sugar.Fatalw("check failed", "error", err, "document", doc.String())
	}
	sugar.Infow("check done", "document", doc.String())

	if err := doc.Close(); err != nil {
		sugar.Fatalw("close", "error", err)
	}
}
