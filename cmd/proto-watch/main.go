package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Francouer/proto-watch/internal/app"
	"github.com/Francouer/proto-watch/internal/domain"
	"github.com/Francouer/proto-watch/internal/infrastructure"
	interfaces "github.com/Francouer/proto-watch/internal/interface"
)

func main() {
	// Cancelling stops the watcher and kills running compilers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		cancel()
	}()

	logger := infrastructure.NewColorLogger(false)
	fileRepo := infrastructure.NewFileRepository(logger)
	runner := infrastructure.NewCommandRunner(logger)
	locator := infrastructure.NewCompilerLocator(logger, runner)
	configRepo := infrastructure.NewConfigRepository(logger, fileRepo)
	refresher := infrastructure.NewRefresher(logger, runner)

	compilerService := app.NewCompilerService(logger, fileRepo, runner, refresher)

	newWatcher := func(config *domain.CompilerConfig) domain.ChangeWatcher {
		return infrastructure.NewSchemaWatcher(logger, config.SourceRoot(), config.Extension,
			config.ReservedRoots(), config.WatchDebounce)
	}

	cliHandler := interfaces.NewCLIHandler(compilerService, locator, configRepo, newWatcher, logger)

	if err := cliHandler.CreateRootCommand().ExecuteContext(ctx); err != nil {
		logger.Error("proto-watch: %v", err)
		os.Exit(1)
	}
}
