package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/zhancare-client/internal/config"
	"github.com/jrsteele09/zhancare-client/internal/fakeapi"
	"github.com/jrsteele09/zhancare-client/internal/logging"
)

func main() {
	logger := logging.New(logging.Config{Level: "info", Console: true})
	if err := run(); err != nil {
		logger.Fatal().Err(err).Msg("error running server")
	}
	logger.Info().Msg("server stopped")
}

func run() (returnError error) {
	c, err := config.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := logging.New(logging.Config{Level: c.GetLogLevel(), Console: c.IsDev()})

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	opts := []fakeapi.Option{fakeapi.WithLogger(logging.Component(logger, "fakeapi"))}
	if c.IsDev() {
		opts = append(opts, fakeapi.WithRouteLog(os.Stdout))
	}

	displayAppname(c.GetAppName() + " API")
	api, err := fakeapi.New(c, opts...)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              c.GetFakeAPIAddr(),
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listenAndServe(server, logger)
	}()
	logger.Info().
		Str("patient", fakeapi.DemoPatientEmail).
		Str("doctor", fakeapi.DemoDoctorEmail).
		Str("password", fakeapi.DemoPassword).
		Msg("demo accounts")

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(server)
}

func listenAndServe(server *http.Server, logger zerolog.Logger) error {
	logger.Info().Str("addr", server.Addr).Str("base_path", fakeapi.BasePath).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
