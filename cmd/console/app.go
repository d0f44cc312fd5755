package main

import (
	"context"
	"fmt"

	"github.com/open-teleop/console/pkg/channel"
	"github.com/open-teleop/console/pkg/config"
	customlog "github.com/open-teleop/console/pkg/log"
	"github.com/open-teleop/console/pkg/scheduler"
	"github.com/open-teleop/console/pkg/zeromq"
	"github.com/open-teleop/console/services"
)

// consoleApp owns the long-lived pieces shared by every command.
type consoleApp struct {
	cfg     *config.Config
	logger  customlog.Logger
	loop    *scheduler.Loop
	stop    context.CancelFunc
	client  *channel.Client
	console *services.Console
	zmq     *zeromq.ZeroMQService
}

func newConsoleApp(cfg *config.Config, logger customlog.Logger) (*consoleApp, error) {
	loop := scheduler.NewLoop(256)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)

	client := channel.NewClient(channel.Options{
		URL:              cfg.Channel.URL,
		HandshakeTimeout: cfg.HandshakeTimeout(),
		SendQueueSize:    cfg.Channel.SendQueueSize,
	}, logger.WithField("component", "channel"))

	console, err := services.NewConsole(cfg, client, loop, scheduler.NewTimers(loop), logger)
	if err != nil {
		cancel()
		return nil, err
	}
	client.SetHandler(console)

	a := &consoleApp{
		cfg:     cfg,
		logger:  logger,
		loop:    loop,
		stop:    cancel,
		client:  client,
		console: console,
	}
	if err := a.startZeroMQ(); err != nil {
		cancel()
		return nil, err
	}
	return a, nil
}

func (a *consoleApp) startZeroMQ() error {
	zcfg := a.cfg.ZeroMQ
	if zcfg.PublishBindAddress == "" && zcfg.RequestBindAddress == "" {
		a.logger.Infof("ZeroMQ integration disabled")
		return nil
	}

	zlog := a.logger.WithField("component", "zeromq")
	svc, err := zeromq.NewZeroMQService(zeromq.Options{
		PublishAddress: zcfg.PublishBindAddress,
		RequestAddress: zcfg.RequestBindAddress,
	}, zlog)
	if err != nil {
		return fmt.Errorf("failed to create ZeroMQ service: %w", err)
	}

	if zcfg.RequestBindAddress != "" {
		zeromq.RegisterConsoleHandlers(svc, consoleControl{a.console})
	}
	if zcfg.PublishBindAddress != "" {
		publisher := zeromq.NewEventPublisher(svc, zlog)
		if err := a.console.OnLogEntry(publisher.PublishLogEntry); err != nil {
			svc.Stop()
			return err
		}
		if err := a.console.OnStateChange(publisher.PublishStateChange); err != nil {
			svc.Stop()
			return err
		}
		if err := a.console.OnMotion(publisher.PublishMotion); err != nil {
			svc.Stop()
			return err
		}
	}

	if err := svc.Start(); err != nil {
		svc.Stop()
		return fmt.Errorf("failed to start ZeroMQ service: %w", err)
	}
	a.zmq = svc
	a.logger.Infof("ZeroMQ integration started (pub=%q rep=%q)", svc.PublishEndpoint(), svc.RequestEndpoint())
	return nil
}

// Close stops the robot, drops the control channel and stops the loop.
func (a *consoleApp) Close() {
	if err := a.console.Disconnect(); err != nil {
		a.logger.Warnf("Disconnect on shutdown failed: %v", err)
	}
	if a.zmq != nil {
		a.zmq.Stop()
	}
	a.stop()
	<-a.loop.Done()
}

// consoleControl serves ZeroMQ requests from the console.
type consoleControl struct {
	console *services.Console
}

func (c consoleControl) Status() (interface{}, error) {
	return c.console.Snapshot()
}

func (c consoleControl) RecentLog(limit int) (interface{}, error) {
	return c.console.Log(limit)
}

func (c consoleControl) EmergencyStop() error {
	return c.console.EmergencyStop()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadBootstrapConfig(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
