package main

import (
	"KoordeDHT/internal/bootstrap"
	"KoordeDHT/internal/config"
	"KoordeDHT/internal/domain"
	"KoordeDHT/internal/logger"
	zapfactory "KoordeDHT/internal/logger/zap"
	"KoordeDHT/internal/node"
	"KoordeDHT/internal/routingtable"
	"KoordeDHT/internal/storage"
	"KoordeDHT/internal/telemetry"
	"KoordeDHT/internal/transport"
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
)

var defaultConfigPath = "config/node/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %q: %v", *configPath, err)
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.ValidateConfig(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	var lgr logger.Logger
	if cfg.Logger.Active {
		zapLog, err := zapfactory.New(cfg.Logger)
		if err != nil {
			log.Fatalf("failed to initialize logger: %v", err)
		}
		defer func() { _ = zapLog.Sync() }()
		lgr = zapfactory.NewZapAdapter(zapLog)
	} else {
		lgr = &logger.NopLogger{}
	}
	cfg.LogConfig(lgr)

	// Open the UDP endpoint (determines the address peers will dial us at)
	udpConn, advertised, err := transport.Listen(cfg.Node.Mode, cfg.Node.Bind, cfg.Node.Host, cfg.Node.Port)
	if err != nil {
		lgr.Error("failed to open UDP listener", logger.F("err", err))
		os.Exit(1)
	}
	lgr.Debug("opened udp listener", logger.F("addr", advertised))

	// Initialize the identifier space
	space, err := domain.NewSpace(cfg.DHT.IDBits, cfg.DHT.FaultTolerance.SuccessorListSize)
	if err != nil {
		lgr.Error("failed to initialize identifier space", logger.F("err", err))
		os.Exit(1)
	}
	lgr.Debug("identifier space initialized",
		logger.F("id_bits", space.Bits),
		logger.F("successorListSize", space.SuccListSize))

	host, port, err := splitHostPort(advertised)
	if err != nil {
		lgr.Error("failed to parse advertised address", logger.F("err", err))
		os.Exit(1)
	}

	var id domain.ID
	if cfg.Node.Id == "" {
		id = space.HashString(advertised)
	} else {
		id, err = space.ParseID(cfg.Node.Id)
		if err != nil {
			lgr.Error("invalid node ID in configuration", logger.F("err", err))
			os.Exit(1)
		}
	}
	self := domain.Peer{IP: host, Port: port, ID: id}
	lgr = lgr.Named("node").WithPeer(self)
	lgr.Info("new node initializing")

	shutdownTracer := telemetry.InitTracer(cfg.Telemetry, "KoordeDHT-Node", id)
	defer func() { _ = shutdownTracer(context.Background()) }()

	rt := routingtable.New(self, space, routingtable.WithLogger(lgr.Named("routingtable")))
	conn := transport.New(udpConn, transport.WithLogger(lgr.Named("transport")))
	primary := storage.NewMemoryStorage(lgr.Named("storage.primary"))
	replica := storage.NewMemoryStorage(lgr.Named("storage.replica"))

	ft := cfg.DHT.FaultTolerance
	n := node.New(rt, conn, primary, replica,
		node.WithLogger(lgr),
		node.WithRPCTimeout(ft.RPCTimeout),
		node.WithPredecessorTimeout(ft.PredecessorTimeout),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() { serveErr <- n.Serve(ctx) }()
	lgr.Debug("dispatch loop started")

	var disco bootstrap.Bootstrap
	switch cfg.DHT.Bootstrap.Mode {
	case "dns":
		disco, err = bootstrap.NewDNSBootstrap(cfg.DHT.Bootstrap, lgr.Named("bootstrap"))
	case "static":
		disco = bootstrap.NewStaticBootstrap(cfg.DHT.Bootstrap.Peers)
	case "init":
		disco = bootstrap.NewStaticBootstrap(nil)
	default:
		lgr.Error("unknown bootstrap mode", logger.F("mode", cfg.DHT.Bootstrap.Mode))
		n.Stop()
		os.Exit(1)
	}
	if err != nil {
		lgr.Error("failed to initialize bootstrap discovery", logger.F("err", err))
		n.Stop()
		os.Exit(1)
	}

	joinCtx, joinCancel := context.WithTimeout(context.Background(), 10*time.Second)
	peers, err := disco.Discover(joinCtx)
	joinCancel()
	if err != nil {
		lgr.Error("failed to resolve bootstrap peers", logger.F("err", err))
		n.Stop()
		os.Exit(1)
	}
	lgr.Info("resolved bootstrap peers", logger.F("peers", peers))

	if len(peers) == 0 {
		n.CreateNewDHT()
	} else {
		seedHost, seedPort, err := splitHostPort(peers[0])
		if err != nil {
			lgr.Error("invalid bootstrap peer address", logger.F("peer", peers[0]), logger.F("err", err))
			n.Stop()
			os.Exit(1)
		}
		seed := domain.Peer{IP: seedHost, Port: seedPort, ID: space.HashString(peers[0])}
		joinCtx, joinCancel = context.WithTimeout(context.Background(), 10*time.Second)
		err = n.Join(joinCtx, seed)
		joinCancel()
		if err != nil {
			lgr.Error("failed to join ring", logger.F("err", err))
			n.Stop()
			os.Exit(1)
		}
	}

	regCtx, regCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := disco.Register(regCtx, self); err != nil {
		lgr.Warn("failed to register node", logger.F("err", err))
	}
	regCancel()

	n.StartStabilizers(ctx, ft.StabilizationInterval, ft.FixFingersInterval, ft.CheckPredecessorInterval)
	lgr.Debug("stabilization workers started")

	select {
	case <-ctx.Done():
		lgr.Info("shutdown signal received, leaving ring gracefully...")

		leaveCtx, leaveCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := n.Leave(leaveCtx); err != nil {
			lgr.Warn("graceful leave failed", logger.F("err", err))
		}
		leaveCancel()

		deregCtx, deregCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := disco.Deregister(deregCtx, self); err != nil {
			lgr.Warn("failed to deregister node", logger.F("err", err))
		}
		deregCancel()

		n.Stop()
	case err := <-serveErr:
		if err != nil {
			lgr.Error("dispatch loop terminated unexpectedly", logger.F("err", err))
		}
		n.Stop()
		os.Exit(1)
	}
}

// splitHostPort splits "host:port" into host and a numeric port.
func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}
