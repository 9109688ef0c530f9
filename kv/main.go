package main

import (
	"flag"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pingcap/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rcckv/rcckv/kv/config"
	"github.com/rcckv/rcckv/kv/server"
	"github.com/rcckv/rcckv/kv/storage"
	"github.com/rcckv/rcckv/kv/storage/standalone_storage"
	"github.com/rcckv/rcckv/kv/transaction/executor"
	"github.com/rcckv/rcckv/kv/transaction/frame"
	"github.com/rcckv/rcckv/kv/transaction/txn"
	"github.com/rcckv/rcckv/proto/pkg/rccpb"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

var (
	configPath = flag.String("config", "", "config file path")
	storeAddr  = flag.String("addr", "", "store address")
	partition  = flag.Int("partition", -1, "partition id")
	mode       = flag.String("mode", "", "concurrency control mode, rcc or 2pl")
	dbPath     = flag.String("path", "", "data directory, \"mem\" keeps data in memory")
)

func main() {
	flag.Parse()
	conf := config.NewDefaultConfig()
	if *configPath != "" {
		var err error
		if conf, err = config.LoadConfig(*configPath); err != nil {
			log.Fatal("load config failed", zap.Error(err))
		}
	}
	if *storeAddr != "" {
		conf.StoreAddr = *storeAddr
	}
	if *partition >= 0 {
		conf.PartitionID = uint32(*partition)
	}
	if *mode != "" {
		if err := conf.Mode.UnmarshalText([]byte(*mode)); err != nil {
			log.Fatal("bad mode", zap.Error(err))
		}
	}
	if *dbPath != "" {
		conf.DBPath = *dbPath
	}
	if err := conf.SetupLogger(); err != nil {
		log.Fatal("setup logger failed", zap.Error(err))
	}
	log.ReplaceGlobals(conf.GetZapLogger(), conf.GetZapLogProperties())
	if err := conf.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}
	log.Info("config", zap.Reflect("conf", conf))

	var st storage.Storage
	if conf.DBPath == "mem" {
		st = storage.NewMemStorage()
	} else {
		st = standalone_storage.NewStandAloneStorage(conf)
	}
	if err := st.Start(); err != nil {
		log.Fatal("start storage failed", zap.Error(err))
	}
	registry := txn.NewKVRegistry()
	engine := executor.NewEngine(st, registry)
	if err := engine.Recover(); err != nil {
		log.Fatal("recover execution engine failed", zap.Error(err))
	}

	commo := server.NewCommo(conf)
	sched, err := frame.NewScheduler(conf, registry, engine, commo)
	if err != nil {
		log.Fatal("create scheduler failed", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		log.Fatal("start scheduler failed", zap.Error(err))
	}

	var alivePolicy = keepalive.EnforcementPolicy{
		MinTime:             2 * time.Second, // If a client pings more than once every 2 seconds, terminate the connection
		PermitWithoutStream: true,            // Allow pings even when there are no active streams
	}

	grpcServer := grpc.NewServer(
		grpc.KeepaliveEnforcementPolicy(alivePolicy),
		grpc.InitialWindowSize(1<<30),
		grpc.InitialConnWindowSize(1<<30),
		grpc.MaxRecvMsgSize(10*1024*1024),
	)
	rccpb.RegisterRccServer(grpcServer, server.NewServer(conf.PartitionID, sched))
	listenAddr := conf.StoreAddr[strings.IndexByte(conf.StoreAddr, ':'):]
	l, err := net.Listen("tcp", listenAddr)
	if err != nil {
		log.Fatal("listen failed", zap.String("addr", listenAddr), zap.Error(err))
	}
	handleSignal(grpcServer)

	if conf.StatusAddr != "" {
		go func() {
			log.Info("status server listening", zap.String("addr", conf.StatusAddr))
			http.HandleFunc("/status", func(writer http.ResponseWriter, request *http.Request) {
				writer.WriteHeader(http.StatusOK)
			})
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(conf.StatusAddr, nil); err != nil {
				log.Error("status server stopped", zap.Error(err))
			}
		}()
	}

	log.Info("partition serving", zap.Uint32("partition", conf.PartitionID), zap.String("addr", conf.StoreAddr),
		zap.String("mode", string(conf.Mode)))
	if err := grpcServer.Serve(l); err != nil {
		log.Error("grpc server stopped", zap.Error(err))
	}
	if err := sched.Stop(); err != nil {
		log.Error("stop scheduler failed", zap.Error(err))
	}
	commo.Close()
	if err := st.Stop(); err != nil {
		log.Error("stop storage failed", zap.Error(err))
	}
	log.Info("Server stopped.")
}

func handleSignal(grpcServer *grpc.Server) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	go func() {
		sig := <-sigCh
		log.Info("got signal to exit", zap.Stringer("signal", sig))
		grpcServer.Stop()
	}()
}
