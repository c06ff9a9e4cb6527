// agentchain-casd serves a block store over the grpccas protocol so that
// several nodes can share one store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"google.golang.org/grpc"

	"xdao.co/agentchain/config"
	"xdao.co/agentchain/storage"
	"xdao.co/agentchain/storage/casregistry"
	"xdao.co/agentchain/storage/grpccas"
	_ "xdao.co/agentchain/storage/localfs"
	_ "xdao.co/agentchain/storage/sqlitecas"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("agentchain-casd", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	listen := fs.String("listen", "127.0.0.1:7777", "listen address")
	backend := fs.String("backend", "", "CAS backend name (default: the store from --config)")
	configPath := fs.String("config", "", "YAML config file (default $"+config.EnvVar+")")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")

	goFlags := flag.NewFlagSet("backends", flag.ContinueOnError)
	casregistry.RegisterFlags(goFlags, casregistry.UsageDaemon)
	fs.AddGoFlagSet(goFlags)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *listBackends {
		casregistry.Describe(out, casregistry.UsageDaemon)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 2
	}
	logger := cfg.Logger(errOut)

	var (
		cas     storage.CAS
		closeFn func() error
	)
	if *backend != "" {
		cas, closeFn, err = casregistry.Open(*backend, casregistry.UsageDaemon)
	} else {
		*backend = cfg.Store.Backend
		cas, closeFn, err = cfg.OpenStore(casregistry.UsageDaemon)
	}
	if err != nil {
		logger.Error("open store", "backend", *backend, "err", err)
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		logger.Error("listen", "addr", *listen, "err", err)
		return 1
	}
	return serve(ctx, lis, cas, logger, *backend)
}

func serve(ctx context.Context, lis net.Listener, cas storage.CAS, logger *slog.Logger, backend string) int {
	s := grpc.NewServer()
	grpccas.RegisterCASServer(s, &grpccas.Server{CAS: cas, Logger: logger})

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		s.GracefulStop()
	}()

	logger.Info("listening", "addr", lis.Addr().String(), "backend", backend)
	if err := s.Serve(lis); err != nil {
		logger.Error("serve", "err", err)
		return 1
	}
	return 0
}
