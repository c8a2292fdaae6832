package main

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	apiv1 "github.com/SanjoDeundiak/oscam-supervisor/api/v1"
	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib/config"
)

// GRPCServer encapsulates the listener, optional mTLS configuration and gRPC server instance.
type GRPCServer struct {
	lis net.Listener
	s   *grpc.Server
}

// NewGRPCServer listens on the configured address and registers service.
// Unix sockets are served without transport security, tcp requires mTLS.
func NewGRPCServer(cfg *config.Config, service apiv1.SupervisorServer) (*GRPCServer, error) {
	var creds credentials.TransportCredentials
	if cfg.TLS.Enabled() {
		var err error
		creds, err = serverCredentials(cfg.TLS)
		if err != nil {
			return nil, err
		}
	}

	lis, err := listen(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	return newGRPCServer(lis, creds, service), nil
}

func newGRPCServer(lis net.Listener, creds credentials.TransportCredentials, service apiv1.SupervisorServer) *GRPCServer {
	opts := []grpc.ServerOption{
		grpc.UnaryInterceptor(injectCallerUnary),
		grpc.StreamInterceptor(injectCallerStream),
	}
	if creds != nil {
		opts = append(opts, grpc.Creds(creds))
	}

	s := grpc.NewServer(opts...)
	apiv1.RegisterSupervisorServer(s, service)

	return &GRPCServer{lis: lis, s: s}
}

func listen(cfg *config.Config) (net.Listener, error) {
	network, addr := cfg.Listen()
	if network != "unix" {
		return net.Listen(network, addr)
	}

	// A socket left behind by an unclean exit would fail the bind.
	if err := os.Remove(addr); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	lis, err := net.Listen(network, addr)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(addr, 0o600); err != nil {
		_ = lis.Close()
		return nil, err
	}
	return lis, nil
}

func serverCredentials(cfg config.TLS) (credentials.TransportCredentials, error) {
	keyPEM, certPEM, caPEM, err := cfg.PEM()
	if err != nil {
		return nil, err
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to load server key pair: %w", err)
	}

	caPool := x509.NewCertPool()
	if ok := caPool.AppendCertsFromPEM(caPEM); !ok {
		return nil, fmt.Errorf("failed to append CA certificate to pool")
	}

	return credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caPool,
		ClientCAs:    caPool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS13,
	}), nil
}

// Serve starts serving gRPC on the configured listener.
func (g *GRPCServer) Serve() error {
	return g.s.Serve(g.lis)
}

// Addr returns the network address the server is bound to.
func (g *GRPCServer) Addr() net.Addr { return g.lis.Addr() }

// Stop gracefully stops the gRPC server.
func (g *GRPCServer) Stop() { g.s.GracefulStop() }
