package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib/config"
)

func dial(_ context.Context) (*grpc.ClientConn, error) {
	addr := os.Getenv(config.EnvAddress)
	if strings.TrimSpace(addr) == "" {
		addr = config.DefaultAddress
	}

	creds, err := transportCredentials(addr)
	if err != nil {
		return nil, err
	}

	return grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
}

// transportCredentials uses no transport security for unix sockets and mTLS
// from the environment otherwise.
func transportCredentials(addr string) (credentials.TransportCredentials, error) {
	if strings.HasPrefix(addr, "unix://") {
		return insecure.NewCredentials(), nil
	}

	keyPEM := os.Getenv(config.EnvTLSKey)
	certPEM := os.Getenv(config.EnvTLSCert)
	caPEM := os.Getenv(config.EnvCATLSCert)
	if strings.TrimSpace(keyPEM) == "" || strings.TrimSpace(certPEM) == "" || strings.TrimSpace(caPEM) == "" {
		return nil, fmt.Errorf("missing TLS environment variables for %s; require %s, %s, %s",
			addr, config.EnvTLSKey, config.EnvTLSCert, config.EnvCATLSCert)
	}

	cert, err := tls.X509KeyPair([]byte(certPEM), []byte(keyPEM))
	if err != nil {
		return nil, fmt.Errorf("failed to parse TLS cert/key from env: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM([]byte(caPEM)) {
		return nil, fmt.Errorf("failed to parse CA cert from env")
	}

	return credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS13,
	}), nil
}

func grpcCode(err error) codes.Code {
	st, ok := status.FromError(err)
	if !ok {
		return codes.Unknown
	}
	return st.Code()
}
