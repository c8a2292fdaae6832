package main

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// localCaller identifies clients connected without TLS, i.e. over the unix socket.
const localCaller = "local"

type callerContextKey struct{}

func extractCallerFromContext(ctx context.Context) *string {
	if v := ctx.Value(callerContextKey{}); v != nil {
		if caller, ok := v.(string); ok {
			return &caller
		}
	}
	return nil
}

func extractSpiffeIdFromTls(ctx context.Context) *string {
	p, ok := peer.FromContext(ctx)
	if !ok || p == nil {
		return nil
	}

	ti, ok := p.AuthInfo.(credentials.TLSInfo)
	if !ok {
		return nil
	}

	state := ti.State
	if len(state.PeerCertificates) == 0 || state.PeerCertificates[0] == nil {
		return nil
	}

	leaf := state.PeerCertificates[0]

	// Find the first SPIFFE URI SAN
	for _, uri := range leaf.URIs {
		if uri == nil {
			continue
		}
		if uri.Scheme == "spiffe" {
			// Trust domain (host) part, e.g. spiffe://client1 -> "client1"
			return &uri.Host
		}
	}

	return nil
}

// identifyCaller returns the caller already in ctx, the SPIFFE id of a TLS
// peer, or localCaller for peers without transport security.
func identifyCaller(ctx context.Context) (string, error) {
	if v := extractCallerFromContext(ctx); v != nil {
		return *v, nil
	}

	if p, ok := peer.FromContext(ctx); ok && p != nil {
		if _, isTLS := p.AuthInfo.(credentials.TLSInfo); isTLS {
			spiffeId := extractSpiffeIdFromTls(ctx)
			if spiffeId == nil {
				return "", status.Error(codes.Unauthenticated, "client must have SPIFFE ID")
			}
			return *spiffeId, nil
		}
	}

	return localCaller, nil
}

func injectCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

func callerOf(ctx context.Context) string {
	if v := extractCallerFromContext(ctx); v != nil {
		return *v
	}
	return localCaller
}

func injectCallerUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	caller, err := identifyCaller(ctx)
	if err != nil {
		return nil, err
	}

	return handler(injectCaller(ctx, caller), req)
}

type streamWithCtx struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *streamWithCtx) Context() context.Context { return s.ctx }

func injectCallerStream(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	caller, err := identifyCaller(ss.Context())
	if err != nil {
		return err
	}

	return handler(srv, &streamWithCtx{ServerStream: ss, ctx: injectCaller(ss.Context(), caller)})
}
