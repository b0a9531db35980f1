package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string
	Method string // "api-key" or "oidc"
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// ExtractUserID gets the caller's user id from context (set by the auth
// interceptors).
func ExtractUserID(ctx context.Context) (string, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok || strings.TrimSpace(p.UserID) == "" {
		return "", status.Error(codes.Unauthenticated, "missing caller identity")
	}
	return p.UserID, nil
}

// Authenticator turns a presented credential into a Principal.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*Principal, error)
}

// APIKeyAuthenticator maps static API keys to user ids.
type APIKeyAuthenticator struct {
	owners map[string]string
}

func NewAPIKeyAuthenticator(owners map[string]string) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{owners: owners}
}

func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, key string) (*Principal, error) {
	user, ok := a.owners[key]
	if !ok {
		return nil, fmt.Errorf("%w: invalid api key", ErrUnauthenticated)
	}
	return &Principal{UserID: user, Method: "api-key"}, nil
}

// IDTokenVerifier is satisfied by *oidc.IDTokenVerifier.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// OIDCAuthenticator accepts ID tokens from a single issuer. The token
// subject becomes the user id.
type OIDCAuthenticator struct {
	verifier IDTokenVerifier
}

// NewOIDCAuthenticator discovers the issuer's keys. It makes a network call.
func NewOIDCAuthenticator(ctx context.Context, issuer, clientID string) (*OIDCAuthenticator, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}
	return NewOIDCAuthenticatorWithVerifier(provider.Verifier(&oidc.Config{ClientID: clientID})), nil
}

func NewOIDCAuthenticatorWithVerifier(v IDTokenVerifier) *OIDCAuthenticator {
	return &OIDCAuthenticator{verifier: v}
}

func (a *OIDCAuthenticator) Authenticate(ctx context.Context, raw string) (*Principal, error) {
	token, err := a.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if token.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	return &Principal{UserID: token.Subject, Method: "oidc"}, nil
}

// MultiAuthenticator tries each authenticator in order and returns the first
// success.
type MultiAuthenticator []Authenticator

func (m MultiAuthenticator) Authenticate(ctx context.Context, credential string) (*Principal, error) {
	var errs []error
	for _, a := range m {
		p, err := a.Authenticate(ctx, credential)
		if err == nil {
			return p, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no authenticator configured", ErrUnauthenticated)
	}
	return nil, errors.Join(errs...)
}

// BearerToken strips the "Bearer " scheme from an Authorization value.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// credentialFromMetadata reads "authorization: Bearer <token>" and falls back
// to "api-key".
func credentialFromMetadata(md metadata.MD) string {
	if vals := md.Get("authorization"); len(vals) > 0 {
		if token := BearerToken(vals[0]); token != "" {
			return token
		}
	}
	if vals := md.Get("api-key"); len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}

func authenticate(ctx context.Context, auth Authenticator) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing metadata")
	}
	credential := credentialFromMetadata(md)
	if credential == "" {
		return nil, status.Error(codes.Unauthenticated, "missing credentials")
	}
	p, err := auth.Authenticate(ctx, credential)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid credentials")
	}
	return WithPrincipal(ctx, p), nil
}

func isPublic(method string, public []string) bool {
	for _, m := range public {
		if m == method {
			return true
		}
	}
	return false
}

// AuthInterceptor validates credentials from metadata. Methods listed in
// public skip authentication.
func AuthInterceptor(auth Authenticator, public ...string) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if isPublic(info.FullMethod, public) {
			return handler(ctx, req)
		}
		ctx, err := authenticate(ctx, auth)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamAuthInterceptor for streaming RPCs
func StreamAuthInterceptor(auth Authenticator, public ...string) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if isPublic(info.FullMethod, public) {
			return handler(srv, ss)
		}
		ctx, err := authenticate(ss.Context(), auth)
		if err != nil {
			return err
		}
		return handler(srv, &authenticatedStream{ServerStream: ss, ctx: ctx})
	}
}

type authenticatedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authenticatedStream) Context() context.Context {
	return s.ctx
}
