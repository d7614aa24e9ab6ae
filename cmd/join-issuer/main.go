// Minimal server that mints join URLs for voice-session clients.
// Features: optional OIDC verification for callers and simple CORS.
// The issued join URL embeds a short-lived HMAC-signed call token; the
// signaling server validates it with the shared JOIN_SIGNING_KEY.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	oidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type JoinResponse struct {
	CallID    string `json:"call_id"`
	JoinURL   string `json:"join_url"`
	ExpiresAt int64  `json:"expires_at"`
}

type server struct {
	signalingBase string // e.g. wss://voice.example.com/calls
	signingKey    []byte
	agentID       string
	tokenTTL      time.Duration

	// OIDC config
	tokenType string // "id" (ID token) or "access" (JWT access token)
	issuer    string
	audience  string
	verifier  *oidc.IDTokenVerifier
	jwks      *keyfunc.JWKS

	// CORS
	allowedOrigins []string
}

func main() {
	ttl, err := time.ParseDuration(env("JOIN_TOKEN_TTL", "5m"))
	if err != nil {
		log.Fatalf("invalid JOIN_TOKEN_TTL: %v", err)
	}
	s := &server{
		signalingBase: must("SIGNALING_BASE_URL"),
		signingKey:    []byte(must("JOIN_SIGNING_KEY")),
		agentID:       must("AGENT_ID"),
		tokenTTL:      ttl,
	}

	// OIDC setup
	if iss := os.Getenv("OIDC_ISSUER"); iss != "" {
		aud := must("OIDC_AUDIENCE")
		s.issuer = iss
		s.audience = aud
		s.tokenType = env("OIDC_TOKEN_TYPE", "access") // "id" or "access"

		prov, err := oidc.NewProvider(context.Background(), iss)
		if err != nil {
			log.Fatalf("oidc provider: %v", err)
		}

		if s.tokenType == "id" {
			s.verifier = prov.Verifier(&oidc.Config{ClientID: aud})
			log.Println("OIDC (ID token) enabled", iss, "aud", aud)
		} else {
			// Access token: load JWKS
			var disc struct {
				JWKSURI string `json:"jwks_uri"`
			}
			if err := prov.Claims(&disc); err != nil || disc.JWKSURI == "" {
				log.Fatalf("failed to discover jwks_uri: %v", err)
			}
			jwks, err := keyfunc.Get(disc.JWKSURI, keyfunc.Options{
				RefreshInterval: time.Hour,
				RefreshTimeout:  10 * time.Second,
			})
			if err != nil {
				log.Fatalf("jwks: %v", err)
			}
			s.jwks = jwks
			log.Println("OIDC (access token) enabled", iss, "aud", aud)
		}
	} else {
		log.Println("OIDC disabled")
	}

	if ao := os.Getenv("CORS_ALLOWED_ORIGINS"); ao != "" {
		s.allowedOrigins = splitCSV(ao)
		log.Println("CORS allowed origins:", s.allowedOrigins)
	}

	mux := http.NewServeMux()
	mux.Handle("/join", s.cors(s.auth(http.HandlerFunc(s.handleJoin))))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		if _, err := w.Write([]byte("ok")); err != nil {
			log.Printf("Failed to write health check response: %v", err)
		}
	})

	addr := env("ADDR", ":8080")
	log.Println("join-issuer on", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}

func (s *server) handleJoin(w http.ResponseWriter, r *http.Request) {
	callID := uuid.NewString()
	expires := time.Now().Add(s.tokenTTL)

	claims := jwt.MapClaims{
		"call":  callID,
		"agent": s.agentID,
		"iat":   time.Now().Unix(),
		"exp":   expires.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		log.Println("sign error:", err)
		http.Error(w, "sign failed", http.StatusInternalServerError)
		return
	}

	joinURL, err := s.buildJoinURL(callID, token)
	if err != nil {
		log.Println("join url error:", err)
		http.Error(w, "bad signaling base", http.StatusInternalServerError)
		return
	}
	if err := json.NewEncoder(w).Encode(JoinResponse{
		CallID:    callID,
		JoinURL:   joinURL,
		ExpiresAt: expires.Unix(),
	}); err != nil {
		log.Printf("Failed to encode join response: %v", err)
	}
}

func (s *server) buildJoinURL(callID, token string) (string, error) {
	u, err := url.Parse(s.signalingBase)
	if err != nil {
		return "", err
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + callID
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Middleware: OIDC auth
func (s *server) auth(next http.Handler) http.Handler {
	if s.issuer == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			http.Error(w, "missing bearer", http.StatusUnauthorized)
			return
		}
		raw := strings.TrimSpace(auth[len("Bearer "):])
		if s.tokenType == "id" {
			if s.verifier == nil {
				http.Error(w, "verifier not initialized", http.StatusInternalServerError)
				return
			}
			if _, err := s.verifier.Verify(r.Context(), raw); err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
		} else {
			if s.jwks == nil {
				http.Error(w, "jwks not initialized", http.StatusInternalServerError)
				return
			}
			tok, err := jwt.Parse(raw, s.jwks.Keyfunc, jwt.WithAudience(s.audience), jwt.WithIssuer(s.issuer))
			if err != nil || !tok.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Middleware: CORS
func (s *server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (len(s.allowedOrigins) == 0 || contains(s.allowedOrigins, origin) || contains(s.allowedOrigins, "*")) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// helpers
func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing env %s", k)
	}
	return v
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func contains(a []string, v string) bool {
	for _, x := range a {
		if x == v {
			return true
		}
	}
	return false
}
