package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/golang-jwt/jwt/v5"
	_ "github.com/lib/pq"

	"authserver/internal/audit"
	jwttoken "authserver/internal/jwt_token"
	"authserver/internal/oauth/clientauth"
	"authserver/internal/oauth/requestobject"
	"authserver/internal/oauth/service"
	authorizationcode "authserver/internal/oauth/store/authorization-code"
	clientstore "authserver/internal/oauth/store/client"
	grantedtoken "authserver/internal/oauth/store/granted-token"
	userstore "authserver/internal/oauth/store/user"
	"authserver/internal/oauth/token"
	"authserver/internal/oauth/validator"
	"authserver/internal/openbanking/binding"
	"authserver/internal/openbanking/redirector"
	consentstore "authserver/internal/openbanking/store/consent"
	"authserver/internal/platform/config"
	"authserver/internal/platform/metrics"
	platformredis "authserver/internal/platform/redis"
	httptransport "authserver/internal/transport/http"
	dErrors "authserver/pkg/domain-errors"
	"authserver/pkg/platform/httputil"
)

// Headers set by the authenticating proxy in front of the server.
const (
	subjectHeader  = "X-Authenticated-Subject"
	authTimeHeader = "X-Authenticated-At"
)

type app struct {
	handler     *httptransport.Handler
	auditWorker *audit.Worker
	sweepers    []sweeper
	redis       *platformredis.Client
	db          *sql.DB
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func (a *app) health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if a.redis != nil {
		if err := a.redis.Health(ctx); err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "redis unavailable"))
			return
		}
	}
	if a.db != nil {
		if err := a.db.PingContext(ctx); err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "database unavailable"))
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// build assembles the authorization core from configuration.
func build(ctx context.Context, cfg *config.Config, log *slog.Logger, m *metrics.Metrics) (*app, error) {
	a := &app{}

	clients := clientstore.NewInMemory()
	for _, c := range cfg.Clients {
		client, err := seedClient(c)
		if err != nil {
			return nil, fmt.Errorf("seed client %q: %w", c.ID, err)
		}
		if err := clients.Save(ctx, client); err != nil {
			return nil, err
		}
	}
	resolver := clientstore.NewCachedResolver(clients, cfg.ClientCache.TTL)
	users := userstore.NewInMemory(seedUsers(cfg.Users)...)

	codes := authorizationcode.New()
	a.sweepers = append(a.sweepers, sweeper{name: "authorization_codes", sweep: codes.DeleteExpiredCodes})

	var grants token.GrantedTokenStore
	rdb, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		a.redis = rdb
		grants = grantedtoken.NewRedis(rdb.Client, grantedtoken.WithMetrics(m))
		log.Info("granted tokens stored in redis")
	} else {
		mem := grantedtoken.NewInMemory()
		grants = mem
		a.sweepers = append(a.sweepers, sweeper{name: "granted_tokens", sweep: mem.DeleteExpired})
	}

	var (
		consents   consentStore = consentstore.NewInMemory()
		auditStore audit.Store  = audit.NewInMemoryStore()
	)
	if cfg.Database.DSN != "" {
		db, err := openDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.db = db
		pgAudit := audit.NewPostgresStore(db)
		if cfg.Database.Migrate {
			if err := consentstore.Migrate(ctx, db); err != nil {
				return nil, fmt.Errorf("migrate consents: %w", err)
			}
			if err := pgAudit.Migrate(ctx); err != nil {
				return nil, fmt.Errorf("migrate audit: %w", err)
			}
		}
		consents = consentstore.NewPostgres(db)
		auditStore = pgAudit
		log.Info("consents and audit events stored in postgres")
	}

	if err := seedConsents(ctx, consents, cfg.OpenBanking.Consents); err != nil {
		return nil, err
	}
	if cfg.OpenBanking.Enabled && cfg.Database.DSN == "" && len(cfg.OpenBanking.Consents) == 0 {
		log.Warn("open banking profile has no consents, seed openbanking.consents or set DATABASE_URL")
	}

	publisher := audit.NewPublisher(auditStore, audit.WithBuffer(cfg.Audit.Buffer), audit.WithLogger(log))
	if inbox := publisher.Inbox(); inbox != nil {
		a.auditWorker = audit.NewWorker(auditStore, inbox, log)
	}

	signer, err := newJWTService(cfg, log, m)
	if err != nil {
		return nil, err
	}

	validatorOpts := []validator.Option{validator.WithLogger(log), validator.WithMetrics(m)}
	var binders []token.Binder
	if cfg.OpenBanking.Enabled {
		r, err := redirector.New(consents,
			redirector.WithConsentClaimName(cfg.OpenBanking.ConsentClaimName),
			redirector.WithAccountsScope(cfg.OpenBanking.AccountsScope),
			redirector.WithLogger(log),
		)
		if err != nil {
			return nil, err
		}
		validatorOpts = append(validatorOpts, validator.WithConsentRedirector(r))
		binders = append(binders, binding.NewIntentBinder(cfg.OpenBanking.ConsentClaimName))
		log.Info("open banking profile enabled", "consent_claim", cfg.OpenBanking.ConsentClaimName)
	}
	requestObjects := requestobject.New(signer,
		requestobject.WithFetchTimeout(cfg.RequestObject.FetchTimeout),
		requestobject.WithLogger(log),
	)
	v := validator.New(requestObjects, signer, validatorOpts...)

	tokenOpts := []token.Option{token.WithLogger(log), token.WithMetrics(m)}
	builders, err := token.NewRegistry(
		token.NewAccessTokenBuilder(signer, grants, binders, tokenOpts...),
		token.NewRefreshTokenBuilder(signer, grants, tokenOpts...),
		token.NewIDTokenBuilder(signer, grants, tokenOpts...),
	)
	if err != nil {
		return nil, err
	}

	svc, err := service.New(cfg.Server.Issuer, service.Dependencies{
		Clients:       resolver,
		Users:         users,
		Codes:         codes,
		GrantedTokens: grants,
		Validator:     v,
		Builders:      builders,
		Audit:         publisher,
	}, service.WithLogger(log))
	if err != nil {
		return nil, err
	}

	a.handler = httptransport.NewHandler(svc,
		clientauth.New(resolver, clientauth.WithLogger(log)),
		httptransport.TrustedHeaderSessions{Header: subjectHeader, AuthTimeHeader: authTimeHeader, Users: users},
		httptransport.WithLogger(log),
	)
	return a, nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func newJWTService(cfg *config.Config, log *slog.Logger, m *metrics.Metrics) (*jwttoken.JWTService, error) {
	opts := []jwttoken.Option{jwttoken.WithLogger(log), jwttoken.WithMetrics(m)}
	if cfg.JWT.DefaultAlgorithm != "" {
		opts = append(opts, jwttoken.WithDefaultAlgorithm(cfg.JWT.DefaultAlgorithm))
	}
	if cfg.JWT.RSAKeyPath != "" {
		pem, err := os.ReadFile(cfg.JWT.RSAKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read rsa key: %w", err)
		}
		key, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
		if err != nil {
			return nil, fmt.Errorf("parse rsa key: %w", err)
		}
		opts = append(opts, jwttoken.WithRSAKey(key))
	}
	return jwttoken.NewJWTService(cfg.Server.Issuer, []byte(cfg.JWT.SigningKey), opts...)
}
