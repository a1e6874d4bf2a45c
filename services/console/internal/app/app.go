package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"adminconsole/internal/ratelimit"
	"adminconsole/internal/usertoken"
	"adminconsole/pkg/domain"
	"adminconsole/pkg/storage"
	"adminconsole/pkg/store"
	"adminconsole/services/console/internal/apiclient"
	"adminconsole/services/console/internal/catalog"
	"adminconsole/services/console/internal/forum"
	"adminconsole/services/console/internal/gate"
	"adminconsole/services/console/internal/metrics"
	"adminconsole/services/console/internal/notify"
	"adminconsole/services/console/internal/resource"
	"adminconsole/services/console/internal/session"
	"adminconsole/services/console/internal/upload"
)

// Config holds runtime configuration for the console core.
type Config struct {
	APIBaseURL string
	APITimeout time.Duration

	PageSize       int
	SearchDebounce time.Duration
	DiscardStale   bool
	ToastTTL       time.Duration
	LoginPath      string

	SessionBackend       string
	SessionPath          string
	SessionNamespace     string
	SessionEncryptionKey string
	CheckTokenExpiry     bool
	DatabaseURL          string
	RedisAddr            string
	RedisPassword        string
	RedisPrefix          string

	LoginRateLimitPerMinute int

	UploadBackend string
	Minio         storage.MinioConfig

	AMQPURL      string
	AMQPExchange string

	Resources []catalog.Definition

	// KV replaces the configured session backend.
	KV         store.KV
	HTTPClient *http.Client
	Sinks      []notify.Sink
	Logger     *slog.Logger
}

// App wires the session, gate, toast channel and list pages together.
type App struct {
	Session *session.Store
	Gate    *gate.Gate
	Toasts  *notify.Center
	API     *apiclient.Client
	Forum   *forum.Forum
	Catalog *catalog.Catalog
	Metrics *metrics.Metrics

	logger  *slog.Logger
	limiter *ratelimit.FixedWindowLimiter
	closers []io.Closer
}

// New constructs the console. The session is left loading; call
// Session.Initialize once the surface is up.
func New(ctx context.Context, cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{logger: logger, Metrics: metrics.New()}

	kv := cfg.KV
	if kv == nil {
		var err error
		if kv, err = OpenKV(cfg); err != nil {
			return nil, err
		}
	}
	a.closers = append(a.closers, kv)

	var sessionOpts []session.Option
	sessionOpts = append(sessionOpts, session.WithLogger(logger))
	if cfg.CheckTokenExpiry {
		sessionOpts = append(sessionOpts, session.WithExpiryCheck(usertoken.NewInspector(0)))
	}
	a.Session = session.New(kv, sessionOpts...)
	a.Gate = gate.New(a.Session, gate.WithLoginPath(cfg.LoginPath), gate.WithLogger(logger))

	sinks := append([]notify.Sink{notify.LogSink{Logger: logger}, a.Metrics.ToastSink()}, cfg.Sinks...)
	if strings.TrimSpace(cfg.AMQPURL) != "" {
		amqpSink, err := notify.NewAMQPSink(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			a.Close()
			return nil, err
		}
		sinks = append(sinks, amqpSink)
		a.closers = append(a.closers, amqpSink)
	}
	a.Toasts = notify.NewCenter(notify.WithTTL(cfg.ToastTTL), notify.WithSinks(sinks...), notify.WithLogger(logger))

	a.API = apiclient.New(apiclient.Config{
		BaseURL:    cfg.APIBaseURL,
		Timeout:    cfg.APITimeout,
		Tokens:     a.Session,
		Observer:   a.Metrics,
		HTTPClient: cfg.HTTPClient,
	})

	uploader, err := newUploader(ctx, cfg, a.API)
	if err != nil {
		a.Close()
		return nil, err
	}

	listOpts := []resource.Option{resource.WithDebounce(cfg.SearchDebounce)}
	if cfg.DiscardStale {
		listOpts = append(listOpts, resource.WithDiscardStale())
	}
	a.Forum = forum.New(forum.Config{
		API:         a.API,
		Notifier:    a.Toasts,
		Uploader:    uploader,
		Session:     a.Session,
		PageSize:    cfg.PageSize,
		Observer:    a.Metrics,
		Logger:      logger,
		ListOptions: listOpts,
	})

	defs := cfg.Resources
	if len(defs) == 0 {
		defs = catalog.DefaultDefinitions()
	}
	a.Catalog, err = catalog.New(defs, func(path string) catalog.RecordAPI {
		return a.API.Records(path)
	}, catalog.Config{
		Notifier:    a.Toasts,
		PageSize:    cfg.PageSize,
		Observer:    a.Metrics,
		Logger:      logger,
		ListOptions: listOpts,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.LoginRateLimitPerMinute > 0 {
		a.limiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "", cfg.LoginRateLimitPerMinute, time.Minute)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init login rate limiter: %w", err)
		}
		a.closers = append(a.closers, a.limiter)
	}
	return a, nil
}

func newUploader(ctx context.Context, cfg Config, api *apiclient.Client) (upload.Uploader, error) {
	if !strings.EqualFold(cfg.UploadBackend, "minio") {
		return upload.NewAPI(api), nil
	}
	objects, err := storage.NewMinioStore(ctx, cfg.Minio)
	if err != nil {
		return nil, fmt.Errorf("init object store: %w", err)
	}
	return upload.NewObject(objects, "forum"), nil
}

// Login exchanges credentials with the API and stores the session.
func (a *App) Login(ctx context.Context, email, password string) (domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		a.Toasts.Error("Email dan password wajib diisi")
		return domain.User{}, ErrMissingCredentials
	}
	// The API receives the address as typed; only the limiter key is folded.
	if a.limiter != nil && !a.limiter.Allow(ctx, strings.ToLower(email)) {
		a.Metrics.ObserveLogin("rate_limited")
		a.Toasts.Error("Terlalu banyak percobaan masuk, coba lagi nanti")
		return domain.User{}, ErrRateLimited
	}

	var user domain.User
	err := resource.Run(ctx, a.Toasts, resource.Messages{
		Pending: "Masuk...",
		Success: "Berhasil masuk",
		Failure: "Login gagal",
	}, func(ctx context.Context) error {
		res, err := a.API.Login(ctx, email, password)
		if err != nil {
			return err
		}
		user = res.User
		return a.Session.Login(ctx, res.Token, res.User)
	})
	if err != nil {
		a.Metrics.ObserveLogin("fail")
		return domain.User{}, err
	}
	a.Metrics.ObserveLogin("ok")
	return user, nil
}

// RetryAfter reports when a rate-limited login may be retried.
func (a *App) RetryAfter() time.Duration {
	if a.limiter == nil {
		return 0
	}
	return a.limiter.RetryAfter()
}

// Logout ends the session. There is no server-side logout call.
func (a *App) Logout(ctx context.Context) {
	a.Session.Logout(ctx)
	a.Toasts.Success("Berhasil keluar")
}

// UpdateProfile saves the signed-in user's profile remotely, then patches the
// session profile. The token is untouched.
func (a *App) UpdateProfile(ctx context.Context, in apiclient.ProfileInput) (domain.User, error) {
	current := a.Session.Snapshot()
	if !current.Authenticated() {
		return domain.User{}, session.ErrNotAuthenticated
	}
	var updated domain.User
	err := resource.Run(ctx, a.Toasts, resource.Messages{
		Pending: "Menyimpan profil...",
		Success: "Profil diperbarui",
		Failure: "Gagal memperbarui profil",
	}, func(ctx context.Context) error {
		user, err := a.API.UpdateMe(ctx, in)
		if err != nil {
			return err
		}
		if user.ID == "" {
			user = mergeProfile(*current.Profile, in)
		}
		updated = user
		return a.Session.UpdateProfile(ctx, user)
	})
	if err != nil {
		return domain.User{}, err
	}
	return updated, nil
}

// mergeProfile applies in to p for APIs that answer an update without a body.
func mergeProfile(p domain.User, in apiclient.ProfileInput) domain.User {
	if in.Name != "" {
		p.Name = in.Name
	}
	if in.Email != "" {
		p.Email = in.Email
	}
	return p
}

// Close releases storage and broker connections.
func (a *App) Close() error {
	if a.Gate != nil {
		a.Gate.Close()
	}
	if a.Forum != nil {
		a.Forum.Close()
	}
	if a.Catalog != nil {
		a.Catalog.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
