package router

import (
	"context"
	"net/http"

	"streampass/docs"
	"streampass/internal/api/v1/dto"
	"streampass/internal/api/v1/handler"
	"streampass/internal/config"
	"streampass/internal/lock"
	"streampass/internal/middleware"
	"streampass/internal/pubsub"
	"streampass/internal/repository"
	"streampass/internal/service"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/swaggo/swag"
)

// Closer releases the clients the router opened.
type Closer func()

func New(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (http.Handler, Closer, error) {
	logger.Info().Str("environment", cfg.Environment).Msg("Router initialized")
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// 1. Event lock
	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = rdb.Close() })
		locker = lock.NewRedisLocker(rdb, logger)
		logger.Info().Str("addr", cfg.RedisAddr).Msg("Using Redis event lock")
	}

	// 2. Pub/Sub publisher
	var publisher pubsub.Publisher = pubsub.NoopPublisher{}
	if cfg.GCPProjectID != "" {
		p, err := pubsub.NewPublisher(ctx, cfg)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = p.Close() })
		publisher = p
	} else {
		logger.Info().Msg("GCP_PROJECT_ID not set, subscription changes are not published")
	}
	notifier := pubsub.NewSubscriptionNotifier(publisher, cfg.PubSubSubscriptionTopic, logger)

	// 3. Media storage
	var mediaSvc service.MediaService
	if cfg.VideosS3Bucket != "" {
		s3Client, err := newS3Client(ctx, cfg)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		mediaSvc = service.NewMediaService(s3Client, cfg.VideosS3Bucket, logger)
	}

	// 4. Repositories, services and handlers
	userRepo := repository.NewUserRepo(pool)
	webhookLogRepo := repository.NewWebhookLogRepo(pool)

	authSvc := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpiresIn, logger)
	subSvc := service.NewSubscriptionService(userRepo, logger)
	stripeClient := service.NewStripeClient(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	stripeSvc := service.NewStripeService(cfg, stripeClient, userRepo, webhookLogRepo, subSvc, locker, notifier, logger)

	validate := dto.NewValidator()
	authHandler := handler.NewAuthHandler(authSvc, validate, logger)
	stripeHandler := handler.NewStripeHandler(stripeSvc, logger)
	mediaHandler := handler.NewMediaHandler(mediaSvc, cfg.VideosDir, logger)

	authMiddleware := middleware.AuthMiddleware(authSvc, logger)

	// 5. Routes
	mux := http.NewServeMux()
	authHandler.RegisterRoutes(mux, authMiddleware)
	stripeHandler.RegisterRoutes(mux, authMiddleware)
	mediaHandler.RegisterRoutes(mux)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(doc))
	})

	// 6. CORS
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		Debug:          false,
	})

	return middleware.LoggerMiddleware(logger)(c.Handler(mux)), closeAll, nil
}

func newS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")))
	}
	s3Config, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(s3Config, func(o *s3.Options) {
		if cfg.S3URL != "" {
			o.BaseEndpoint = aws.String(cfg.S3URL)
			o.UsePathStyle = true
		}
	}), nil
}

// removeDisableGzip is a workaround for S3 signature errors with some S3-compatible services.
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
