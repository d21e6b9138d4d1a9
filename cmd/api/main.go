package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"bookstore/internal/cache"
	"bookstore/internal/config"
	"bookstore/internal/domain/model"
	"bookstore/internal/handler"
	"bookstore/internal/imagestore"
	"bookstore/internal/infra/db"
	infraRepo "bookstore/internal/infra/repository"
	"bookstore/internal/logger"
	"bookstore/internal/mailer"
	"bookstore/internal/server"
	"bookstore/internal/usecase"
	"bookstore/internal/validator"
	"bookstore/internal/worker"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// .envは無くてもよい（本番は環境変数で渡す）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.GoEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//DB接続
	gormDB, err := db.Connect(cfg.DB, zl)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	rtRepo := infraRepo.NewRefreshTokenRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	bookRepo := infraRepo.NewBookGormRepository(gormDB)
	genreRepo := infraRepo.NewGenreGormRepository(gormDB)
	reviewRepo := infraRepo.NewReviewGormRepository(gormDB)
	profileRepo := infraRepo.NewProfileGormRepository(gormDB)
	subRepo := infraRepo.NewSubscriptionGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	tx := infraRepo.NewTxManagerGorm(gormDB)

	//外部サービス
	var mail mailer.Client = mailer.NewLogMailer(zl)
	if cfg.SMTP.Host != "" {
		mail = mailer.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.From, zl)
	}

	var images imagestore.Store = imagestore.NoopStore{}
	if cfg.CloudinaryURL != "" {
		cs, err := imagestore.NewCloudinaryStore(cfg.CloudinaryURL)
		if err != nil {
			return err
		}
		images = cs
	}

	//Usecase生成
	subUC := usecase.NewSubscriptionUsecase(subRepo, cfg.JWTSecret, cfg.SiteURL)
	notifier := worker.NewNewBookNotifier(subRepo, mail, subUC, cfg.SiteURL, 32, zl)
	cartSweeper := worker.NewSweeper("stale guest carts", cartRepo.DeleteStaleGuestCarts, cfg.GuestCartTTL, cfg.CartCleanupInterval, zl)
	tokenSweeper := worker.NewSweeper("expired refresh tokens", rtRepo.DeleteExpired, 0, cfg.CartCleanupInterval, zl)

	mergeUC := usecase.NewCartMergeUsecase(tx, zl)
	authUC := usecase.NewAuthUsecase(
		usecase.AuthConfig{
			JWTSecret:       cfg.JWTSecret,
			AccessTokenTTL:  cfg.AccessTokenTTL,
			RefreshTokenTTL: cfg.RefreshTokenTTL,
		},
		userRepo,
		rtRepo,
		tx,
		validator.NewAuthValidator(userRepo, validator.New()),
		mergeUC,
		zl,
	)
	cartUC := usecase.NewCartUsecase(tx)
	bookUC := usecase.NewBookUsecase(
		bookRepo,
		genreRepo,
		reviewRepo,
		auditRepo,
		tx,
		cache.NewTTLCache[[]model.Book](cfg.SearchCacheTTL),
		notifier,
		zl,
	)
	reviewUC := usecase.NewReviewUsecase(reviewRepo, bookRepo, userRepo)
	profileUC := usecase.NewProfileUsecase(profileRepo, userRepo, bookRepo, images, zl)

	//Handler生成
	e := server.New(cfg, zl, userRepo, server.Handlers{
		Auth:         handler.NewAuthHandler(authUC, cfg),
		Cart:         handler.NewCartHandler(cartUC),
		Book:         handler.NewBookHandler(bookUC),
		AdminBook:    handler.NewAdminBookHandler(bookUC),
		AdminUser:    handler.NewAdminUserHandler(authUC),
		Review:       handler.NewReviewHandler(reviewUC),
		Profile:      handler.NewProfileHandler(profileUC),
		Subscription: handler.NewSubscriptionHandler(subUC),
	})

	//worker起動
	workersDone := make(chan error, 1)
	go func() {
		workersDone <- worker.RunAll(ctx, cartSweeper, tokenSweeper, notifier)
	}()

	//Server起動
	addr := cfg.Port
	if addr != "" && addr[0] != ':' {
		addr = ":" + addr
	}
	serverErr := make(chan error, 1)
	go func() {
		zl.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.GoEnv))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	workersStopped := false
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		stop()
		return err
	case err := <-workersDone:
		workersStopped = true
		if err != nil {
			zl.Error("worker stopped", zap.Error(err))
		}
	}

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	stop()
	if !workersStopped {
		<-workersDone
	}
	return nil
}
