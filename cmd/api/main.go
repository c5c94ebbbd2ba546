package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rs-labo46/ec-checkout/internal/config"
	"github.com/rs-labo46/ec-checkout/internal/domain/model"
	"github.com/rs-labo46/ec-checkout/internal/handler"
	"github.com/rs-labo46/ec-checkout/internal/infra/cache"
	"github.com/rs-labo46/ec-checkout/internal/infra/db"
	"github.com/rs-labo46/ec-checkout/internal/infra/events"
	"github.com/rs-labo46/ec-checkout/internal/infra/memory"
	"github.com/rs-labo46/ec-checkout/internal/infra/payment"
	infraRepo "github.com/rs-labo46/ec-checkout/internal/infra/repository"
	"github.com/rs-labo46/ec-checkout/internal/logging"
	"github.com/rs-labo46/ec-checkout/internal/metrics"
	repo "github.com/rs-labo46/ec-checkout/internal/repository"
	"github.com/rs-labo46/ec-checkout/internal/server"
	"github.com/rs-labo46/ec-checkout/internal/usecase"
)

type repositories struct {
	tx        repo.TransactionManager
	products  repo.ProductRepository
	carts     repo.CartRepository
	cartItems repo.CartItemRepository
	orders    repo.OrderRepository
	auditLogs repo.AuditLogRepository
}

func main() {
	//.envは無くてもよい（本番は環境変数）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger(cfg.ServiceName, cfg.GoEnv, cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := openRepositories(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open repositories", zap.Error(err))
	}

	m := metrics.New()

	//決済（タイムアウト＋サーキットブレーカー）
	gateway := payment.NewBreakerGateway(
		payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret),
		payment.DefaultBreakerSettings(cfg.PaymentTimeout),
		logger,
	)

	//webhookの重複チェック（任意）
	var deduper usecase.EventDeduper
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis not reachable; dedup falls back to database", zap.Error(err))
		}
		cancel()
		deduper = cache.NewRedisDeduper(rdb)
	}

	//注文イベント（任意）
	var publisher usecase.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() { _ = kp.Close() }()
		publisher = kp
	}

	//Usecase生成
	cartUC := usecase.NewCartUsecase(repos.carts, repos.cartItems, repos.products)
	checkoutUC := usecase.NewCheckoutUsecase(repos.tx, repos.carts, repos.cartItems, repos.products, repos.orders, gateway, cfg.PaymentCurrency, m)
	orderUC := usecase.NewOrderUsecase(repos.tx)
	webhookUC := usecase.NewWebhookUsecase(repos.tx, repos.orders, gateway, deduper, publisher, m)
	adminUC := usecase.NewAdminOrderUsecase(repos.tx, repos.auditLogs)

	//Handler生成
	e := server.New(cfg, logger, m, server.Handlers{
		Cart:       handler.NewCartHandler(cartUC),
		Order:      handler.NewOrderHandler(checkoutUC, orderUC),
		Webhook:    handler.NewWebhookHandler(webhookUC),
		AdminOrder: handler.NewAdminOrderHandler(adminUC),
	})

	addr := cfg.Port
	if addr[0] != ':' {
		addr = ":" + addr
	}
	if err := server.Start(ctx, e, addr, logger); err != nil {
		logger.Fatal("http server stopped", zap.Error(err))
	}
}

func openRepositories(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories, error) {
	if cfg.DBDriver == config.DBDriverMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		store := memory.NewStore()
		if err := seedProducts(ctx, store.Products()); err != nil {
			return repositories{}, err
		}
		return repositories{
			tx:        store,
			products:  store.Products(),
			carts:     store.Carts(),
			cartItems: store.CartItems(),
			orders:    store.Orders(),
			auditLogs: store.AuditLogs(),
		}, nil
	}

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return repositories{}, err
	}
	if err := db.Migrate(gormDB); err != nil {
		return repositories{}, err
	}

	//Repository（GORM実装）生成
	carts := infraRepo.NewCartGormRepository(gormDB)
	return repositories{
		tx:        infraRepo.NewTxManagerGorm(gormDB),
		products:  infraRepo.NewProductGormRepository(gormDB),
		carts:     carts,
		cartItems: carts,
		orders:    infraRepo.NewOrderGormRepository(gormDB),
		auditLogs: infraRepo.NewAuditLogGormRepository(gormDB),
	}, nil
}

// メモリ実行時だけ、動作確認用の商品を入れておく
func seedProducts(ctx context.Context, products repo.ProductRepository) error {
	for _, p := range []model.Product{
		{Name: "Coffee Beans 200g", Price: 1200, Stock: 50},
		{Name: "Drip Kettle", Price: 4800, Stock: 10},
		{Name: "Paper Filter x100", Price: 400, Stock: 200},
	} {
		if _, err := products.Create(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
