package main

import (
	"context"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"campusmarket/cache"
	"campusmarket/chat"
	"campusmarket/checkout"
	"campusmarket/config"
	"campusmarket/controllers"
	"campusmarket/database"
	"campusmarket/mailer"
	"campusmarket/models"
	"campusmarket/routes"
)

func main() {

	config.LoadEnv()

	database.ConnectMongo()
	database.InitCollections()
	database.EnsureIndexes()

	ctx := context.Background()
	database.ConnectFirebase(ctx)
	defer database.CloseFirebase()

	controllers.Mail = mailer.New(
		config.GetEnv("SENDGRID_API_KEY", ""),
		config.GetEnv("MAIL_FROM", "noreply@campusmarket.local"),
	)

	userStore := &database.MongoUserStore{Col: database.UserCollection}
	productStore := &database.MongoProductStore{Col: database.ProductCollection}
	attemptLedger := &database.MongoAttemptLedger{Col: database.AttemptCollection}
	chatStore := chat.NewFirebaseStore(database.RTDB, database.Firestore)

	// Display names: prefer the approved storefront name for sellers, fall
	// back to the account name.
	nameCache := cache.New(func(ctx context.Context, userID string) (string, string, error) {
		user, err := userStore.GetUser(ctx, userID)
		if err != nil {
			return "", "", err
		}
		if user == nil {
			return "", "", nil
		}
		if user.Role == models.RoleSeller {
			if storeName, err := database.SellerDisplayName(ctx, userID); err == nil && storeName != "" {
				return storeName, user.Role, nil
			}
		}
		return user.Name, user.Role, nil
	}, cache.DefaultTTL, cache.DefaultSweepInterval)
	defer nameCache.Stop()

	notifier := &checkout.Notifier{
		Users:    userStore,
		Products: productStore,
		Attempts: attemptLedger,
		Chat:     chatStore,
		Names:    nameCache,
	}
	chatSvc := &chat.Service{Store: chatStore, Names: nameCache}

	r := gin.Default()
	r.SetTrustedProxies(nil)

	allowedOrigins := strings.Split(config.GetEnv("CORS_ORIGINS", "http://localhost:3000"), ",")
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "If-None-Match"},
		ExposeHeaders:    []string{"ETag"},
		AllowCredentials: true,
	}))

	routes.RegisterRoutes(r,
		&controllers.ChatController{Svc: chatSvc, Cache: nameCache},
		&controllers.CheckoutController{Runner: notifier},
	)

	port := config.GetEnv("PORT", "8080")
	r.Run(":" + port)
}
