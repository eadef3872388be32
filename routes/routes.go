package routes

import (
	"github.com/gin-gonic/gin"

	"campusmarket/controllers"
	"campusmarket/middleware"
)

func RegisterRoutes(r *gin.Engine, chatCtl *controllers.ChatController, checkoutCtl *controllers.CheckoutController) {

	api := r.Group("/api")
	{
		api.POST("/register", controllers.Register)
		api.POST("/verify-email", controllers.VerifyEmail)
		api.POST("/login", controllers.Login)
		api.POST("/logout", controllers.Logout)

		api.GET("/products", controllers.GetProductsPublic)
		api.GET("/products/:id", controllers.GetProductPublic)

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			admin := protected.Group("/admin")
			admin.Use(middleware.AdminMiddleware())
			{
				admin.GET("/products", controllers.GetProductsAdmin)
				admin.DELETE("/products/:id", controllers.DeleteProductAdmin)

				admin.GET("/orders", controllers.GetOrdersAdmin)
				admin.GET("/orders/:id", controllers.GetOrderByIDAdmin)
				admin.PUT("/orders/:id/status", controllers.UpdateOrderStatus)
				admin.PUT("/orders/:id/cancel", controllers.CancelOrderAdmin)

				admin.GET("/seller-applications", controllers.GetSellerApplications)
				admin.PUT("/seller-applications/:id/approve", controllers.ApproveSeller)
				admin.PUT("/seller-applications/:id/reject", controllers.RejectSeller)

				admin.POST("/chats/clear-cache", chatCtl.ClearCache)
			}

			seller := protected.Group("/seller")
			seller.Use(middleware.SellerMiddleware())
			{
				seller.GET("/products", controllers.GetProductsSeller)
				seller.POST("/products", controllers.CreateProduct)
				seller.PUT("/products/:id", controllers.UpdateProduct)
				seller.DELETE("/products/:id", controllers.DeleteProduct)
			}

			user := protected.Group("/user")
			{
				user.GET("/profile", controllers.GetProfile)
				user.PUT("/profile", controllers.UpdateProfile)

				user.POST("/cart", controllers.AddToCart)
				user.GET("/cart", controllers.GetCart)
				user.PUT("/cart/:productId", controllers.UpdateCart)
				user.DELETE("/cart/:productId", controllers.RemoveFromCart)

				user.POST("/checkout", checkoutCtl.Notify)
				user.POST("/orders", controllers.PlaceOrder)
				user.GET("/orders", controllers.GetOrders)
				user.PUT("/orders/:id/cancel", controllers.CancelOrder)

				user.POST("/seller-application", controllers.ApplySeller)
				user.GET("/seller-application", controllers.GetMyApplication)

				user.GET("/chats/optimized", chatCtl.ListThreads)
				user.GET("/chats/thread/:threadId", chatCtl.ThreadMessages)
				user.POST("/chats/mark-read", chatCtl.MarkRead)
				user.GET("/chats/unread-count", chatCtl.UnreadCount)
			}
		}
	}
}
