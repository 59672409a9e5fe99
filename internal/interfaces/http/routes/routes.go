// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/kg-components/storefront/internal/config"
	"github.com/kg-components/storefront/internal/interfaces/http/handlers"
	"github.com/kg-components/storefront/internal/interfaces/http/middleware"
	"github.com/sirupsen/logrus"
)

// Dependencies are what the storefront routes are built from
type Dependencies struct {
	Config      *config.Config
	Log         logrus.FieldLogger
	Storefronts middleware.Storefronts
	Contact     handlers.ContactSink
}

// SetupRoutes mounts every storefront page on rg. Each route runs against
// the visitor's storefront.
func SetupRoutes(rg *gin.RouterGroup, deps Dependencies) {
	rg.Use(middleware.Storefront(deps.Config, deps.Storefronts, deps.Log))

	SetupCatalogRoutes(rg, deps)
	SetupAuthRoutes(rg, deps)
	SetupCartRoutes(rg, deps)
	SetupOrderRoutes(rg, deps)
	SetupAdminRoutes(rg, deps)
	SetupPageRoutes(rg, deps)
}

// SetupCatalogRoutes sets up the home, shop and product pages
func SetupCatalogRoutes(rg *gin.RouterGroup, deps Dependencies) {
	catalogHandler := handlers.NewCatalogHandler(deps.Config)

	rg.GET("/", catalogHandler.Home)
	rg.GET("/shop", catalogHandler.Shop)
	rg.GET("/product/:id", catalogHandler.GetProduct)
}

// SetupAuthRoutes sets up the sign-in and account pages
func SetupAuthRoutes(rg *gin.RouterGroup, deps Dependencies) {
	authHandler := handlers.NewAuthHandler(deps.Config)

	auth := rg.Group("/auth")
	{
		auth.GET("", authHandler.GetSession)
		auth.POST("/sign-in", authHandler.SignIn)
		auth.POST("/sign-up", authHandler.SignUp)
		auth.POST("/sign-out", authHandler.SignOut)
	}

	account := rg.Group("/account")
	account.Use(middleware.RequireSession())
	{
		account.GET("", authHandler.GetAccount)
		account.PUT("", authHandler.UpdateAccount)
	}
}

// SetupCartRoutes sets up the cart and checkout
func SetupCartRoutes(rg *gin.RouterGroup, deps Dependencies) {
	cartHandler := handlers.NewCartHandler()
	orderHandler := handlers.NewOrderHandler(deps.Log)

	cart := rg.Group("/cart")
	cart.Use(middleware.RequireSession())
	{
		cart.GET("", cartHandler.GetCart)
		cart.POST("/items", cartHandler.AddToCart)
		cart.PUT("/items/:id", cartHandler.UpdateCartItem)
		cart.DELETE("/items/:id", cartHandler.RemoveFromCart)
		cart.DELETE("", cartHandler.ClearCart)
		cart.POST("/checkout", orderHandler.Checkout)
	}
}

// SetupOrderRoutes sets up the order history
func SetupOrderRoutes(rg *gin.RouterGroup, deps Dependencies) {
	orderHandler := handlers.NewOrderHandler(deps.Log)

	orders := rg.Group("/orders")
	orders.Use(middleware.RequireSession())
	{
		orders.GET("", orderHandler.GetOrders)
		orders.GET("/:id", orderHandler.GetOrder)
		orders.POST("/:id/cancel", orderHandler.CancelOrder)
	}
}

// SetupAdminRoutes sets up the admin dashboard
func SetupAdminRoutes(rg *gin.RouterGroup, deps Dependencies) {
	orderHandler := handlers.NewOrderHandler(deps.Log)

	admin := rg.Group("/admin")
	admin.Use(middleware.RequireAdmin(deps.Log))
	{
		admin.GET("", orderHandler.AdminDashboard)

		orders := admin.Group("/orders")
		{
			orders.GET("", orderHandler.AdminGetOrders)
			orders.PUT("/:id/status", orderHandler.AdminUpdateStatus)
			orders.POST("/:id/invoice", orderHandler.AdminSendInvoice)
			orders.POST("/:id/payment", orderHandler.AdminConfirmPayment)
		}

		admin.GET("/users", orderHandler.AdminGetUsers)
	}
}

// SetupPageRoutes sets up the static and contact pages
func SetupPageRoutes(rg *gin.RouterGroup, deps Dependencies) {
	pageHandler := handlers.NewPageHandler(deps.Config, deps.Contact)

	rg.GET("/about", pageHandler.About)
	rg.GET("/contact", pageHandler.Contact)
	rg.POST("/contact", pageHandler.SubmitContact)
}
