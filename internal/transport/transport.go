package transport

import (
	"net/http"
	"time"

	"github.com/ds124wfegd/railbook/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

// Handlers собирает обработчики всех групп маршрутов
type Handlers struct {
	Catalog   *CatalogHandler
	Checkout  *CheckoutHandler
	Booking   *BookingHandler
	Profile   *ProfileHandler
	User      *UserHandler
	Assistant *AssistantHandler
	Admin     *AdminHandler
}

func InitRoutes(h Handlers, verifier *middleware.TokenVerifier, timeout time.Duration) *gin.Engine {

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Authenticate(verifier))
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(timeout))

	// API routes
	api := router.Group("/api/v1")
	{
		// Catalog routes
		trains := api.Group("/trains")
		{
			trains.GET("", h.Catalog.SearchTrains)
			trains.GET("/:id", h.Catalog.GetTrain)
			trains.GET("/:id/layout", h.Catalog.GetLayout)
		}
		api.GET("/classes", h.Catalog.ListClasses)

		// Assistant routes
		assistant := api.Group("/assistant")
		{
			assistant.POST("/suggestions", h.Assistant.Suggest)
			assistant.POST("/chat", h.Assistant.Chat)
		}

		private := api.Group("", middleware.RequireIdentity())

		// Checkout routes
		checkouts := private.Group("/checkouts")
		{
			checkouts.POST("", h.Checkout.Start)
			checkouts.GET("/:id", h.Checkout.Get)
			checkouts.DELETE("/:id", h.Checkout.Abandon)
			checkouts.POST("/:id/seats/:seat_id/toggle", h.Checkout.ToggleSeat)
			checkouts.POST("/:id/proceed-to-passengers", h.Checkout.ProceedToPassengers)
			checkouts.POST("/:id/passengers", h.Checkout.AddPassenger)
			checkouts.DELETE("/:id/passengers/:index", h.Checkout.RemovePassenger)
			checkouts.POST("/:id/prefill", h.Checkout.Prefill)
			checkouts.POST("/:id/proceed-to-payment", h.Checkout.ProceedToPayment)
			checkouts.POST("/:id/back", h.Checkout.Back)
			checkouts.POST("/:id/confirm", h.Checkout.Confirm)
		}

		// Booking routes
		bookings := private.Group("/bookings")
		{
			bookings.GET("", h.Booking.ListBookings)
			bookings.GET("/stats", h.Booking.GetStats)
			bookings.GET("/:id", h.Booking.GetBooking)
			bookings.POST("/:id/cancel", h.Booking.CancelBooking)
			bookings.GET("/:id/ticket", h.Booking.DownloadTicket)
		}

		// Saved passenger routes
		profiles := private.Group("/profiles")
		{
			profiles.GET("", h.Profile.ListProfiles)
			profiles.POST("", h.Profile.CreateProfile)
			profiles.DELETE("/:id", h.Profile.DeleteProfile)
		}

		// User routes
		users := private.Group("/users")
		{
			users.GET("/me", h.User.GetMe)
			users.POST("/me/telegram", h.User.LinkTelegram)
		}

		// Admin routes
		adminQueue := private.Group("/admin/queue")
		{
			adminQueue.GET("", h.Admin.GetQueueOverview)
			adminQueue.GET("/dlq", h.Admin.ListFailedTasks)
			adminQueue.POST("/dlq/:task_id/requeue", h.Admin.RequeueFailedTask)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
		})
	})

	return router
}
