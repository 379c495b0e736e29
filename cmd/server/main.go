package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/plateful/recipe-feed/internal/cache"
	"github.com/plateful/recipe-feed/internal/config"
	"github.com/plateful/recipe-feed/internal/database"
	"github.com/plateful/recipe-feed/internal/draft"
	"github.com/plateful/recipe-feed/internal/handlers"
	"github.com/plateful/recipe-feed/internal/middleware"
	"github.com/plateful/recipe-feed/internal/pipeline"
	"github.com/plateful/recipe-feed/internal/services"
)

func main() {
	// Load .env file if it exists
	godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Core state: per-user draft sessions and the read caches the
	// submission pipeline reconciles
	drafts := draft.NewStore()
	caches := cache.New()
	reconciler := cache.NewReconciler(caches)

	// Photo storage is optional; without it drafts simply have no photos
	var storage *services.Storage
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		storage, err = services.NewStorage(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3Region, cfg.S3UseSSL)
		if err != nil {
			log.Printf("Warning: failed to initialize photo storage: %v", err)
			storage = nil
		} else if err := storage.EnsureBucket(context.Background()); err != nil {
			log.Printf("Warning: failed to ensure photo bucket exists: %v", err)
		}
	} else {
		log.Println("S3 credentials not configured, photo upload disabled")
	}

	// Food lookup is optional; without it ingredients must arrive with
	// their macro snapshot already filled in
	var food *services.FoodAPI
	if cfg.FoodAPIID != "" && cfg.FoodAPIKey != "" {
		food = services.NewFoodAPI(cfg.FoodAPIID, cfg.FoodAPIKey)
	} else {
		log.Println("Food API credentials not configured, food lookup disabled")
	}

	// PhotoStore must be untyped nil when storage is absent, a typed nil
	// would pass the pipeline's nil check
	var photos pipeline.PhotoStore
	if storage != nil {
		photos = storage
	}
	submit := pipeline.New(drafts, db, photos, reconciler)

	h := handlers.New(db, cfg, drafts, caches, submit, food, storage)

	// Card import needs a working tesseract install; keep it opt-in
	var importHandler *handlers.ImportHandler
	if cfg.PhotoImportEnabled {
		ocrService, err := services.NewOCRService()
		if err != nil {
			log.Printf("Warning: failed to initialize OCR service: %v", err)
		} else {
			defer ocrService.Close()
			importHandler = handlers.NewImportHandler(drafts, ocrService, services.NewCardParser())
			log.Println("Recipe card import initialized")
		}
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// API routes
	api := app.Group("/api")

	// Auth routes (public)
	auth := api.Group("/auth")
	auth.Post("/register", h.Register)
	auth.Post("/login", h.Login)
	auth.Get("/me", middleware.AuthRequired(cfg), h.GetCurrentUser)
	auth.Post("/refresh", middleware.AuthRequired(cfg), h.RefreshToken)

	// Recipe routes (public read)
	recipes := api.Group("/recipes")
	recipes.Get("/", h.ListRecipes)
	recipes.Get("/mine", middleware.AuthRequired(cfg), h.ListMyRecipes)
	recipes.Get("/mine/count", middleware.AuthRequired(cfg), h.GetRecipesPerUser)
	recipes.Get("/:id", h.GetRecipe)

	// Favorites (authenticated)
	favorites := api.Group("/favorites", middleware.AuthRequired(cfg))
	favorites.Get("/", h.ListFavorites)
	favorites.Post("/:id", h.AddFavorite)
	favorites.Delete("/:id", h.RemoveFavorite)

	// Draft composition routes (authenticated)
	drafting := api.Group("/draft", middleware.AuthRequired(cfg))
	drafting.Get("/", h.GetDraft)
	drafting.Post("/new", h.BeginDraft)
	drafting.Post("/edit/:id", h.BeginEditDraft)
	drafting.Put("/info", h.SetDraftInfo)
	drafting.Post("/ingredients", h.AddDraftIngredient)
	drafting.Put("/ingredients", h.EditDraftIngredient)
	drafting.Delete("/ingredients", h.RemoveDraftIngredient)
	drafting.Put("/steps", h.SetDraftSteps)
	drafting.Put("/step", h.EditDraftStep)
	drafting.Delete("/step", h.RemoveDraftStep)
	drafting.Get("/nutrition", h.GetDraftNutrition)
	drafting.Post("/photo", h.StageDraftPhoto)
	drafting.Delete("/photo", h.ClearDraftPhoto)
	drafting.Post("/reset", h.ResetDraft)
	drafting.Post("/submit", h.SubmitDraft)

	// Card import (authenticated, only when OCR is available)
	if importHandler != nil {
		drafting.Post("/import", importHandler.ImportCard)
	}

	// Food lookup routes (authenticated)
	foodGroup := api.Group("/food", middleware.AuthRequired(cfg))
	foodGroup.Get("/search", h.SearchFood)
	foodGroup.Get("/macros", h.GetFoodMacros)

	log.Printf("Server starting on port %s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
