package FiberConfig

import (
	"fmt"
	"strings"

	"Beacon/Config"
	"Beacon/Controllers"
	"Beacon/Gamification"
	"Beacon/Models"
	"Beacon/Notifications"
	"Beacon/Roles"
	"Beacon/TaskEngine"
	"Beacon/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// BuildEngine wires the role hierarchy, reward, event and push sinks into
// the task engine. Redis and Kafka are optional; a nil redis client skips
// caching and an empty broker list skips event publishing.
func BuildEngine(db *gorm.DB, cfg Config.Config) (*TaskEngine.Engine, *Roles.Service) {
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
	}
	roles := Roles.NewService(db, rdb)

	var events TaskEngine.EventSink
	if cfg.KafkaBrokers != "" {
		events = Notifications.NewKafkaSink(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaTopic)
	}

	dispatcher := &TaskEngine.Dispatcher{
		DB:      db,
		Events:  events,
		Push:    &Notifications.FCMSink{DB: db},
		Rewards: Gamification.NewService(db),
	}

	return TaskEngine.New(db, roles, dispatcher), roles
}

func SetupRoutes(app *fiber.App, db *gorm.DB, engine *TaskEngine.Engine, roles *Roles.Service) {
	// Initialize handlers
	authController := Controllers.NewAuthController(db)
	taskHandler := Controllers.NewTaskHandler(db, engine)
	roleHandler := Controllers.NewRoleHandler(db, roles)
	storeHandler := Controllers.NewStoreHandler(db)

	app.Post("/api/login", authController.Login)
	app.Post("/api/register", middleware.Protected(), middleware.TopRoleOnly(roles), authController.Register)
	app.Get("/api/user", middleware.Protected(), authController.User)
	app.Post("/api/logout", middleware.Protected(), authController.Logout)
	app.Post("/api/UpdateToken", middleware.Protected(), Models.UpdateToken)

	// Task routes
	tasks := app.Group("/api/tasks", middleware.Protected())
	tasks.Get("/", taskHandler.GetTasks)
	tasks.Post("/", middleware.HQOnly(), taskHandler.CreateTask)
	tasks.Get("/:id", taskHandler.GetTask)
	tasks.Post("/:id/stores/:storeId/start", taskHandler.StartAssignment)
	tasks.Post("/:id/stores/:storeId/complete", taskHandler.CompleteAssignment)

	// Verification routes
	assignments := app.Group("/api/assignments", middleware.Protected())
	assignments.Post("/:id/verify", taskHandler.VerifyAssignment)
	assignments.Post("/:id/reject", taskHandler.RejectAssignment)
	assignments.Get("/:id/history", taskHandler.AssignmentHistory)
	app.Get("/api/verifications/pending", middleware.Protected(), taskHandler.PendingVerifications)

	// Role administration
	roleRoutes := app.Group("/api/roles", middleware.Protected())
	roleRoutes.Get("/", roleHandler.GetRoles)
	roleRoutes.Post("/", middleware.TopRoleOnly(roles), roleHandler.CreateRole)
	roleRoutes.Put("/:id", middleware.TopRoleOnly(roles), roleHandler.UpdateRole)

	// Directory
	app.Get("/api/stores", middleware.Protected(), storeHandler.GetStores)
	app.Get("/api/regions", middleware.Protected(), storeHandler.GetRegions)
}

func FiberConfig(cfg Config.Config, engine *TaskEngine.Engine, roles *Roles.Service) {
	fmt.Println("Server Up...")
	app := fiber.New(fiber.Config{
		AppName: "Beacon",
	})
	app.Use(middleware.LoggingMiddleware())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestCompression,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With",
		AllowCredentials: true,
		MaxAge:           300,
	}))

	SetupRoutes(app, Models.DB, engine, roles)

	app.Listen(":" + cfg.Port)
}
