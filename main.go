package main

import (
	"log"

	"Beacon/Config"
	"Beacon/CronJobs"
	"Beacon/FiberConfig"
	"Beacon/Models"
	"Beacon/Notifications"
	"Beacon/middleware"
)

func main() {
	cfg := Config.Load()
	middleware.SetSecret(cfg.JWTSecret)

	Models.Connect(cfg)

	// Push notifications degrade to no-ops when Firebase is unavailable.
	if err := Notifications.InitFirebase(cfg.FirebaseKeyFile); err != nil {
		log.Println("Failed to initialize Firebase:", err)
	}

	engine, roles := FiberConfig.BuildEngine(Models.DB, cfg)

	overdueChecker := CronJobs.NewOverdueChecker(engine, true)
	if err := overdueChecker.Start(); err != nil {
		log.Println("Failed to start overdue checker:", err)
	}
	defer overdueChecker.Stop()

	FiberConfig.FiberConfig(cfg, engine, roles)
}
