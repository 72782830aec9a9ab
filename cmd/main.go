package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/veydev/autocare/internal/alerts"
	"github.com/veydev/autocare/internal/auth"
	"github.com/veydev/autocare/internal/db"
	"github.com/veydev/autocare/internal/diagnose"
	"github.com/veydev/autocare/internal/handlers"
	"github.com/veydev/autocare/internal/middleware"
	"github.com/veydev/autocare/internal/models"
	"github.com/veydev/autocare/internal/notify"
	"github.com/veydev/autocare/internal/obd"
	"github.com/veydev/autocare/internal/scheduler"
	"github.com/veydev/autocare/internal/settings"
	"github.com/veydev/autocare/internal/store"
)

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// evaluateUser builds the scheduled pipeline for one user: project the due
// state of every vehicle, rank it, and let the dispatcher decide whether a
// notification goes out.
func evaluateUser(
	users db.UserCollection,
	vehicles db.VehicleCollection,
	records db.MaintenanceCollection,
	settingsCol db.SettingsCollection,
	local *store.Store,
	dispatcher *notify.Dispatcher,
	onNotified func(userID, vehicleID string, ts time.Time),
) scheduler.EvaluateFunc {
	return func(ctx context.Context, userID string) error {
		user, err := users.FindUserByID(ctx, userID)
		if err != nil {
			return err
		}

		userSettings := settings.Resolve(ctx, settingsCol, local, userID)

		cursor, err := vehicles.FindVehicles(ctx, bson.M{"user_id": userID})
		if err != nil {
			return err
		}
		owned := []models.Vehicle{}
		if err := cursor.All(ctx, &owned); err != nil {
			cursor.Close(ctx)
			return err
		}
		cursor.Close(ctx)

		for i := range owned {
			vehicle := &owned[i]

			recCursor, err := records.FindRecords(ctx, bson.M{"user_id": userID, "vehicle_id": vehicle.ID.Hex()})
			if err != nil {
				log.WithError(err).WithField("vehicle_id", vehicle.ID.Hex()).Warn("Skipping vehicle, ledger unavailable")
				continue
			}
			recs := []models.MaintenanceRecord{}
			if err := recCursor.All(ctx, &recs); err != nil {
				recCursor.Close(ctx)
				log.WithError(err).WithField("vehicle_id", vehicle.ID.Hex()).Warn("Skipping vehicle, ledger unavailable")
				continue
			}
			recCursor.Close(ctx)

			now := time.Now()
			ranked := alerts.Rank(alerts.Project(recs, vehicle.Odometer, now), userSettings)

			sent, err := dispatcher.Notify(ctx, user, vehicle, ranked, userSettings)
			if err != nil {
				log.WithError(err).WithField("vehicle_id", vehicle.ID.Hex()).Warn("Notification dispatch failed")
				continue
			}
			if sent && onNotified != nil {
				onNotified(userID, vehicle.ID.Hex(), now)
			}
		}
		return nil
	}
}

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	if level, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(level)
	}

	client, err := db.ConnectMongo()
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	database := client.Database("autocare")

	users := &db.MongoUserCollection{Collection: database.Collection("users")}
	vehicles := &db.MongoVehicleCollection{Collection: database.Collection("vehicles")}
	records := &db.MongoMaintenanceCollection{Collection: database.Collection("maintenance")}
	settingsCol := &db.MongoSettingsCollection{Collection: database.Collection("settings")}
	dispatchCol := &db.MongoDispatchCollection{Collection: database.Collection("dispatch_state")}
	chats := &db.MongoChatCollection{Collection: database.Collection("chat_messages")}

	authService, err := auth.NewService()
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize auth service")
	}

	stateDir := os.Getenv("AUTOCARE_STATE_DIR")
	if stateDir == "" {
		stateDir = "."
	}
	local := store.Open(filepath.Join(stateDir, "autocare-state.json"))

	syncer := settings.NewSyncer(settings.DefaultDelay, func(ctx context.Context, userID string, s models.NotificationSettings) error {
		return settingsCol.UpsertSettings(ctx, userID, s)
	})
	defer syncer.Close()

	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	dispatcher := notify.NewDispatcher(notify.NewTelegramRelay(botToken), dispatchCol, local)

	cache := obd.NewCache()
	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		subscriber := obd.NewSubscriber(broker, cache)
		if err := subscriber.Start(); err != nil {
			log.WithError(err).Warn("OBD telemetry unavailable")
		} else {
			defer subscriber.Stop()
		}
	}

	var sched *scheduler.Scheduler
	sched = scheduler.New(evaluateUser(users, vehicles, records, settingsCol, local, dispatcher,
		func(userID, vehicleID string, ts time.Time) {
			sched.RecordNotification(userID, vehicleID, ts)
		}))
	sched.Start()
	defer sched.Stop()

	authHandler := handlers.NewAuthHandler(authService, users, botToken)
	vehicleHandler := handlers.NewVehicleHandler(vehicles)
	maintenanceHandler := handlers.NewMaintenanceHandler(records, vehicles, settingsCol, local)
	settingsHandler := handlers.NewSettingsHandler(settingsCol, local, syncer)
	diagnoseHandler := handlers.NewDiagnoseHandler(diagnose.NewClient(), chats)
	telemetryHandler := handlers.NewTelemetryHandler(cache, vehicles)
	statusHandler := handlers.NewStatusHandler(sched, syncer)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)

	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.HandleFunc("/api/auth/register", authHandler.Register)
	mux.HandleFunc("/api/auth/telegram", authHandler.TelegramAuth)
	mux.HandleFunc("/api/auth/demo", authHandler.DemoAuth)
	mux.HandleFunc("/api/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			authHandler.UpdateProfile(w, r)
			return
		}
		authHandler.GetProfile(w, r)
	})
	mux.HandleFunc("/api/auth/password", authHandler.ChangePassword)

	mux.HandleFunc("/api/vehicles", vehicleHandler.HandleVehicles)
	mux.HandleFunc("/api/maintenance", maintenanceHandler.HandleRecords)
	mux.HandleFunc("/api/maintenance/export", maintenanceHandler.ExportCSV)
	mux.HandleFunc("/api/alerts", maintenanceHandler.GetAlerts)
	mux.HandleFunc("/api/settings", settingsHandler.HandleSettings)
	mux.HandleFunc("/api/diagnose", diagnoseHandler.Diagnose)
	mux.HandleFunc("/api/diagnose/history", diagnoseHandler.HandleHistory)
	mux.HandleFunc("/api/telemetry", telemetryHandler.GetTelemetry)
	mux.HandleFunc("/api/cron/status", statusHandler.CronStatus)
	mux.HandleFunc("/api/cron/register", statusHandler.RegisterCron)
	mux.HandleFunc("/api/cron/unregister", statusHandler.UnregisterCron)

	authMiddleware := middleware.NewAuthMiddleware(authService)
	rateLimiter := middleware.NewRateLimitMiddleware()
	handler := rateLimiter.RateLimit(300, 60)(authMiddleware.Authenticate(mux))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.WithField("port", port).Info("HTTP server listening")
	log.Fatal(http.ListenAndServe(":"+port, handler))
}
