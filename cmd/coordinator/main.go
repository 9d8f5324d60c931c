// cmd/coordinator/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/unclebandit/chatleopard-backend/internal/controller"
	"github.com/unclebandit/chatleopard-backend/internal/db"
	"github.com/unclebandit/chatleopard-backend/internal/handler"
	"github.com/unclebandit/chatleopard-backend/internal/model"
	"github.com/unclebandit/chatleopard-backend/internal/queue"
	"github.com/unclebandit/chatleopard-backend/internal/repository"
	"github.com/unclebandit/chatleopard-backend/internal/service"
	"github.com/unclebandit/chatleopard-backend/internal/transport"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	zl, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer zl.Sync()
	logger := zl.Sugar()

	// Init DB
	if err := db.Init(); err != nil {
		logger.Fatalw("database init failed", "error", err)
	}

	bus := queue.NewInMemoryQueue()

	contactRepo := &repository.ContactRepository{DB: db.DB}
	dncRepo := &repository.DNCRepository{DB: db.DB}
	dripRepo := &repository.DripRepository{DB: db.DB}
	wakeRepo := &repository.WakeRepository{DB: db.DB}
	meetingRepo := &repository.MeetingRepository{DB: db.DB}
	kvRepo := &repository.KVRepository{DB: db.DB}

	analyticsStore := &repository.AnalyticsStore{KV: kvRepo}
	settingsStore := &repository.SettingsStore{KV: kvRepo}

	var assist service.OptionalAssist = service.NoAssist{}
	if url := os.Getenv("ASSIST_URL"); url != "" {
		assist = &service.HTTPAssist{
			BaseURL: url,
			APIKey:  os.Getenv("ASSIST_API_KEY"),
			Log:     logger,
		}
	}

	var amqpPub *queue.AMQPPublisher
	if url := os.Getenv("AMQP_URL"); url != "" {
		amqpPub = &queue.AMQPPublisher{URL: url, QueueName: envOr("AMQP_QUEUE", "chatleopard_events")}
	}

	notifier := &service.Notifier{
		Settings: settingsStore,
		AMQP:     amqpPub,
		Bus:      bus,
		Log:      logger,
	}

	tcfg := transport.DefaultConfig()
	if url := os.Getenv("TARGET_URL"); url != "" {
		tcfg.TargetURL = url
	}
	tcfg.DebuggerURL = os.Getenv("DEBUGGER_URL")
	tcfg.Headless = os.Getenv("HEADLESS") == "true"
	trans := transport.New(tcfg, logger)
	defer trans.Close()

	complianceService := &service.ComplianceService{
		DNCRepo:     dncRepo,
		ContactRepo: contactRepo,
		Settings:    settingsStore,
		Assist:      assist,
		Log:         logger,
	}

	sendPath := &service.SendPath{
		Transport:   trans,
		Compliance:  complianceService,
		ContactRepo: contactRepo,
		Assist:      assist,
		Log:         logger,
	}

	scheduler := &service.Scheduler{
		Wakes:    wakeRepo,
		Interval: time.Second,
		Log:      logger,
	}

	campaignService := &service.CampaignService{
		Send:      sendPath,
		Analytics: analyticsStore,
		KV:        kvRepo,
		Settings:  settingsStore,
		Notifier:  notifier,
		Bus:       bus,
		Log:       logger,
	}

	dripService := &service.DripService{
		DripRepo:    dripRepo,
		ContactRepo: contactRepo,
		Compliance:  complianceService,
		Scheduler:   scheduler,
		Send:        sendPath,
		Log:         logger,
	}

	messagingService := &service.MessagingService{
		Send:        sendPath,
		Transport:   trans,
		ContactRepo: contactRepo,
		Compliance:  complianceService,
		Analytics:   analyticsStore,
		Settings:    settingsStore,
		KV:          kvRepo,
		Assist:      assist,
		Notifier:    notifier,
		Bus:         bus,
		Log:         logger,
	}

	reminderService := &service.ReminderService{
		ContactRepo: contactRepo,
		MeetingRepo: meetingRepo,
		Analytics:   analyticsStore,
		Settings:    settingsStore,
		Scheduler:   scheduler,
		Send:        sendPath,
		Campaigns:   campaignService,
		Notifier:    notifier,
		Log:         logger,
	}

	// Wake handlers fire for rows the durable scheduler pulls due.
	scheduler.Handle(model.WakeDripStep, dripService.HandleWake)
	scheduler.Handle(model.WakeFollowUp, reminderService.HandleFollowUpWake)
	scheduler.Handle(model.WakeBirthday, reminderService.HandleBirthdayWake)
	scheduler.Handle(model.WakeDailyDigest, reminderService.HandleDigestWake)
	scheduler.Handle(model.WakeMeetingAlert, reminderService.HandleMeetingWake)
	scheduler.Handle(model.WakeCampaignStart, reminderService.HandleCampaignStartWake)
	reminderService.EnsureDailyLoops()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go scheduler.Run(ctx)

	campaignController := &controller.CampaignController{
		CampaignService: campaignService,
		ReminderService: reminderService,
		Bus:             bus,
	}
	dripController := &controller.DripController{DripService: dripService}
	dncController := &controller.DNCController{DNCRepo: dncRepo}
	messagingController := &controller.MessagingController{MessagingService: messagingService}

	contactHandler := handler.NewContactHandler(contactRepo, reminderService)
	settingsHandler := handler.NewSettingsHandler(settingsStore, notifier)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsStore)
	meetingHandler := handler.NewMeetingHandler(reminderService)
	pinnedHandler := handler.NewPinnedHandler(messagingService)

	r := chi.NewRouter()

	// Campaign routes
	r.Post("/campaigns/start", campaignController.StartCampaign)
	r.Post("/campaigns/stop", campaignController.StopCampaign)
	r.Get("/campaigns/status", campaignController.Status)
	r.Post("/campaigns/schedule", campaignController.ScheduleCampaign)
	r.Get("/campaigns/events", campaignController.Events)

	// Drip routes
	r.Post("/drips", dripController.SaveSequence)
	r.Get("/drips", dripController.ListSequences)
	r.Delete("/drips/{id}", dripController.DeleteSequence)
	r.Post("/drips/{id}/enroll", dripController.Enroll)
	r.Post("/drips/{id}/unenroll", dripController.Unenroll)

	// DNC routes
	r.Get("/dnc", dncController.List)
	r.Post("/dnc", dncController.Add)
	r.Delete("/dnc/{phone}", dncController.Remove)
	r.Delete("/dnc", dncController.Clear)

	// Messaging routes
	r.Post("/send", messagingController.QuickSend)
	r.Post("/replies/scan", messagingController.ScanReplies)
	r.Post("/replies/send", messagingController.SendReply)
	r.Post("/watcher/start", messagingController.StartWatcher)
	r.Post("/watcher/stop", messagingController.StopWatcher)
	r.Post("/assist/transcribe", messagingController.Transcribe)
	r.Post("/assist/translate", messagingController.Translate)

	// Contact routes
	r.Get("/contacts", contactHandler.ListContactsHandler)
	r.Post("/contacts", contactHandler.UpsertContactHandler)
	r.Get("/contacts/{phone}", contactHandler.GetContactHandler)
	r.Put("/contacts/{phone}/stage", contactHandler.UpdateStageHandler)
	r.Put("/contacts/{phone}/follow-up", contactHandler.SetFollowUpHandler)
	r.Delete("/contacts/{phone}/follow-up", contactHandler.ClearFollowUpHandler)

	// Meeting routes
	r.Post("/meetings", meetingHandler.CreateMeetingHandler)
	r.Get("/meetings", meetingHandler.ListMeetingsHandler)
	r.Delete("/meetings/{id}", meetingHandler.DeleteMeetingHandler)

	// Settings, analytics, pinned chats
	r.Get("/settings", settingsHandler.GetSettingsHandler)
	r.Put("/settings", settingsHandler.SaveSettingsHandler)
	r.Post("/settings/webhook-test", settingsHandler.TestWebhookHandler)
	r.Get("/analytics", analyticsHandler.GetAnalyticsHandler)
	r.Delete("/analytics", analyticsHandler.ClearAnalyticsHandler)
	r.Get("/pinned", pinnedHandler.GetPinnedChatsHandler)
	r.Put("/pinned", pinnedHandler.SavePinnedChatsHandler)

	port := envOr("PORT", "8080")
	srv := &http.Server{Addr: ":" + port, Handler: r}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Println("🚀 Coordinator running on :" + port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalw("server stopped", "error", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
