package main

import (
    "context"
    "log"
    "time"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"

    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/config"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/database"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/handler"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/model"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/notifier"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/payment"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/queue"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/realtime"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/repository"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/router"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/scheduler"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/seatlock"
)

func main() {
    // Load a local .env in development; ignore absence in production.
    _ = godotenv.Load()
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    rdb := config.NewRedisClient()
    if rdb == nil {
        // The seat lock store is the distributed mutex for seat
        // reservation; without it every hold would race.
        log.Fatal("redis: connection failed; seat locking cannot run without it")
    }

    trips := repository.NewTripRepo(db)
    seats := repository.NewSeatRepo(db)
    bookings := repository.NewBookingRepo(db)
    payments := repository.NewPaymentRepo(db)
    notifications := repository.NewNotificationRepo(db)

    locks := seatlock.New(rdb)
    events := realtime.New(rdb)

    dispatcher := notifier.New(
        notifications,
        notifier.NewAMQPSender(cfg.RabbitURL, model.ChannelEmail),
        notifier.NewAMQPSender(cfg.RabbitURL, model.ChannelSMS),
    )

    gateway := payment.NewGateway(payment.Config{
        BaseURL:     cfg.PaymentAPIURL,
        ClientID:    cfg.PaymentClientID,
        APIKey:      cfg.PaymentAPIKey,
        ChecksumKey: cfg.PaymentChecksumKey,
        ReturnURL:   cfg.PaymentReturnURL,
        CancelURL:   cfg.PaymentCancelURL,
    })
    reconciler := payment.NewReconciler(db, payments, bookings, gateway, locks, events, dispatcher)
    voider := payment.NewSessionVoider(payments, gateway)

    bookingHandler := handler.NewBookingHandler(trips, bookings, locks, events, voider, cfg.HoldWindow)
    paymentHandler := handler.NewPaymentHandler(bookings, payments, gateway, reconciler)
    seatHandler := handler.NewSeatHandler(trips, seats, bookings, locks, events)

    // Background automatons share one cancellation context; they are
    // safe to run alongside live traffic because every update they
    // issue is conditional on current state.
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    clock := scheduler.RealClock()
    tripJob := scheduler.NewTripStatusJob(trips)
    expiryJob := scheduler.NewExpiryJob(db, bookings, locks, events, voider)
    go scheduler.NewRunner("trip-status", time.Minute, clock, tripJob.Run).Start(ctx)
    go scheduler.NewRunner("booking-expiry", time.Minute, clock, expiryJob.Run).Start(ctx)
    go scheduler.NewRunner("reminders", time.Hour, clock, dispatcher.SendReminders).Start(ctx)
    go scheduler.NewRunner("notification-cleanup", 24*time.Hour, clock, func(ctx context.Context, now time.Time) error {
        n, err := dispatcher.Cleanup(ctx, now)
        if err == nil && n > 0 {
            log.Printf("scheduler: purged %d old notifications", n)
        }
        return err
    }).Start(ctx)

    // Provider end of the notification send contract.
    go func() {
        if err := queue.StartDispatchConsumer(); err != nil {
            log.Printf("notify-consumer: stopped: %v", err)
        }
    }()

    e := echo.New()
    router.RegisterRoutes(e, bookingHandler, paymentHandler, seatHandler, rdb, cfg.JWTSecret, cfg.RateLimitPerMin)

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env)
    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}
