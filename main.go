package main

import (
	"context"
	"log"
	"time"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"google.golang.org/api/option"

	"github.com/dormside/dormside/config"
	"github.com/dormside/dormside/db"
	"github.com/dormside/dormside/server"
	"github.com/dormside/dormside/server/ws"
	"github.com/dormside/dormside/services"
)

const (
	archiveSweepInterval = 24 * time.Hour
	archiveAfter         = 90 * 24 * time.Hour
	purgeAfter           = 365 * 24 * time.Hour
)

func main() {
	conf, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	gormDB := db.GetDB(conf)
	rdb := db.GetRedisClient(conf)

	authRepo := db.NewAuthRepo(gormDB)
	conversationRepo := db.NewConversationRepo(gormDB)
	messageRepo := db.NewMessageRepo(gormDB)

	authService := services.NewAuthService(authRepo, conf)
	filterService := services.NewContentFilterService()
	rateLimitService := services.NewRateLimitService(rdb)
	presenceService := services.NewPresenceService(rdb, authRepo)
	notificationService := services.NewNotificationService(firebaseMessaging(conf))

	hub := ws.NewHub(rdb)
	authenticator := ws.NewAuthenticator(conf.JWTSecret, authRepo)

	go sweepConversations(conversationRepo)

	s := &server.Server{
		Config:                 conf,
		AuthRepository:         authRepo,
		ConversationRepository: conversationRepo,
		MessageRepository:      messageRepo,
		AuthService:            authService,
		ContentFilter:          filterService,
		RateLimitService:       rateLimitService,
		PresenceService:        presenceService,
		NotificationService:    notificationService,
		Hub:                    hub,
		Authenticator:          authenticator,
		DB:                     *gormDB,
	}
	s.Start()
}

// firebaseMessaging builds the FCM client when credentials are configured,
// nil otherwise. Push notifications are optional.
func firebaseMessaging(conf *config.Config) *messaging.Client {
	if conf.GoogleApplicationCredentials == "" {
		log.Println("No firebase credentials configured, push notifications disabled")
		return nil
	}

	ctx := context.Background()
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(conf.GoogleApplicationCredentials))
	if err != nil {
		log.Printf("Error initializing firebase app: %v", err)
		return nil
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		log.Printf("Error initializing firebase messaging: %v", err)
		return nil
	}
	return client
}

// sweepConversations archives long-idle conversations and purges archived
// ones past retention, once a day.
func sweepConversations(repo db.ConversationRepository) {
	ticker := time.NewTicker(archiveSweepInterval)
	defer ticker.Stop()

	for range ticker.C {
		archived, err := repo.ArchiveInactive(archiveAfter)
		if err != nil {
			log.Printf("Archive sweep error: %v", err)
		} else if archived > 0 {
			log.Printf("Archived %d inactive conversations", archived)
		}

		purged, err := repo.PurgeArchived(purgeAfter)
		if err != nil {
			log.Printf("Purge sweep error: %v", err)
		} else if purged > 0 {
			log.Printf("Purged %d archived conversations", purged)
		}
	}
}
