package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dormside/dormside/config"
	"github.com/dormside/dormside/db"
	"github.com/dormside/dormside/server/ws"
	"github.com/dormside/dormside/services"
)

// Server aggregates every collaborator the handlers need
type Server struct {
	Config                 *config.Config
	AuthRepository         db.AuthRepository
	ConversationRepository db.ConversationRepository
	MessageRepository      db.MessageRepository
	AuthService            services.AuthService
	ContentFilter          services.ContentFilterService
	RateLimitService       services.RateLimitService
	PresenceService        services.PresenceService
	NotificationService    services.NotificationService
	Hub                    *ws.Hub
	Authenticator          *ws.Authenticator
	DB                     db.GormDB
}

// Start runs the http server until SIGINT/SIGTERM, then drains in-flight
// requests for up to ten seconds.
func (s *Server) Start() {
	r := s.setupRouter()

	port := s.Config.Port
	if envPort := os.Getenv("PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}

	go func() {
		log.Printf("Server started on :%d", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}
	log.Println("Server exiting")
}
