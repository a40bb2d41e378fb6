package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/askhat-b/MentorLink/internal/assistant"
	"github.com/askhat-b/MentorLink/internal/config"
	"github.com/askhat-b/MentorLink/internal/database"
	"github.com/askhat-b/MentorLink/internal/dispatcher"
	"github.com/askhat-b/MentorLink/internal/handlers"
	"github.com/askhat-b/MentorLink/internal/jobs"
	"github.com/askhat-b/MentorLink/internal/repository"
	cronjobs "github.com/askhat-b/MentorLink/internal/scheduler"
	"github.com/askhat-b/MentorLink/internal/services"
	"github.com/askhat-b/MentorLink/pkg/logger"
	"github.com/askhat-b/MentorLink/pkg/middleware"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func main() {
	// Load configuration from .env file
	cfg := config.LoadConfig()

	logger.InitLogger()
	logger.Log.Info("Logger initialized")

	// Connect to MongoDB and bootstrap indexes
	db, err := database.ConnectDB(cfg)
	if err != nil {
		log.Fatalf("Database connection error: %v", err)
	}

	// --- Realtime dispatcher ---
	hub := dispatcher.New()

	// --- Repositories ---
	relationshipRepo := repository.NewRelationshipRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	goalRepo := repository.NewGoalRepository(db)

	// --- Services ---
	relationshipService := services.NewRelationshipService(relationshipRepo, hub)
	conversationService := services.NewConversationService(conversationRepo, relationshipRepo, messageRepo, hub)
	messageService := services.NewMessageService(messageRepo, conversationRepo, relationshipRepo, relationshipService, hub)
	goalService := services.NewGoalService(goalRepo)

	var assistantService *services.AssistantService
	if cfg.OpenAIKey != "" {
		gen, err := assistant.NewClient(cfg.OpenAIKey, cfg.OpenAIModel)
		if err != nil {
			log.Fatalf("Assistant client error: %v", err)
		}
		assistantID, err := primitive.ObjectIDFromHex(cfg.AssistantID)
		if err != nil {
			log.Fatalf("Invalid assistant identity ID: %v", err)
		}
		assistantService = services.NewAssistantService(gen, messageService, assistantID)
	} else {
		logger.Log.Warn("OPENAI_API_KEY not set, assistant replies disabled")
	}

	// --- Handlers ---
	relationshipHandler := handlers.NewRelationshipHandler(relationshipService)
	conversationHandler := handlers.NewConversationHandler(conversationService, relationshipService)
	messageHandler := handlers.NewMessageHandler(messageService, conversationService, relationshipService, assistantService)
	goalHandler := handlers.NewGoalHandler(goalService)
	wsHandler := handlers.NewWSHandler(hub, messageService, conversationService, relationshipService, cfg.JWTSecret)

	// Initialize Gorilla Mux router
	router := mux.NewRouter()

	// Relationship routes
	relationshipRoutes := router.PathPrefix("/relationships").Subrouter()
	relationshipRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	relationshipRoutes.Handle("", middleware.RequireRole("professional")(
		http.HandlerFunc(relationshipHandler.CreateRelationshipHandler))).Methods("POST")
	relationshipRoutes.HandleFunc("", relationshipHandler.ListRelationshipsHandler).Methods("GET")
	relationshipRoutes.HandleFunc("/{id}", relationshipHandler.UpdateRelationshipHandler).Methods("PATCH")

	// Conversation and message routes
	conversationRoutes := router.PathPrefix("/conversations").Subrouter()
	conversationRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	conversationRoutes.HandleFunc("", conversationHandler.CreateConversationHandler).Methods("POST")
	conversationRoutes.HandleFunc("", conversationHandler.ListConversationsHandler).Methods("GET")
	conversationRoutes.HandleFunc("/{id}/messages", messageHandler.SendMessageHandler).Methods("POST")
	conversationRoutes.HandleFunc("/{id}/messages", messageHandler.ListMessagesHandler).Methods("GET")
	conversationRoutes.HandleFunc("/{id}/assistant", messageHandler.AssistantReplyHandler).Methods("POST")

	messageRoutes := router.PathPrefix("/messages").Subrouter()
	messageRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	messageRoutes.HandleFunc("/{id}/read", messageHandler.MarkReadHandler).Methods("PATCH")

	// Goal routes
	goalRoutes := router.PathPrefix("/goals").Subrouter()
	goalRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	goalRoutes.HandleFunc("", goalHandler.CreateGoalHandler).Methods("POST")
	goalRoutes.HandleFunc("", goalHandler.ListGoalsHandler).Methods("GET")
	goalRoutes.HandleFunc("/{id}", goalHandler.GetGoalHandler).Methods("GET")
	goalRoutes.HandleFunc("/{id}", goalHandler.UpdateGoalHandler).Methods("PATCH")
	goalRoutes.HandleFunc("/{id}/progress", goalHandler.RecordProgressHandler).Methods("POST")

	// Realtime stream (token is validated in the handler, not the middleware)
	router.HandleFunc("/ws", wsHandler.StreamHandler).Methods("GET")

	// Apply middleware for logging
	router.Use(middleware.LoggingMiddleware)

	// Periodic reminder scans
	scanner := jobs.NewReminderScanner(goalRepo, relationshipRepo, hub, cfg.StalePending)
	cronjobs.StartReminderCronJobs(scanner)

	// Start the HTTP server
	port := cfg.Port
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"}, // adjust to frontend origin
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	handler := c.Handler(router)

	fmt.Printf("Server running on port %s\n", port)
	log.Fatal(http.ListenAndServe(":"+port, handler))
}
