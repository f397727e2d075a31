// Package main is the entry point for the groundlink ground-station server.
package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/akorchak/groundlink/internal/auth"
	"github.com/akorchak/groundlink/internal/config"
	"github.com/akorchak/groundlink/internal/database"
	"github.com/akorchak/groundlink/internal/drone"
	"github.com/akorchak/groundlink/internal/hub"
	"github.com/akorchak/groundlink/internal/repository"
	"github.com/akorchak/groundlink/internal/server"
	"github.com/akorchak/groundlink/internal/session"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database connection
	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	log.Println("Successfully connected to database")

	// Create repositories
	droneRepo := repository.NewPostgresDroneRepository(db)
	sessionRepo := repository.NewPostgresSessionRepository(db)
	eventRepo := repository.NewPostgresEventRepository(db)
	userRepo := repository.NewPostgresUserRepository(db)

	// Startup recovery: no link survives a restart, so no drone can still be
	// connected or flying.
	recoverCtx, cancelRecover := context.WithTimeout(context.Background(), 10*time.Second)
	recovered, err := droneRepo.MarkStaleOffline(recoverCtx)
	cancelRecover()
	if err != nil {
		log.Fatalf("Failed to recover stale drone statuses: %v", err)
	}
	if recovered > 0 {
		log.Printf("Marked %d stale drones offline", recovered)
	}

	// Wire the core: manager -> bus -> session engine + hub
	bus := drone.NewBus()
	manager := drone.NewManager(droneRepo, bus)
	if err := manager.Restore(context.Background()); err != nil {
		log.Fatalf("Failed to restore drone registry: %v", err)
	}

	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	subscriberHub := hub.New(jwtService, manager)
	subscriberHub.Attach(bus)

	engine := session.NewEngine(sessionRepo, eventRepo, subscriberHub)
	engine.Attach(bus)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go engine.Run(ctx)
	go subscriberHub.Run(ctx)

	// Auto-connect the configured fleet
	connectFleet(ctx, cfg, manager)

	// Create the HTTP server
	router := server.New(&server.Dependencies{
		Config:       cfg,
		Verifier:     jwtService,
		Commander:    manager,
		Hub:          subscriberHub,
		DroneRepo:    droneRepo,
		UserRepo:     userRepo,
		DBHealth:     db,
		WriterHealth: engine,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	manager.DisconnectAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}

// connectFleet registers and connects the SITL endpoint and any vehicles
// from the fleet file. Registration conflicts are fine on restart: the
// vehicle is already in the registry.
func connectFleet(ctx context.Context, cfg *config.Config, manager *drone.Manager) {
	type vehicle struct {
		ownerID    int64
		name       string
		uin        string
		connection string
		peerHost   string
		peerPort   int
	}

	var vehicles []vehicle
	if cfg.SITL.Connection != "" {
		vehicles = append(vehicles, vehicle{
			ownerID:    cfg.SITL.OwnerID,
			name:       cfg.SITL.Name,
			uin:        cfg.SITL.UIN,
			connection: cfg.SITL.Connection,
		})
	}
	if cfg.Fleet.Path != "" {
		fleet, err := config.LoadFleet(cfg.Fleet.Path)
		if err != nil {
			log.Fatalf("Failed to load fleet file: %v", err)
		}
		for _, v := range fleet.Vehicles {
			vehicles = append(vehicles, vehicle{
				ownerID:    v.OwnerID,
				name:       v.Name,
				uin:        v.UIN,
				connection: v.Connection,
				peerHost:   v.PeerHost,
				peerPort:   v.PeerPort,
			})
		}
	}

	for _, v := range vehicles {
		droneID, err := registerOrResolve(ctx, manager, v.ownerID, v.name, v.uin, v.connection)
		if err != nil {
			log.Printf("Skipping fleet vehicle %s: %v", v.uin, err)
			continue
		}
		if err := manager.ConnectWithEndpoint(droneID, v.connection); err != nil {
			log.Printf("Failed to connect fleet vehicle %s: %v", v.uin, err)
			continue
		}
		if v.peerHost != "" && v.peerPort > 0 {
			addr := net.JoinHostPort(v.peerHost, strconv.Itoa(v.peerPort))
			if err := manager.SetPeerOverride(droneID, addr); err != nil {
				log.Printf("Failed to set peer override for %s: %v", v.uin, err)
			}
		}
		log.Printf("Fleet vehicle %s listening on %s", v.uin, v.connection)
	}
}

// registerOrResolve registers a vehicle, falling back to the existing
// registration when the UIN is already taken.
func registerOrResolve(ctx context.Context, manager *drone.Manager, ownerID int64, name, uin, connection string) (int64, error) {
	registered, err := manager.Register(ctx, ownerID, name, uin, connection)
	if err == nil {
		return registered.ID, nil
	}
	if !errors.Is(err, drone.ErrUinConflict) {
		return 0, err
	}
	if id, ok := manager.ResolveUIN(uin); ok {
		return id, nil
	}
	return 0, err
}
