package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"workcard-backend/internal/accesslink"
	"workcard-backend/internal/config"
	"workcard-backend/internal/database"
	"workcard-backend/internal/digest"
	"workcard-backend/internal/handlers"
	"workcard-backend/internal/middleware"
	"workcard-backend/internal/notify"
	"workcard-backend/internal/storage"
)

func main() {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	var fileStore storage.Store
	var localStore *storage.LocalStore
	if os.Getenv("STORAGE") == "r2" {
		r2Store, err := storage.NewR2Store(
			cfg.Upload.R2AccountID, cfg.Upload.R2AccessKey, cfg.Upload.R2SecretKey,
			cfg.Upload.R2Bucket, cfg.Upload.R2PublicURL,
		)
		if err != nil {
			log.Fatalf("Failed to initialize R2 storage: %v", err)
		}
		fileStore = r2Store
		log.Info("using Cloudflare R2 storage")
	} else {
		localStore, err = storage.NewLocalStore(cfg.Upload.LocalDir, "http://localhost:"+cfg.Port+"/api/files")
		if err != nil {
			log.Fatalf("Failed to initialize local storage: %v", err)
		}
		fileStore = localStore
		log.Info("using local file storage")
	}

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	corsOrigins := []string{"http://localhost:3000", "http://localhost:3001"}
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		corsOrigins = append(corsOrigins, frontendURL)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authHandler := handlers.NewAuthHandler(db, cfg.JWTSecret)
	businessHandler := handlers.NewBusinessHandler(db)
	siteHandler := handlers.NewSiteHandler(db)
	employeeHandler := handlers.NewEmployeeHandler(db)
	workCardHandler := handlers.NewWorkCardHandler(db, fileStore)
	matrixHandler := handlers.NewMatrixHandler(db)

	accessSvc := accesslink.New(accesslink.NewPGStore(db.GetPool()), notify.NewLogMessenger(log), os.Getenv("PORTAL_BASE_URL"))
	accessLinkHandler := handlers.NewAccessLinkHandler(accessSvc)
	portalHandler := handlers.NewPortalHandler(db, accessSvc, fileStore, cfg.JWTSecret)

	reviewDigest := digest.New(db.GetPool(), log, os.Getenv("DIGEST_SCHEDULE"))
	digestCtx, cancelDigest := context.WithCancel(context.Background())
	defer cancelDigest()
	if err := reviewDigest.Start(digestCtx); err != nil {
		log.WithError(err).Error("failed to start review digest")
	}
	defer reviewDigest.Stop()

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Work Card Reconciliation API"))
	})
	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := db.Health(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(rate.Every(12*time.Second), 5))
		r.Post("/api/auth/login", authHandler.Login)
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(rate.Every(20*time.Second), 3))
		r.Post("/api/auth/register", authHandler.Register)
	})

	if localStore != nil {
		r.Handle("/api/files/*", http.StripPrefix("/api/files/", localStore.Handler()))
	}

	// Public portal — no staff login, just the tokenized access link flow.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(rate.Every(6*time.Second), 10))
		r.Post("/api/portal/verify", portalHandler.VerifyIdentity)
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequirePortalScope(cfg.JWTSecret))
		r.Post("/api/portal/upload", portalHandler.Upload)
	})

	// Staff routes — require a valid JWT and business scope.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))

		r.Get("/api/auth/me", authHandler.GetMe)

		r.Get("/api/sites", siteHandler.List)

		r.Get("/api/employees", employeeHandler.List)
		r.Get("/api/employees/{id}", employeeHandler.GetByID)

		r.Get("/api/workcards", workCardHandler.List)
		r.Get("/api/workcards/{id}", workCardHandler.GetByID)

		r.Get("/api/matrix", matrixHandler.Get)
		r.Get("/api/matrix/upload-status", matrixHandler.UploadStatus)
		r.Get("/api/matrix/export.csv", matrixHandler.ExportCSV)

		// site_manager and above
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireMinRole("site_manager"))
			r.Post("/api/workcards/upload", workCardHandler.Upload)
			r.Patch("/api/workcards/{id}/day-entries", workCardHandler.UpdateDayEntries)
			r.Post("/api/workcards/{id}/assign-employee", workCardHandler.AssignEmployee)
			r.Post("/api/workcards/{id}/approve", workCardHandler.Approve)
			r.Post("/api/employees", employeeHandler.Create)
			r.Put("/api/employees/{id}", employeeHandler.Update)
			r.Post("/api/access-links", accessLinkHandler.Create)
		})

		// business_admin and above
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireMinRole("business_admin"))
			r.Post("/api/sites", siteHandler.Create)
			r.Put("/api/sites/{id}", siteHandler.Update)
			r.Delete("/api/sites/{id}", siteHandler.Delete)
			r.Delete("/api/employees/{id}", employeeHandler.Delete)
			r.Put("/api/users/{id}/role", authHandler.UpdateRole)
		})

		// super_admin only
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireMinRole("super_admin"))
			r.Get("/api/businesses", businessHandler.List)
			r.Post("/api/businesses", businessHandler.Create)
			r.Put("/api/businesses/{id}", businessHandler.Update)
			r.Delete("/api/businesses/{id}", businessHandler.Delete)
		})
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: r,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Infof("server started on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed to start: %v", err)
		}
	}()

	<-done
	log.Info("server stopping")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Info("server exited properly")
}
