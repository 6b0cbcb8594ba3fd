package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := LoadConfig()

	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	initAdminToken()

	store, err := OpenStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database %s: %v", cfg.DBPath, err)
	}
	defer store.Close()

	sender := NewSenderFromConfig(cfg)

	r := gin.Default()

	// The live page submits to the relay from loopback on the visitor's
	// behalf; trust X-Forwarded-For from there only.
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		log.Fatalf("Failed to configure trusted proxies: %v", err)
	}

	r.Use(SecurityHeaders())
	r.Use(visitorTrackingMiddleware(store))

	r.LoadHTMLGlob("templates/*.html")
	r.Static("/static", "./static")

	sections := DefaultSections()

	// Home page route
	r.GET("/", func(c *gin.Context) {
		c.HTML(http.StatusOK, "index.html", gin.H{
			"sections":     sections,
			"heroTagline":  HeroTagline,
			"aboutMe":      AboutMe,
			"contactIntro": ContactIntro,
			"skills":       Skills,
			"projects":     Projects,
		})
	})

	relay := NewContactRelay(cfg, store, sender)
	limiter := NewIPRateLimiter(cfg.ContactRatePerMin, cfg.ContactRateBurst)

	// JSON contact endpoint, shared by the live page and external callers.
	api := r.Group("/api")
	api.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}))
	api.POST("/contact", limiter.RateLimit(), relay.HandleContactAPI)

	// Plain form fallback for visitors without JavaScript.
	r.POST("/contact", limiter.RateLimit(), relay.HandleContactForm)

	// WebSocket channel driving the live page.
	live := NewLivePage(cfg)
	r.GET("/ws/page", live.Handle)

	setupAdminRoutes(r, cfg, store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("Listening on %s (env=%s)", cfg.Addr(), cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Visitor records expire; sweep them once a day.
	g.Go(func() error {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				sweepCtx, cancel := context.WithTimeout(gctx, time.Minute)
				deleted, err := store.CleanupVisitors(sweepCtx, cfg.VisitorRetentionDays)
				cancel()
				if err != nil {
					log.Printf("Visitor cleanup failed: %v", err)
					continue
				}
				if deleted > 0 {
					log.Printf("Visitor cleanup removed %d records older than %d days", deleted, cfg.VisitorRetentionDays)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}
