// admin.go - privacy-conscious admin surface: login, message inbox,
// visitor metrics.
package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// AdminStats is the dashboard's aggregate view: visitor metrics plus
// the state of the contact inbox.
type AdminStats struct {
	TotalVisitors       int64           `json:"total_visitors"`
	UniqueVisitors      int64           `json:"unique_visitors"`
	VisitorsToday       int64           `json:"visitors_today"`
	VisitorsThisWeek    int64           `json:"visitors_this_week"`
	TotalMessages       int64           `json:"total_messages"`
	UndeliveredMessages int64           `json:"undelivered_messages"`
	RecentMessages      []Message       `json:"recent_messages"`
	RecentVisitors      []VisitorMetric `json:"recent_visitors"`
}

var adminToken string
var hashingSalt string

// initAdminToken mints a fresh session token and hashing salt at boot.
// Restarting the process invalidates all admin sessions.
func initAdminToken() {
	adminToken = generateAdminToken()
	hashingSalt = generateAdminToken()

	log.Printf("Admin access available at: /admin/login")
	if gin.Mode() == gin.DebugMode {
		log.Printf("Admin token (dev only): %s", adminToken)
	}

	log.Println("Privacy: visitor tracking enabled with hashed IP addresses")
}

func generateAdminToken() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		log.Fatal("Failed to generate admin token:", err)
	}
	return hex.EncodeToString(bytes)
}

// hashIP hashes an IP address for privacy (consistent per IP, salted
// per process).
func hashIP(ip string) string {
	hash := sha256.New()
	hash.Write([]byte(ip + hashingSalt))
	return hex.EncodeToString(hash.Sum(nil))[:16]
}

func adminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie("admin_token")
		if err != nil || subtle.ConstantTimeCompare([]byte(token), []byte(adminToken)) != 1 {
			c.Redirect(http.StatusFound, "/admin/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// visitorTrackingMiddleware records page views with hashed IPs. Static
// assets, the admin area, the API, and the live channel are skipped,
// and Do Not Track is honored.
func visitorTrackingMiddleware(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/static/") ||
			strings.HasPrefix(path, "/admin/") ||
			strings.HasPrefix(path, "/api/") ||
			strings.HasPrefix(path, "/ws/") ||
			strings.HasPrefix(path, "/favicon") ||
			strings.HasPrefix(path, "/privacy") {
			c.Next()
			return
		}

		if c.GetHeader("DNT") == "1" {
			c.Next()
			return
		}

		go trackVisitor(store, c.ClientIP(), c.GetHeader("User-Agent"), path)
		c.Next()
	}
}

func trackVisitor(store *Store, ip, userAgent, path string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.InsertVisit(ctx, hashIP(ip), userAgent, path); err != nil {
		log.Printf("Error recording visitor: %v", err)
	}
}

func getAdminStats(ctx context.Context, store *Store) (*AdminStats, error) {
	visitors, err := store.VisitorStats(ctx)
	if err != nil {
		return nil, err
	}

	totalMessages, undelivered, err := store.MessageCounts(ctx)
	if err != nil {
		return nil, err
	}

	recentMessages, err := store.ListMessages(ctx, 10)
	if err != nil {
		return nil, err
	}

	recentVisitors, err := store.RecentVisitors(ctx, 50)
	if err != nil {
		return nil, err
	}

	return &AdminStats{
		TotalVisitors:       visitors.Total,
		UniqueVisitors:      visitors.Unique,
		VisitorsToday:       visitors.Today,
		VisitorsThisWeek:    visitors.ThisWeek,
		TotalMessages:       totalMessages,
		UndeliveredMessages: undelivered,
		RecentMessages:      recentMessages,
		RecentVisitors:      recentVisitors,
	}, nil
}

// setupAdminRoutes wires the privacy page, login, and the protected
// admin area.
func setupAdminRoutes(r *gin.Engine, cfg *Config, store *Store) {
	r.GET("/privacy", func(c *gin.Context) {
		c.HTML(http.StatusOK, "privacy.html", gin.H{
			"title": "Privacy Policy",
		})
	})

	r.GET("/admin/login", func(c *gin.Context) {
		c.HTML(http.StatusOK, "admin-login.html", gin.H{
			"title": "Admin Login",
		})
	})

	r.POST("/admin/login", func(c *gin.Context) {
		username := c.PostForm("username")
		password := c.PostForm("password")

		adminUsername := cfg.AdminUsername
		adminPassword := cfg.AdminPassword

		// Development fallbacks; set real credentials in production.
		if adminUsername == "" {
			adminUsername = "admin"
			if gin.Mode() == gin.DebugMode {
				log.Println("WARNING: Using default admin username. Set ADMIN_USERNAME.")
			}
		}
		if adminPassword == "" {
			adminPassword = "admin123"
			if gin.Mode() == gin.DebugMode {
				log.Println("WARNING: Using default admin password. Set ADMIN_PASSWORD.")
			}
		}

		usernameOK := subtle.ConstantTimeCompare([]byte(username), []byte(adminUsername)) == 1
		passwordOK := subtle.ConstantTimeCompare([]byte(password), []byte(adminPassword)) == 1

		if usernameOK && passwordOK {
			c.SetCookie("admin_token", adminToken, 3600*24, "/admin", "", false, true)
			log.Printf("Admin login successful from %s", hashIP(c.ClientIP()))
			c.Redirect(http.StatusFound, "/admin/dashboard")
		} else {
			log.Printf("Failed admin login attempt from %s", hashIP(c.ClientIP()))
			c.HTML(http.StatusUnauthorized, "admin-login.html", gin.H{
				"error": "Invalid credentials",
			})
		}
	})

	r.GET("/admin/logout", func(c *gin.Context) {
		c.SetCookie("admin_token", "", -1, "/admin", "", false, true)
		log.Printf("Admin logout from %s", hashIP(c.ClientIP()))
		c.Redirect(http.StatusFound, "/admin/login")
	})

	adminGroup := r.Group("/admin")
	adminGroup.Use(adminAuthMiddleware())

	adminGroup.GET("/dashboard", func(c *gin.Context) {
		stats, err := getAdminStats(c.Request.Context(), store)
		if err != nil {
			log.Printf("Error loading admin stats: %v", err)
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{
				"error": "Failed to load statistics",
			})
			return
		}

		c.HTML(http.StatusOK, "admin-dashboard.html", gin.H{
			"stats": stats,
		})
	})

	adminGroup.GET("/api/stats", func(c *gin.Context) {
		stats, err := getAdminStats(c.Request.Context(), store)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	// The contact inbox: everything the relay ever accepted, with
	// undelivered submissions flagged.
	adminGroup.GET("/messages", func(c *gin.Context) {
		messages, err := store.ListMessages(c.Request.Context(), 200)
		if err != nil {
			log.Printf("Error loading messages: %v", err)
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{
				"error": "Failed to load messages",
			})
			return
		}

		c.HTML(http.StatusOK, "admin-messages.html", gin.H{
			"messages": messages,
		})
	})

	adminGroup.DELETE("/messages/:id", func(c *gin.Context) {
		id := c.Param("id")

		deleted, err := store.DeleteMessage(c.Request.Context(), id)
		if err != nil {
			log.Printf("Error deleting message %s: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete message"})
			return
		}
		if !deleted {
			c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
			return
		}

		log.Printf("Message %s deleted by admin from %s", id, hashIP(c.ClientIP()))
		c.JSON(http.StatusOK, gin.H{"message": "Message deleted successfully"})
	})

	adminGroup.GET("/visitors", func(c *gin.Context) {
		visitors, err := store.RecentVisitors(c.Request.Context(), 200)
		if err != nil {
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{
				"error": "Failed to load visitors",
			})
			return
		}

		c.HTML(http.StatusOK, "admin-visitors.html", gin.H{
			"visitors": visitors,
		})
	})

	adminGroup.POST("/privacy/delete-visitor-data", func(c *gin.Context) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			deleted, err := store.CleanupVisitors(ctx, cfg.VisitorRetentionDays)
			if err != nil {
				log.Printf("Error cleaning up old visitor data: %v", err)
				return
			}
			if deleted > 0 {
				log.Printf("Privacy cleanup: removed %d visitor records", deleted)
			}
		}()
		c.JSON(http.StatusOK, gin.H{"message": "Privacy cleanup initiated"})
	})

	adminGroup.GET("/export/stats", func(c *gin.Context) {
		stats, err := getAdminStats(c.Request.Context(), store)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.Header("Content-Type", "application/json")
		c.Header("Content-Disposition", "attachment; filename=admin-stats.json")

		log.Printf("Admin stats exported by %s", hashIP(c.ClientIP()))
		c.JSON(http.StatusOK, stats)
	})
}
