package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// User-facing strings for the contact endpoint. Validation problems are
// reported verbatim; everything else gets the generic message and the
// detail stays in the server log.
const (
	msgMissingFields  = "Please provide name, email, and message."
	msgDeliveryError  = "Something went wrong on our end. Please try again later."
	msgContactSuccess = "Thanks for reaching out! I'll respond shortly."
)

var errRelayMisconfigured = errors.New("contact relay has no sending identity configured")

type contactRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// trim strips surrounding whitespace so blank fields count as missing.
func (r *contactRequest) trim() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Message = strings.TrimSpace(r.Message)
}

// ContactRelay owns the contact submission surface: it validates
// submissions, records them in the inbox, and forwards them to the
// configured mail provider. It never retries; the human on the other
// end re-submits if delivery fails.
type ContactRelay struct {
	cfg      *Config
	store    *Store
	sender   Sender
	validate *validator.Validate
}

func NewContactRelay(cfg *Config, store *Store, sender Sender) *ContactRelay {
	return &ContactRelay{
		cfg:      cfg,
		store:    store,
		sender:   sender,
		validate: validator.New(),
	}
}

// HandleContactAPI implements POST /api/contact: JSON in, JSON out.
// 200 {"ok":true} on success, 400 with the exact validation message
// when a field is missing or blank, 500 with a generic message on
// anything the submitter cannot fix.
func (r *ContactRelay) HandleContactAPI(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 32*1024)

	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingFields})
		return
	}

	req.trim()
	if err := r.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingFields})
		return
	}

	if err := r.deliver(c.Request.Context(), Submission(req)); err != nil {
		log.Printf("contact relay: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgDeliveryError})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// HandleContactForm implements POST /contact, the no-JS fallback: a
// plain form submission that re-renders the contact fragment. Same
// validation and delivery path as the JSON endpoint.
func (r *ContactRelay) HandleContactForm(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 32*1024)

	req := contactRequest{
		Name:    c.PostForm("name"),
		Email:   c.PostForm("email"),
		Message: c.PostForm("message"),
	}

	req.trim()
	if err := r.validate.Struct(req); err != nil {
		c.HTML(http.StatusOK, "contact-error.html", gin.H{
			"error": msgMissingFields,
		})
		return
	}

	if err := r.deliver(c.Request.Context(), Submission(req)); err != nil {
		log.Printf("contact relay: %v", err)
		c.HTML(http.StatusOK, "contact-error.html", gin.H{
			"error": msgDeliveryError,
		})
		return
	}

	c.HTML(http.StatusOK, "contact-success.html", gin.H{
		"success": msgContactSuccess,
	})
}

// deliver records the submission in the inbox and relays it. The inbox
// write happens first so a provider outage never loses a message; a
// failed relay leaves the message flagged undelivered for the admin.
func (r *ContactRelay) deliver(ctx context.Context, sub Submission) error {
	if r.cfg.ContactFrom == "" || r.cfg.ContactTo == "" {
		return errRelayMisconfigured
	}

	msg, err := r.store.InsertMessage(ctx, sub)
	if err != nil {
		return fmt.Errorf("store submission: %w", err)
	}

	if err := r.sender.Send(ctx, sub); err != nil {
		if markErr := r.store.MarkDeliveryFailed(ctx, msg.ID, err.Error()); markErr != nil {
			log.Printf("contact relay: flag undelivered %s: %v", msg.ID, markErr)
		}
		return fmt.Errorf("deliver %s: %w", msg.ID, err)
	}

	if err := r.store.MarkDelivered(ctx, msg.ID); err != nil {
		log.Printf("contact relay: flag delivered %s: %v", msg.ID, err)
	}

	return nil
}
