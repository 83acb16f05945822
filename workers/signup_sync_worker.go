package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"points-ledger-system/services"

	"gorm.io/gorm"
)

// Signup matches the JSON the auth service returns for new registrations.
type Signup struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// GetSignupsResponse is the top-level structure of the auth service response.
type GetSignupsResponse struct {
	Signups []Signup `json:"signups"`
}

// SignupSyncWorker polls the auth service for accounts created since the last
// sweep and provisions a balance record for each. It is the pull-based
// delivery of the signup event; /internal/users is the push-based one, and the
// provisioner's duplicate check makes the overlap harmless.
type SignupSyncWorker struct {
	db             *gorm.DB
	accountService *services.AccountService
	interval       time.Duration
	baseURL        string
	endpointPath   string
	serviceToken   string
	httpClient     *http.Client
}

func NewSignupSyncWorker(db *gorm.DB, accountService *services.AccountService, authServiceBaseURL, endpointPath, serviceToken string) *SignupSyncWorker {
	return &SignupSyncWorker{
		db:             db,
		accountService: accountService,
		interval:       1 * time.Minute,
		baseURL:        authServiceBaseURL,
		endpointPath:   endpointPath,
		serviceToken:   serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *SignupSyncWorker) Start(ctx context.Context) {
	log.Println("[SIGNUP_SYNC] Starting signup sync worker (auth service → point_users)")
	go w.run(ctx)
}

func (w *SignupSyncWorker) run(ctx context.Context) {
	// Initial sync backfills from the epoch when the local table is empty.
	if err := w.syncBatch(ctx, w.getLastSyncTime()); err != nil {
		log.Printf("[SIGNUP_SYNC] Initial sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx, w.getLastSyncTime()); err != nil {
				log.Printf("[SIGNUP_SYNC] Sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("[SIGNUP_SYNC] Signup sync worker stopped")
			return
		}
	}
}

// getLastSyncTime derives the cursor from the most recent created_at in the
// local point_users table, so a restart resumes where the data left off
// instead of where the process did.
func (w *SignupSyncWorker) getLastSyncTime() time.Time {
	var lastTime time.Time
	err := w.db.Raw("SELECT MAX(created_at) FROM point_users").Scan(&lastTime).Error
	if err != nil || lastTime.IsZero() {
		return time.Unix(0, 0)
	}
	return lastTime
}

// syncBatch fetches signups newer than since and provisions each one. The
// cursor is re-derived from the table on every tick, so a failed batch is
// naturally retried.
func (w *SignupSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	since = since.UTC()

	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid auth service URL '%s': %w", w.baseURL, err)
	}

	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", since.Format(time.RFC3339))
	endpointURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create signup request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call auth service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("auth service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response GetSignupsResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode auth service response: %w", err)
	}

	if len(response.Signups) == 0 {
		return nil
	}

	provisioned := 0
	for _, signup := range response.Signups {
		_, err := w.accountService.ProvisionUser(ctx, signup.UID, signup.Email, signup.DisplayName)
		if err != nil {
			// Already provisioned via /internal/users or a previous sweep.
			if errors.Is(err, services.ErrUserAlreadyExists) {
				continue
			}
			return fmt.Errorf("failed to provision user %s: %w", signup.UID, err)
		}
		provisioned++
	}

	log.Printf("[SIGNUP_SYNC] Provisioned %d of %d signup(s) since %s",
		provisioned, len(response.Signups), since.Format(time.RFC3339))
	return nil
}
