package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"points-ledger-system/models"
	"points-ledger-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const monthlyResetDescription = "Monthly free point reset"

// ResetBatchSize is the page size for the monthly reset sweep.
const ResetBatchSize = 500

type ResetService struct {
	DB        *gorm.DB
	BatchSize int
}

func NewResetService(db *gorm.DB) *ResetService {
	return &ResetService{DB: db, BatchSize: ResetBatchSize}
}

// ResetSummary describes one reset run. It is returned to the manual trigger
// endpoint and archived to R2.
type ResetSummary struct {
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	UsersScanned  int       `json:"users_scanned"`
	UsersReset    int       `json:"users_reset"`
	PointsCleared int64     `json:"points_cleared"`
	Pages         int       `json:"pages"`
	FailedPages   int       `json:"failed_pages"`
}

// ResetMonthlyFreePoints zeroes every user's free-point balance, paging
// through point_users by uid. Each page commits in its own transaction: a
// failed page is logged and skipped while prior pages stay applied — the
// sweep trades all-or-nothing consistency for scalability. Users already at
// zero free points are left untouched and get no history entry.
func (s *ResetService) ResetMonthlyFreePoints(ctx context.Context) (*ResetSummary, error) {
	batchSize := s.BatchSize
	if batchSize <= 0 {
		batchSize = ResetBatchSize
	}

	summary := &ResetSummary{StartedAt: time.Now().UTC()}
	now := time.Now().UTC()
	expiry := utils.CalculateExpiryDate(utils.DefaultExpiryMonths)

	lastUID := ""
	for {
		var users []models.PointUser
		query := s.DB.WithContext(ctx).Order("uid").Limit(batchSize)
		if lastUID != "" {
			query = query.Where("uid > ?", lastUID)
		}
		if err := query.Find(&users).Error; err != nil {
			return summary, fmt.Errorf("failed to page users for reset: %w", err)
		}
		if len(users) == 0 {
			break
		}

		summary.Pages++
		summary.UsersScanned += len(users)
		lastUID = users[len(users)-1].UID

		pageReset := 0
		var pageCleared int64
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			pageReset, pageCleared = 0, 0
			for _, user := range users {
				if user.FreePoint <= 0 {
					continue
				}

				// Column expressions debit whatever free balance the row
				// holds at update time, not the value the page read saw.
				res := tx.Model(&models.PointUser{}).
					Where("uid = ? AND free_point > 0", user.UID).
					Updates(map[string]interface{}{
						"point":           gorm.Expr("point - free_point"),
						"free_point":      0,
						"last_reset_date": now,
					})
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					// Drained to zero since the page was read.
					continue
				}

				if err := tx.Create(&models.PointHistory{
					ID:          uuid.NewString(),
					UserID:      user.UID,
					Type:        models.HistoryTypeMonthlyReset,
					Amount:      -user.FreePoint,
					Description: monthlyResetDescription,
					Timestamp:   now,
					ExpiryDate:  &expiry,
				}).Error; err != nil {
					return err
				}

				pageReset++
				pageCleared += user.FreePoint
			}
			return nil
		})
		if err != nil {
			log.Printf("[RESET] Page ending at uid %s failed, skipping: %v", lastUID, err)
			summary.FailedPages++
		} else {
			summary.UsersReset += pageReset
			summary.PointsCleared += pageCleared
		}

		if len(users) < batchSize {
			break
		}
	}

	summary.FinishedAt = time.Now().UTC()
	log.Printf("[RESET] Monthly reset done: %d users scanned, %d reset, %d points cleared, %d/%d pages failed",
		summary.UsersScanned, summary.UsersReset, summary.PointsCleared, summary.FailedPages, summary.Pages)

	s.archiveSummary(ctx, summary)
	return summary, nil
}

// archiveSummary uploads the run summary to R2 when archiving is configured.
// Best effort: an upload failure never fails the reset run.
func (s *ResetService) archiveSummary(ctx context.Context, summary *ResetSummary) {
	if !utils.R2Enabled() {
		return
	}

	body, err := json.Marshal(summary)
	if err != nil {
		log.Printf("[RESET] Failed to marshal reset summary: %v", err)
		return
	}

	key := fmt.Sprintf("reset-reports/%s.json", summary.StartedAt.Format("2006-01-02T15-04-05"))
	if err := utils.UploadReportToR2(ctx, key, body, "application/json"); err != nil {
		log.Printf("[RESET] Failed to archive reset summary: %v", err)
		return
	}
	log.Printf("[RESET] Reset summary archived to %s", key)
}
