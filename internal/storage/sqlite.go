package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/himanishpuri/ReelDNA/pkg/models"
	"github.com/himanishpuri/ReelDNA/pkg/utils"
)

const DefaultDBFile = "reeldna.sqlite3"
const errDBClientNil = "db client is nil"

var ErrDetectionNotFound = errors.New("detection not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

type Detection struct {
	ID                     string `gorm:"primaryKey;type:varchar(36)"`
	SessionID              string `gorm:"type:varchar(36);index:idx_session"`
	ReferenceVideo         string
	SuspectVideo           string `gorm:"index:idx_suspect"`
	Offset                 float64
	TotalSamples           int
	ImageMatchCount        int
	AudioMatchCount        int
	ImageMatchPercentage   float64
	AvgImageDistance       float64
	AvgAudioSimilarity     float64
	IsPirated              bool `gorm:"index:idx_pirated"`
	Rule                   string
	Reason                 string
	MatchedTimestamps      []float64 `gorm:"serializer:json"`
	MatchedAudioTimestamps []float64 `gorm:"serializer:json"`
	Reported               bool
	CreatedAt              time.Time      `gorm:"index:idx_created"`
	Samples                []SampleResult `gorm:"foreignKey:DetectionID;constraint:OnDelete:CASCADE"`
}

type SampleResult struct {
	ID                 uint   `gorm:"primaryKey;autoIncrement"`
	DetectionID        string `gorm:"type:varchar(36);index:idx_detection"`
	SampleIndex        int
	ReferenceTimestamp float64
	RecordedTimestamp  float64
	VisualDistance     int
	VisualMatch        bool
	AudioSimilarity    float64
	AudioMatch         bool
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("REELDNA_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=foreign_keys(1)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Detection{}, &SampleResult{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// SaveDetection stores a pipeline run and its per-sample records, assigning an ID when
// d.ID is empty. It returns the stored ID.
func (c *DBClient) SaveDetection(d *models.Detection) (string, error) {
	if c == nil || c.DB == nil {
		return "", errors.New(errDBClientNil)
	}
	id := d.ID
	if id == "" {
		id = utils.GenerateUUID()
	}
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	v := d.Verdict
	row := Detection{
		ID:                     id,
		SessionID:              d.SessionID,
		ReferenceVideo:         d.ReferenceVideo,
		SuspectVideo:           d.SuspectVideo,
		Offset:                 d.Offset,
		TotalSamples:           v.TotalSamples,
		ImageMatchCount:        v.ImageMatchCount,
		AudioMatchCount:        v.AudioMatchCount,
		ImageMatchPercentage:   v.ImageMatchPercentage,
		AvgImageDistance:       v.AvgImageDistance,
		AvgAudioSimilarity:     v.AvgAudioSimilarity,
		IsPirated:              v.IsPirated,
		Rule:                   v.Rule,
		Reason:                 v.Reason,
		MatchedTimestamps:      v.MatchedTimestamps,
		MatchedAudioTimestamps: v.MatchedAudioTimestamps,
		Reported:               d.Reported,
		CreatedAt:              createdAt,
	}

	samples := make([]SampleResult, 0, len(v.Records))
	for _, r := range v.Records {
		samples = append(samples, SampleResult{
			DetectionID:        id,
			SampleIndex:        r.Index,
			ReferenceTimestamp: r.ReferenceTimestamp,
			RecordedTimestamp:  r.RecordedTimestamp,
			VisualDistance:     r.VisualDistance,
			VisualMatch:        r.VisualMatch,
			AudioSimilarity:    r.AudioSimilarity,
			AudioMatch:         r.AudioMatch,
		})
	}

	err := c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Samples").Create(&row).Error; err != nil {
			return fmt.Errorf("creating detection: %w", err)
		}
		if len(samples) > 0 {
			if err := tx.CreateInBatches(samples, 500).Error; err != nil {
				return fmt.Errorf("batch insert sample results: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetDetection loads one detection with its per-sample records in index order.
func (c *DBClient) GetDetection(id string) (*models.Detection, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var row Detection
	err := c.DB.Preload("Samples", func(db *gorm.DB) *gorm.DB {
		return db.Order("sample_index ASC")
	}).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrDetectionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying detection: %w", err)
	}
	d := row.toModel()
	return &d, nil
}

// ListDetections returns the most recent detections first, without per-sample records.
// A non-positive limit returns all rows.
func (c *DBClient) ListDetections(limit int, piratedOnly bool) ([]models.Detection, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	q := c.DB.Order("created_at DESC")
	if piratedOnly {
		q = q.Where("is_pirated = ?", true)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []Detection
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing detections: %w", err)
	}
	out := make([]models.Detection, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (c *DBClient) MarkReported(id string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	res := c.DB.Model(&Detection{}).Where("id = ?", id).Update("reported", true)
	if res.Error != nil {
		return fmt.Errorf("marking detection reported: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrDetectionNotFound, id)
	}
	return nil
}

func (c *DBClient) DeleteDetection(id string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("detection_id = ?", id).Delete(&SampleResult{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&Detection{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrDetectionNotFound, id)
		}
		return nil
	})
}

func (c *DBClient) CountDetections() (int64, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var n int64
	if err := c.DB.Model(&Detection{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r Detection) toModel() models.Detection {
	v := models.Verdict{
		TotalSamples:           r.TotalSamples,
		ImageMatchCount:        r.ImageMatchCount,
		AudioMatchCount:        r.AudioMatchCount,
		ImageMatchPercentage:   r.ImageMatchPercentage,
		AvgImageDistance:       r.AvgImageDistance,
		AvgAudioSimilarity:     r.AvgAudioSimilarity,
		IsPirated:              r.IsPirated,
		Rule:                   r.Rule,
		Reason:                 r.Reason,
		MatchedTimestamps:      r.MatchedTimestamps,
		MatchedAudioTimestamps: r.MatchedAudioTimestamps,
	}
	for _, s := range r.Samples {
		v.Records = append(v.Records, models.ComparisonRecord{
			Index:              s.SampleIndex,
			ReferenceTimestamp: s.ReferenceTimestamp,
			RecordedTimestamp:  s.RecordedTimestamp,
			VisualDistance:     s.VisualDistance,
			VisualMatch:        s.VisualMatch,
			AudioSimilarity:    s.AudioSimilarity,
			AudioMatch:         s.AudioMatch,
		})
	}
	return models.Detection{
		ID:             r.ID,
		SessionID:      r.SessionID,
		ReferenceVideo: r.ReferenceVideo,
		SuspectVideo:   r.SuspectVideo,
		Offset:         r.Offset,
		Verdict:        v.Sanitize(),
		Reported:       r.Reported,
		CreatedAt:      r.CreatedAt,
	}
}
