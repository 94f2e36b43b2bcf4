package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Uni298/OSMStudio/internal/config"
	"github.com/Uni298/OSMStudio/pkg/core"
)

// updateRetries bounds optimistic-lock retry attempts before giving up.
const updateRetries = 5

// sessionRecord is the GORM row for one export session. Frames are stored
// as a JSON column; Version implements optimistic locking for Update.
type sessionRecord struct {
	ID           string `gorm:"primaryKey"`
	Mode         string
	Status       string
	Progress     float64
	Message      string
	TotalFrames  int
	Frames       datatypes.JSON
	ArtifactPath string
	Error        string
	Version      uint64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (sessionRecord) TableName() string { return "export_sessions" }

func toRecord(s *core.ExportSession, version uint64) (*sessionRecord, error) {
	frames, err := json.Marshal(s.Frames)
	if err != nil {
		return nil, fmt.Errorf("marshal frames: %w", err)
	}
	return &sessionRecord{
		ID:           s.ID,
		Mode:         string(s.Mode),
		Status:       string(s.Status),
		Progress:     s.Progress,
		Message:      s.Message,
		TotalFrames:  s.TotalFrames,
		Frames:       datatypes.JSON(frames),
		ArtifactPath: s.ArtifactPath,
		Error:        s.Error,
		Version:      version,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}, nil
}

func fromRecord(r *sessionRecord) (*core.ExportSession, error) {
	var frames []core.FrameDescriptor
	if len(r.Frames) > 0 {
		if err := json.Unmarshal(r.Frames, &frames); err != nil {
			return nil, fmt.Errorf("unmarshal frames: %w", err)
		}
	}
	return &core.ExportSession{
		ID:           r.ID,
		Mode:         core.ExportMode(r.Mode),
		Status:       core.Status(r.Status),
		Progress:     r.Progress,
		Message:      r.Message,
		TotalFrames:  r.TotalFrames,
		Frames:       frames,
		ArtifactPath: r.ArtifactPath,
		Error:        r.Error,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}, nil
}

// GormStore persists sessions in a relational database via GORM. It backs
// both the SQLite and PostgreSQL store types.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore migrates the schema and wraps the connection.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&sessionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate session schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

// OpenSQLite opens a SQLite-backed GORM connection. An empty path uses an
// in-memory database.
func OpenSQLite(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

// OpenPostgres opens a PostgreSQL-backed GORM connection.
func OpenPostgres(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
		cfg.Database,
	)
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

// Create persists a new session.
func (g *GormStore) Create(ctx context.Context, s *core.ExportSession) error {
	rec, err := toRecord(s, 1)
	if err != nil {
		return err
	}
	res := g.db.WithContext(ctx).Create(rec)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return ErrSessionExists
		}
		return res.Error
	}
	return nil
}

// Get returns the session with the given ID.
func (g *GormStore) Get(ctx context.Context, id string) (*core.ExportSession, error) {
	var rec sessionRecord
	res := g.db.WithContext(ctx).First(&rec, "id = ?", id)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, res.Error
	}
	return fromRecord(&rec)
}

// Update applies mutate under optimistic locking. The write only lands if
// the row version is unchanged since the read; otherwise the cycle retries.
func (g *GormStore) Update(ctx context.Context, id string, mutate func(*core.ExportSession) error) (*core.ExportSession, error) {
	for attempt := 0; attempt < updateRetries; attempt++ {
		var rec sessionRecord
		res := g.db.WithContext(ctx).First(&rec, "id = ?", id)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrRecordNotFound) {
				return nil, ErrSessionNotFound
			}
			return nil, res.Error
		}

		working, err := fromRecord(&rec)
		if err != nil {
			return nil, err
		}
		if err := mutate(working); err != nil {
			return nil, err
		}
		working.UpdatedAt = time.Now().UTC()

		updated, err := toRecord(working, rec.Version+1)
		if err != nil {
			return nil, err
		}

		write := g.db.WithContext(ctx).
			Model(&sessionRecord{}).
			Where("id = ? AND version = ?", id, rec.Version).
			Select("*").
			Updates(updated)
		if write.Error != nil {
			return nil, write.Error
		}
		if write.RowsAffected == 1 {
			return working, nil
		}
		// Lost the race, re-read and retry.
	}
	return nil, fmt.Errorf("session: update contention on %s", id)
}

// Delete removes the session.
func (g *GormStore) Delete(ctx context.Context, id string) error {
	return g.db.WithContext(ctx).Delete(&sessionRecord{}, "id = ?", id).Error
}

// List returns all sessions.
func (g *GormStore) List(ctx context.Context) ([]*core.ExportSession, error) {
	var recs []sessionRecord
	if err := g.db.WithContext(ctx).Find(&recs).Error; err != nil {
		return nil, err
	}

	out := make([]*core.ExportSession, 0, len(recs))
	for i := range recs {
		s, err := fromRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Close closes the underlying connection.
func (g *GormStore) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
