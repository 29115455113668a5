package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"support-dojo/server/internal/config"
	"support-dojo/server/internal/interfaces"
	"support-dojo/server/internal/models"
)

// conversationRecord is the gorm row for a conversation context. Turns and
// enrichment data are serialized JSON; queries only ever address the record
// by conversation id.
type conversationRecord struct {
	ConversationID string `gorm:"primaryKey;size:64"`
	ScenarioID     string `gorm:"size:64"`
	PersonaID      string `gorm:"size:64"`
	Turns          string `gorm:"type:longtext"`
	Data           string `gorm:"type:longtext"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (conversationRecord) TableName() string { return "conversation_contexts" }

// MySQLContextStore is the conversation-context store of record.
type MySQLContextStore struct {
	db *gorm.DB
}

func NewMySQLContextStore(cfg config.MySQLConfig) (*MySQLContextStore, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.AutoMigrate(&conversationRecord{}); err != nil {
		return nil, err
	}

	return &MySQLContextStore{db: db}, nil
}

func (s *MySQLContextStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *MySQLContextStore) Get(ctx context.Context, conversationID string) (*models.ConversationContext, error) {
	var rec conversationRecord
	err := s.db.WithContext(ctx).First(&rec, "conversation_id = ?", conversationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", conversationID, err)
	}
	return recordToContext(&rec)
}

func (s *MySQLContextStore) Initialize(ctx context.Context, conversationID, scenarioID, personaID string, data *models.ContextData) (*models.ConversationContext, error) {
	conv := &models.ConversationContext{
		ID:         conversationID,
		ScenarioID: scenarioID,
		PersonaID:  personaID,
		Turns:      []models.Turn{},
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if data != nil {
		conv.Data = *data
	}
	if err := s.Save(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *MySQLContextStore) Save(ctx context.Context, conv *models.ConversationContext) error {
	rec, err := contextToRecord(conv)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
		return fmt.Errorf("save conversation %s: %w", conv.ID, err)
	}
	return nil
}

func (s *MySQLContextStore) Delete(ctx context.Context, conversationID string) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&conversationRecord{}, "conversation_id = ?", conversationID)
	if res.Error != nil {
		return false, fmt.Errorf("delete conversation %s: %w", conversationID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func contextToRecord(conv *models.ConversationContext) (*conversationRecord, error) {
	turns, err := json.Marshal(conv.Turns)
	if err != nil {
		return nil, fmt.Errorf("marshal turns: %w", err)
	}
	data, err := json.Marshal(conv.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal context data: %w", err)
	}
	return &conversationRecord{
		ConversationID: conv.ID,
		ScenarioID:     conv.ScenarioID,
		PersonaID:      conv.PersonaID,
		Turns:          string(turns),
		Data:           string(data),
		CreatedAt:      conv.CreatedAt,
		UpdatedAt:      conv.UpdatedAt,
	}, nil
}

func recordToContext(rec *conversationRecord) (*models.ConversationContext, error) {
	conv := &models.ConversationContext{
		ID:         rec.ConversationID,
		ScenarioID: rec.ScenarioID,
		PersonaID:  rec.PersonaID,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
	if rec.Turns != "" {
		if err := json.Unmarshal([]byte(rec.Turns), &conv.Turns); err != nil {
			return nil, fmt.Errorf("unmarshal turns: %w", err)
		}
	}
	if rec.Data != "" {
		if err := json.Unmarshal([]byte(rec.Data), &conv.Data); err != nil {
			return nil, fmt.Errorf("unmarshal context data: %w", err)
		}
	}
	return conv, nil
}

var _ interfaces.ContextStore = (*MySQLContextStore)(nil)
