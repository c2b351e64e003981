package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"taxfolio/pkg/domain"
)

const migrateLockID int64 = 48204820

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations under an advisory lock
// so concurrent replicas do not race on schema changes.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &TokenModel{}, &EmailModel{}, &TaxDocumentModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "password_hash", "role", "status", "updated_at"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// UserCount returns the number of registered users.
func (s *GormStore) UserCount() (int, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// UpsertToken writes mailbox credentials, replacing any previous row for the
// same (user, provider, email).
func (s *GormStore) UpsertToken(t domain.TokenRecord) error {
	model := TokenModel{
		UserID:       t.UserID,
		Provider:     string(t.Provider),
		Email:        t.Email,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.ExpiresAt,
		UpdatedAt:    time.Now().UTC(),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider"}, {Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "expires_at", "updated_at"}),
	}).Create(&model).Error
}

// GetToken loads mailbox credentials.
func (s *GormStore) GetToken(userID string, provider domain.Provider, email string) (domain.TokenRecord, bool, error) {
	var model TokenModel
	err := s.db.Where("user_id = ? AND provider = ? AND email = ?", userID, string(provider), email).First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.TokenRecord{}, false, nil
		}
		return domain.TokenRecord{}, false, err
	}
	return domain.TokenRecord{
		UserID:       model.UserID,
		Provider:     domain.Provider(model.Provider),
		Email:        model.Email,
		AccessToken:  model.AccessToken,
		RefreshToken: model.RefreshToken,
		ExpiresAt:    model.ExpiresAt,
		UpdatedAt:    model.UpdatedAt,
	}, true, nil
}

// SaveEmails inserts fetched emails, skipping ones already stored.
func (s *GormStore) SaveEmails(userID string, emails []domain.Email) error {
	if len(emails) == 0 {
		return nil
	}
	models := make([]EmailModel, 0, len(emails))
	for _, e := range emails {
		models = append(models, emailToModel(userID, e))
	}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models).Error
}

// ListEmails returns the user's emails, newest first.
func (s *GormStore) ListEmails(userID string) ([]domain.Email, error) {
	var models []EmailModel
	if err := s.db.Where("user_id = ?", userID).Order("date DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	emails := make([]domain.Email, 0, len(models))
	for _, m := range models {
		emails = append(emails, emailFromModel(m))
	}
	return emails, nil
}

// UpdateEmail patches read/starred flags on a user-owned email.
func (s *GormStore) UpdateEmail(userID, emailID string, read, starred *bool) (domain.Email, error) {
	updates := map[string]any{}
	if read != nil {
		updates["read"] = *read
	}
	if starred != nil {
		updates["starred"] = *starred
	}
	if len(updates) > 0 {
		res := s.db.Model(&EmailModel{}).
			Where("id = ? AND user_id = ?", emailID, userID).
			Updates(updates)
		if res.Error != nil {
			return domain.Email{}, res.Error
		}
		if res.RowsAffected == 0 {
			return domain.Email{}, ErrEmailNotFound
		}
	}
	var model EmailModel
	if err := s.db.Where("id = ? AND user_id = ?", emailID, userID).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Email{}, ErrEmailNotFound
		}
		return domain.Email{}, err
	}
	return emailFromModel(model), nil
}

// MarkTaxDocument flags an email as carrying a tax document of the given
// type. Unknown or foreign email IDs yield ErrEmailNotFound.
func (s *GormStore) MarkTaxDocument(userID, emailID, documentType string) error {
	res := s.db.Model(&EmailModel{}).
		Where("id = ? AND user_id = ?", emailID, userID).
		Updates(map[string]any{"has_tax_document": true, "document_type": documentType})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrEmailNotFound
	}
	return nil
}

// DeleteEmails removes user-owned emails by ID.
func (s *GormStore) DeleteEmails(userID string, emailIDs []string) error {
	if len(emailIDs) == 0 {
		return nil
	}
	return s.db.Where("user_id = ? AND id IN ?", userID, emailIDs).Delete(&EmailModel{}).Error
}

// SaveTaxDocument persists an extracted document. Documents are write-once.
func (s *GormStore) SaveTaxDocument(doc domain.TaxDocument) error {
	financial, err := json.Marshal(doc.FinancialData)
	if err != nil {
		return fmt.Errorf("marshal financial data: %w", err)
	}
	model := TaxDocumentModel{
		ID:            doc.ID,
		UserID:        doc.UserID,
		DocumentType:  doc.DocumentType,
		Issuer:        doc.Issuer,
		TaxYear:       doc.TaxYear,
		FinancialData: datatypes.JSON(financial),
		SourceEmailID: doc.SourceEmailID,
		SourceName:    doc.SourceName,
		StorageKey:    doc.StorageKey,
		CreatedAt:     doc.CreatedAt,
	}
	return s.db.Create(&model).Error
}

// GetTaxDocument returns one of the user's extracted documents.
func (s *GormStore) GetTaxDocument(userID, documentID string) (domain.TaxDocument, error) {
	var model TaxDocumentModel
	if err := s.db.Where("id = ? AND user_id = ?", documentID, userID).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.TaxDocument{}, ErrDocumentNotFound
		}
		return domain.TaxDocument{}, err
	}
	return taxDocumentFromModel(model)
}

// ListTaxDocuments returns the user's extracted documents, newest first.
func (s *GormStore) ListTaxDocuments(userID string) ([]domain.TaxDocument, error) {
	var models []TaxDocumentModel
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	docs := make([]domain.TaxDocument, 0, len(models))
	for _, m := range models {
		doc, err := taxDocumentFromModel(m)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// DeleteTaxDocument removes one of the user's extracted documents.
func (s *GormStore) DeleteTaxDocument(userID, documentID string) error {
	res := s.db.Where("id = ? AND user_id = ?", documentID, userID).Delete(&TaxDocumentModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func taxDocumentFromModel(m TaxDocumentModel) (domain.TaxDocument, error) {
	var financial map[string]string
	if len(m.FinancialData) > 0 {
		if err := json.Unmarshal(m.FinancialData, &financial); err != nil {
			return domain.TaxDocument{}, fmt.Errorf("unmarshal financial data: %w", err)
		}
	}
	return domain.TaxDocument{
		ID:            m.ID,
		UserID:        m.UserID,
		DocumentType:  m.DocumentType,
		Issuer:        m.Issuer,
		TaxYear:       m.TaxYear,
		FinancialData: financial,
		SourceEmailID: m.SourceEmailID,
		SourceName:    m.SourceName,
		StorageKey:    m.StorageKey,
		CreatedAt:     m.CreatedAt,
	}, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Status:       string(u.Status),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.UserRole(m.Role),
		Status:       domain.UserStatus(m.Status),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func emailToModel(userID string, e domain.Email) EmailModel {
	return EmailModel{
		ID:             e.ID,
		UserID:         userID,
		FromAddress:    e.FromAddress,
		Subject:        e.Subject,
		Date:           e.Date,
		Preview:        e.Preview,
		Read:           e.Read,
		Starred:        e.Starred,
		HasTaxDocument: e.HasTaxDocument,
		DocumentType:   e.DocumentType,
	}
}

func emailFromModel(m EmailModel) domain.Email {
	return domain.Email{
		ID:             m.ID,
		UserID:         m.UserID,
		FromAddress:    m.FromAddress,
		Subject:        m.Subject,
		Date:           m.Date,
		Preview:        m.Preview,
		Read:           m.Read,
		Starred:        m.Starred,
		HasTaxDocument: m.HasTaxDocument,
		DocumentType:   m.DocumentType,
	}
}
