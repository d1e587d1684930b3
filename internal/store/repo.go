package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"smartwindow-hub/internal/model"
)

type Repository struct {
	db *gorm.DB
}

func OpenPostgres(user, password, dbName, host, port, sslMode string) (*gorm.DB, error) {
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC", host, user, password, dbName, port, sslMode)
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	return gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
}

func New(db *gorm.DB) (*Repository, error) {
	if err := db.AutoMigrate(&model.User{}, &model.Mobile{}, &model.Device{}, &model.Alarm{}, &model.Media{}, &model.Music{}); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

// --- devices ---

func (r *Repository) CreateDevice(ctx context.Context, d *model.Device) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *Repository) SaveDevice(ctx context.Context, d *model.Device) error {
	return r.db.WithContext(ctx).Save(d).Error
}

func (r *Repository) DeviceUniqueIDExists(ctx context.Context, uniqueID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Device{}).Where("device_unique_id = ?", uniqueID).Count(&n).Error
	return n > 0, err
}

// GetDeviceByUniqueID resolves the wire identifier. Returns (nil, nil)
// when no device matches.
func (r *Repository) GetDeviceByUniqueID(ctx context.Context, uniqueID string) (*model.Device, error) {
	var dev model.Device
	if err := r.db.WithContext(ctx).Where("device_unique_id = ?", uniqueID).First(&dev).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &dev, nil
}

// GetDeviceForUser is the owner-authorized lookup every API operation
// goes through. Returns (nil, nil) when the device does not exist or
// belongs to someone else.
func (r *Repository) GetDeviceForUser(ctx context.Context, deviceID, userID any) (*model.Device, error) {
	var dev model.Device
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", deviceID, userID).First(&dev).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &dev, nil
}

func (r *Repository) ListDevicesByUser(ctx context.Context, userID any) ([]model.Device, error) {
	var devices []model.Device
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at").Find(&devices).Error; err != nil {
		return nil, err
	}
	return devices, nil
}

// UpdateDeviceByUniqueID applies a targeted column update in a single
// statement, so concurrent status messages for the same device serialize
// on the database row lock instead of racing through read-modify-write.
// The returned count is zero when the device vanished in between.
func (r *Repository) UpdateDeviceByUniqueID(ctx context.Context, uniqueID string, updates map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Device{}).Where("device_unique_id = ?", uniqueID).Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *Repository) DeleteDevice(ctx context.Context, deviceID any) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("device_id = ?", deviceID).Delete(&model.Alarm{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", deviceID).Delete(&model.Device{}).Error
	})
}

// --- alarms ---

func (r *Repository) CreateAlarm(ctx context.Context, a *model.Alarm) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *Repository) SaveAlarm(ctx context.Context, a *model.Alarm) error {
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *Repository) DeleteAlarm(ctx context.Context, alarmID any) error {
	return r.db.WithContext(ctx).Where("id = ?", alarmID).Delete(&model.Alarm{}).Error
}

// GetAlarmForUser resolves an alarm through its device's owner.
func (r *Repository) GetAlarmForUser(ctx context.Context, alarmID, userID any) (*model.Alarm, error) {
	var a model.Alarm
	err := r.db.WithContext(ctx).
		Joins("JOIN devices ON devices.id = alarms.device_id").
		Where("alarms.id = ? AND devices.user_id = ?", alarmID, userID).
		First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *Repository) ListAlarmsByDevice(ctx context.Context, deviceID any) ([]model.Alarm, error) {
	var alarms []model.Alarm
	if err := r.db.WithContext(ctx).Where("device_id = ?", deviceID).Order("created_at").Find(&alarms).Error; err != nil {
		return nil, err
	}
	return alarms, nil
}

func (r *Repository) ListAlarmsByUser(ctx context.Context, userID any) ([]model.Alarm, error) {
	var alarms []model.Alarm
	err := r.db.WithContext(ctx).
		Joins("JOIN devices ON devices.id = alarms.device_id").
		Where("devices.user_id = ?", userID).
		Order("alarms.created_at").
		Find(&alarms).Error
	if err != nil {
		return nil, err
	}
	return alarms, nil
}

// --- users & mobiles ---

func (r *Repository) CreateUser(ctx context.Context, u *model.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *Repository) SaveMobile(ctx context.Context, m *model.Mobile) error {
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *Repository) GetMobileByToken(ctx context.Context, token string) (*model.Mobile, error) {
	var m model.Mobile
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// ListMobileTokens returns every push token registered to a user. An
// empty slice is a normal outcome, not an error.
func (r *Repository) ListMobileTokens(ctx context.Context, userID any) ([]string, error) {
	var tokens []string
	err := r.db.WithContext(ctx).Model(&model.Mobile{}).Where("user_id = ?", userID).Pluck("token", &tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *Repository) DeleteMobileByToken(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).Where("token = ?", token).Delete(&model.Mobile{}).Error
}

// --- media & music ---

func (r *Repository) GetMediaForUser(ctx context.Context, mediaID, userID any) (*model.Media, error) {
	var m model.Media
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", mediaID, userID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *Repository) CreateMedia(ctx context.Context, m *model.Media) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// GetMusicForUser matches the user's own tracks plus system tracks
// (null owner).
func (r *Repository) GetMusicForUser(ctx context.Context, musicID, userID any) (*model.Music, error) {
	var m model.Music
	err := r.db.WithContext(ctx).
		Where("id = ? AND (user_id = ? OR user_id IS NULL)", musicID, userID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *Repository) CreateMusic(ctx context.Context, m *model.Music) error {
	return r.db.WithContext(ctx).Create(m).Error
}
