package preference

import (
	"errors"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

type UserPreference struct {
	UserID     types.ID  `json:"userId" gorm:"primary_key;auto_increment:false" sql:"type:BIGINT UNSIGNED NOT NULL"`
	PrefKey    string    `json:"key" gorm:"primary_key" sql:"type:VARCHAR(128) NOT NULL"`
	Value      string    `json:"value" sql:"type:VARCHAR(1024)"`
	UpdateTime time.Time `json:"updateTime" gorm:"precision:6;not null"`
}

// Get returns nil when the user has no value for key
func Get(userId types.ID, key string, tx *gorm.DB) (*UserPreference, error) {
	p := UserPreference{}
	if err := tx.Where("user_id = ? AND pref_key = ?", userId, key).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Upsert updates the value of an existing preference, or creates it
func Upsert(userId types.ID, key, value string, tx *gorm.DB) (*UserPreference, error) {
	existing, err := Get(userId, key, tx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if existing != nil {
		if err := tx.Model(&UserPreference{}).Where("user_id = ? AND pref_key = ?", userId, key).
			Updates(map[string]interface{}{"value": value, "update_time": now}).Error; err != nil {
			return nil, err
		}
		existing.Value = value
		existing.UpdateTime = now
		return existing, nil
	}
	p := UserPreference{UserID: userId, PrefKey: key, Value: value, UpdateTime: now}
	if err := tx.Create(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}
