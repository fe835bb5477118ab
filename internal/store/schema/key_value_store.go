package schema

import "time"

// KeyValueStore holds registry state and host bookkeeping as namespaced string pairs.
// Keys look like "{contract}/owner/{id}" or "{contract}/auth/nonce/{address}".
type KeyValueStore struct {
	Key       string    `gorm:"primaryKey;type:text"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (KeyValueStore) TableName() string {
	return "key_value_store"
}
