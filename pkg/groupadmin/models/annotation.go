package models

import "time"

// Annotation is the minimal projection of the annotations table this service reads.
// Only per-group counts are consumed here.
type Annotation struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Groupid   string    `gorm:"column:groupid;not null;index" json:"groupid"`
	Userid    string    `gorm:"column:userid;not null" json:"userid"`
}
