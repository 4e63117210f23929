package domain

import "time"

// IPVerdict is one cached classification result. IP is the canonical textual form.
type IPVerdict struct {
	IP        string    `gorm:"column:ip;primaryKey;size:45" json:"ip"`
	IsVPN     bool      `gorm:"column:is_vpn;not null;default:false" json:"is_vpn"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

func (IPVerdict) TableName() string {
	return "ip_verdicts"
}
